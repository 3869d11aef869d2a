package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/infrastructure/persistence/sqlite"
)

const projectColumns = `
	id, customer_id, contact_id, title, description, status, flooring_type,
	square_footage, estimated_cost, start_date, progress_updates, documents,
	created_at, updated_at`

// ProjectRepository implements port.ProjectRepository
type ProjectRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB, logger *zap.Logger) port.ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a project and sets its ID
func (r *ProjectRepository) Create(ctx context.Context, p *entity.CustomerProject) error {
	updates, err := toJSON(nonNilUpdates(p.ProgressUpdates))
	if err != nil {
		return err
	}
	docs, err := toJSON(nonNilDocuments(p.Documents))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO customer_projects (
			customer_id, contact_id, title, description, status, flooring_type,
			square_footage, estimated_cost, start_date, progress_updates, documents,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		p.CustomerID, nullInt64(p.ContactID), p.Title, p.Description, p.Status, p.FlooringType,
		p.SquareFootage, p.EstimatedCost, nullTime(p.StartDate), updates, docs,
		utc(p.CreatedAt), utc(p.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create project", zap.Int64("customer_id", p.CustomerID), zap.Error(err))
		return fmt.Errorf("failed to create project: %w", err)
	}

	p.ID, err = insertID(result)
	return err
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*entity.CustomerProject, error) {
	query := `SELECT ` + projectColumns + ` FROM customer_projects WHERE id = ?`
	p, err := scanProject(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get project", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListByCustomer retrieves the projects owned by a portal account
func (r *ProjectRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*entity.CustomerProject, error) {
	query := `SELECT ` + projectColumns + ` FROM customer_projects WHERE customer_id = ? ORDER BY id`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, customerID)
	if err != nil {
		r.logger.Error("Failed to list projects", zap.Int64("customer_id", customerID), zap.Error(err))
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []*entity.CustomerProject{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateStatus overwrites the project status
func (r *ProjectRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE customer_projects SET status = ?, updated_at = ? WHERE id = ?`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, status, utc(time.Now()), id)
	if err != nil {
		r.logger.Error("Failed to update project status", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update project status: %w", err)
	}
	return nil
}

// AddProgressUpdate appends to the timeline and moves the status in one
// read-modify-write inside a transaction
func (r *ProjectRepository) AddProgressUpdate(ctx context.Context, id int64, update entity.ProgressUpdate) (*entity.CustomerProject, error) {
	return r.modify(ctx, id, func(p *entity.CustomerProject) {
		p.AddProgressUpdate(update)
	})
}

// AddDocument appends a shared document
func (r *ProjectRepository) AddDocument(ctx context.Context, id int64, doc entity.ProjectDocument) (*entity.CustomerProject, error) {
	return r.modify(ctx, id, func(p *entity.CustomerProject) {
		p.AddDocument(doc)
	})
}

func (r *ProjectRepository) modify(ctx context.Context, id int64, fn func(p *entity.CustomerProject)) (*entity.CustomerProject, error) {
	var project *entity.CustomerProject
	err := r.inTx(ctx, func(txCtx context.Context) error {
		p, err := r.GetByID(txCtx, id)
		if err != nil || p == nil {
			return err
		}
		fn(p)
		p.UpdatedAt = time.Now()

		updates, err := toJSON(nonNilUpdates(p.ProgressUpdates))
		if err != nil {
			return err
		}
		docs, err := toJSON(nonNilDocuments(p.Documents))
		if err != nil {
			return err
		}

		query := `
			UPDATE customer_projects
			SET status = ?, progress_updates = ?, documents = ?, updated_at = ?
			WHERE id = ?
		`
		if _, err := sqlite.Conn(txCtx, r.db).ExecContext(txCtx, query, p.Status, updates, docs, utc(p.UpdatedAt), id); err != nil {
			r.logger.Error("Failed to update project timeline", zap.Int64("id", id), zap.Error(err))
			return fmt.Errorf("failed to update project: %w", err)
		}
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// inTx joins the caller's transaction or opens a short one
func (r *ProjectRepository) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if sqlite.InTransaction(ctx) {
		return fn(ctx)
	}
	return sqlite.NewDB(r.db, r.logger).WithTransaction(ctx, fn)
}

func scanProject(s scanner) (*entity.CustomerProject, error) {
	var p entity.CustomerProject
	var contactID sql.NullInt64
	var startDate sql.NullTime
	var updates, docs string

	err := s.Scan(
		&p.ID, &p.CustomerID, &contactID, &p.Title, &p.Description, &p.Status, &p.FlooringType,
		&p.SquareFootage, &p.EstimatedCost, &startDate, &updates, &docs,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ContactID = int64Ptr(contactID)
	p.StartDate = timePtr(startDate)
	p.ProgressUpdates = []entity.ProgressUpdate{}
	p.Documents = []entity.ProjectDocument{}
	if err := fromJSON(updates, &p.ProgressUpdates); err != nil {
		return nil, err
	}
	if err := fromJSON(docs, &p.Documents); err != nil {
		return nil, err
	}
	return &p, nil
}

func nonNilUpdates(u []entity.ProgressUpdate) []entity.ProgressUpdate {
	if u == nil {
		return []entity.ProgressUpdate{}
	}
	return u
}

func nonNilDocuments(d []entity.ProjectDocument) []entity.ProjectDocument {
	if d == nil {
		return []entity.ProjectDocument{}
	}
	return d
}

// Verify interface compliance
var _ port.ProjectRepository = (*ProjectRepository)(nil)
