package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/infrastructure/persistence/sqlite"
)

const taskColumns = `id, title, description, contact_id, assigned_to, priority, status, due_date, created_at`

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a follow-up task and sets its ID
func (r *TaskRepository) Create(ctx context.Context, t *entity.Task) error {
	query := `
		INSERT INTO tasks (title, description, contact_id, assigned_to, priority, status, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		t.Title, t.Description, nullInt64(t.ContactID), t.AssignedTo, t.Priority, t.Status,
		nullTime(t.DueDate), utc(t.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create task", zap.String("title", t.Title), zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	t.ID, err = insertID(result)
	return err
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	t, err := scanTask(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListOpen retrieves open tasks, earliest due first
func (r *TaskRepository) ListOpen(ctx context.Context, limit int) ([]*entity.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = ?
		ORDER BY due_date IS NULL, due_date, id
		LIMIT ?
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, entity.TaskStatusOpen, limit)
	if err != nil {
		r.logger.Error("Failed to list open tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*entity.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(s scanner) (*entity.Task, error) {
	var t entity.Task
	var contactID sql.NullInt64
	var dueDate sql.NullTime

	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &contactID, &t.AssignedTo, &t.Priority, &t.Status,
		&dueDate, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ContactID = int64Ptr(contactID)
	t.DueDate = timePtr(dueDate)
	return &t, nil
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
