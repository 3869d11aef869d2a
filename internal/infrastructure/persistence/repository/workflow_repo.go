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

const workflowColumns = `
	id, name, description, trigger_type, trigger_condition, actions,
	is_active, delay_hours, created_at, updated_at`

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a workflow definition and sets its ID
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.Workflow) error {
	actions, err := toJSON(nonNilActions(wf.Actions))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (
			name, description, trigger_type, trigger_condition, actions,
			is_active, delay_hours, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		wf.Name, wf.Description, wf.TriggerType, nullString(wf.TriggerCondition), actions,
		wf.IsActive, wf.DelayHours, utc(wf.CreatedAt), utc(wf.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create workflow", zap.String("name", wf.Name), zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	wf.ID, err = insertID(result)
	return err
}

// GetByID retrieves a workflow by ID
func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*entity.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = ?`
	wf, err := scanWorkflow(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return wf, nil
}

// Update overwrites a workflow definition
func (r *WorkflowRepository) Update(ctx context.Context, wf *entity.Workflow) error {
	actions, err := toJSON(nonNilActions(wf.Actions))
	if err != nil {
		return err
	}

	query := `
		UPDATE workflows SET
			name = ?, description = ?, trigger_type = ?, trigger_condition = ?, actions = ?,
			is_active = ?, delay_hours = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		wf.Name, wf.Description, wf.TriggerType, nullString(wf.TriggerCondition), actions,
		wf.IsActive, wf.DelayHours, utc(wf.UpdatedAt),
		wf.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow", zap.Int64("id", wf.ID), zap.Error(err))
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	return nil
}

// Delete removes a workflow definition
func (r *WorkflowRepository) Delete(ctx context.Context, id int64) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete workflow", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return nil
}

// List retrieves all workflow definitions
func (r *WorkflowRepository) List(ctx context.Context) ([]*entity.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY id`
	return r.query(ctx, query)
}

// Count returns the number of stored workflow definitions
func (r *WorkflowRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows`).Scan(&n); err != nil {
		r.logger.Error("Failed to count workflows", zap.Error(err))
		return 0, fmt.Errorf("failed to count workflows: %w", err)
	}
	return n, nil
}

// ListActiveByTrigger retrieves active workflows for a trigger in ID order
func (r *WorkflowRepository) ListActiveByTrigger(ctx context.Context, triggerType string, condition *string) ([]*entity.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE trigger_type = ? AND is_active = 1`
	args := []interface{}{triggerType}
	if condition != nil {
		query += ` AND trigger_condition = ?`
		args = append(args, *condition)
	}
	query += ` ORDER BY id`

	return r.query(ctx, query, args...)
}

func (r *WorkflowRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Workflow, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	workflows := []*entity.Workflow{}
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func scanWorkflow(s scanner) (*entity.Workflow, error) {
	var wf entity.Workflow
	var condition sql.NullString
	var actions string

	err := s.Scan(
		&wf.ID, &wf.Name, &wf.Description, &wf.TriggerType, &condition, &actions,
		&wf.IsActive, &wf.DelayHours, &wf.CreatedAt, &wf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	wf.TriggerCondition = stringPtr(condition)
	wf.Actions = []entity.WorkflowAction{}
	if err := fromJSON(actions, &wf.Actions); err != nil {
		return nil, err
	}
	return &wf, nil
}

func nonNilActions(actions []entity.WorkflowAction) []entity.WorkflowAction {
	if actions == nil {
		return []entity.WorkflowAction{}
	}
	return actions
}

// Verify interface compliance
var _ port.WorkflowRepository = (*WorkflowRepository)(nil)
