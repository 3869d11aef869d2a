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

const scheduledRunColumns = `id, workflow_id, event_data, run_at, status, attempts, last_error, created_at, updated_at`

// ScheduledRunRepository implements port.ScheduledRunRepository
type ScheduledRunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewScheduledRunRepository creates a new scheduled run repository
func NewScheduledRunRepository(db *sql.DB, logger *zap.Logger) port.ScheduledRunRepository {
	return &ScheduledRunRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pending delayed run
func (r *ScheduledRunRepository) Create(ctx context.Context, run *entity.ScheduledRun) error {
	data := run.EventData
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := toJSON(data)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scheduled_runs (
			id, workflow_id, event_data, run_at, status, attempts, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		run.ID, run.WorkflowID, payload, utc(run.RunAt), run.Status, run.Attempts, run.LastError,
		utc(run.CreatedAt), utc(run.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create scheduled run",
			zap.String("id", run.ID),
			zap.Int64("workflow_id", run.WorkflowID),
			zap.Error(err))
		return fmt.Errorf("failed to create scheduled run: %w", err)
	}
	return nil
}

// ClaimDue selects due pending runs, plus running runs whose lease expired,
// and marks them running in one transaction
func (r *ScheduledRunRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledRun, error) {
	var claimed []*entity.ScheduledRun

	err := sqlite.NewDB(r.db, r.logger).WithTransaction(ctx, func(txCtx context.Context) error {
		exec := sqlite.Conn(txCtx, r.db)

		query := `
			SELECT ` + scheduledRunColumns + `
			FROM scheduled_runs
			WHERE (status = ? AND run_at <= ?)
			   OR (status = ? AND updated_at <= ?)
			ORDER BY run_at ASC
			LIMIT ?
		`
		rows, err := exec.QueryContext(txCtx, query,
			entity.ScheduledRunStatusPending, utc(now),
			entity.ScheduledRunStatusRunning, utc(now.Add(-entity.ScheduledRunLease)),
			limit,
		)
		if err != nil {
			return fmt.Errorf("failed to query due runs: %w", err)
		}

		var due []*entity.ScheduledRun
		for rows.Next() {
			run, err := scanScheduledRun(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan scheduled run: %w", err)
			}
			due = append(due, run)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, run := range due {
			if run.Status == entity.ScheduledRunStatusRunning {
				r.logger.Warn("Reclaiming scheduled run with expired lease",
					zap.String("id", run.ID),
					zap.Int("attempts", run.Attempts),
					zap.Time("claimed_at", run.UpdatedAt))
			}
			run.Status = entity.ScheduledRunStatusRunning
			run.Attempts++
			run.UpdatedAt = now.UTC()
			_, err := exec.ExecContext(txCtx,
				`UPDATE scheduled_runs SET status = ?, attempts = ?, updated_at = ? WHERE id = ?`,
				run.Status, run.Attempts, utc(run.UpdatedAt), run.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to claim scheduled run %s: %w", run.ID, err)
			}
		}
		claimed = due
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to claim due runs", zap.Error(err))
		return nil, err
	}

	if claimed == nil {
		claimed = []*entity.ScheduledRun{}
	}
	return claimed, nil
}

// MarkCompleted records a successful delayed run
func (r *ScheduledRunRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.finish(ctx, id, entity.ScheduledRunStatusCompleted, "")
}

// MarkFailed records a delayed run that returned an error
func (r *ScheduledRunRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.finish(ctx, id, entity.ScheduledRunStatusFailed, errMsg)
}

func (r *ScheduledRunRepository) finish(ctx context.Context, id, status, errMsg string) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE scheduled_runs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		r.logger.Error("Failed to update scheduled run",
			zap.String("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update scheduled run: %w", err)
	}
	return nil
}

func scanScheduledRun(s scanner) (*entity.ScheduledRun, error) {
	var run entity.ScheduledRun
	var payload string

	err := s.Scan(
		&run.ID, &run.WorkflowID, &payload, &run.RunAt, &run.Status, &run.Attempts, &run.LastError,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.EventData = map[string]interface{}{}
	if err := fromJSON(payload, &run.EventData); err != nil {
		return nil, err
	}
	return &run, nil
}

// Verify interface compliance
var _ port.ScheduledRunRepository = (*ScheduledRunRepository)(nil)
