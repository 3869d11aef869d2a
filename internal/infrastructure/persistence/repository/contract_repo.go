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

const contractColumns = `
	id, contract_number, estimate_id, contact_id, customer_user_id, project_id,
	title, description, body, status, amount, payment_schedule, start_date,
	customer_signature, customer_signed_at, sent_at, viewed_at, cancelled_at,
	created_at, updated_at`

// ContractRepository implements port.ContractRepository
type ContractRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewContractRepository creates a new contract repository
func NewContractRepository(db *sql.DB, logger *zap.Logger) port.ContractRepository {
	return &ContractRepository{
		db:     db,
		logger: logger,
	}
}

// LatestNumber implements port.DocumentNumberSource
func (r *ContractRepository) LatestNumber(ctx context.Context, prefix string) (string, error) {
	return latestNumber(ctx, sqlite.Conn(ctx, r.db), "contracts", "contract_number", prefix)
}

// Create inserts a contract and sets its ID.
// The UNIQUE estimate_id column rejects a second contract for one estimate.
func (r *ContractRepository) Create(ctx context.Context, c *entity.Contract) error {
	schedule, err := toJSON(nonNilSchedule(c.PaymentSchedule))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contracts (
			contract_number, estimate_id, contact_id, customer_user_id, project_id,
			title, description, body, status, amount, payment_schedule, start_date,
			customer_signature, customer_signed_at, sent_at, viewed_at, cancelled_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		c.ContractNumber, nullInt64(c.EstimateID), c.ContactID, nullInt64(c.CustomerUserID), nullInt64(c.ProjectID),
		c.Title, c.Description, c.Body, c.Status, c.Amount, schedule, nullTime(c.StartDate),
		c.CustomerSignature, nullTime(c.CustomerSignedAt), nullTime(c.SentAt), nullTime(c.ViewedAt), nullTime(c.CancelledAt),
		utc(c.CreatedAt), utc(c.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create contract", zap.String("contract_number", c.ContractNumber), zap.Error(err))
		return fmt.Errorf("failed to create contract: %w", err)
	}

	c.ID, err = insertID(result)
	return err
}

// GetByID retrieves a contract by ID
func (r *ContractRepository) GetByID(ctx context.Context, id int64) (*entity.Contract, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEstimateID retrieves the contract converted from an estimate
func (r *ContractRepository) GetByEstimateID(ctx context.Context, estimateID int64) (*entity.Contract, error) {
	return r.getOne(ctx, "estimate_id", estimateID)
}

func (r *ContractRepository) getOne(ctx context.Context, column string, id int64) (*entity.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE ` + column + ` = ?`
	c, err := scanContract(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get contract", zap.String("by", column), zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return c, nil
}

// Update writes all mutable contract fields
func (r *ContractRepository) Update(ctx context.Context, c *entity.Contract) error {
	schedule, err := toJSON(nonNilSchedule(c.PaymentSchedule))
	if err != nil {
		return err
	}

	query := `
		UPDATE contracts SET
			customer_user_id = ?, project_id = ?, title = ?, description = ?, body = ?,
			status = ?, amount = ?, payment_schedule = ?, start_date = ?,
			customer_signature = ?, customer_signed_at = ?, sent_at = ?, viewed_at = ?,
			cancelled_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		nullInt64(c.CustomerUserID), nullInt64(c.ProjectID), c.Title, c.Description, c.Body,
		c.Status, c.Amount, schedule, nullTime(c.StartDate),
		c.CustomerSignature, nullTime(c.CustomerSignedAt), nullTime(c.SentAt), nullTime(c.ViewedAt),
		nullTime(c.CancelledAt), utc(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update contract", zap.Int64("id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to update contract: %w", err)
	}
	return nil
}

func scanContract(s scanner) (*entity.Contract, error) {
	var c entity.Contract
	var estimateID, customerUserID, projectID sql.NullInt64
	var startDate, signedAt, sentAt, viewedAt, cancelledAt sql.NullTime
	var schedule string

	err := s.Scan(
		&c.ID, &c.ContractNumber, &estimateID, &c.ContactID, &customerUserID, &projectID,
		&c.Title, &c.Description, &c.Body, &c.Status, &c.Amount, &schedule, &startDate,
		&c.CustomerSignature, &signedAt, &sentAt, &viewedAt, &cancelledAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.EstimateID = int64Ptr(estimateID)
	c.CustomerUserID = int64Ptr(customerUserID)
	c.ProjectID = int64Ptr(projectID)
	c.StartDate = timePtr(startDate)
	c.CustomerSignedAt = timePtr(signedAt)
	c.SentAt = timePtr(sentAt)
	c.ViewedAt = timePtr(viewedAt)
	c.CancelledAt = timePtr(cancelledAt)
	c.PaymentSchedule = []entity.PaymentScheduleItem{}
	if err := fromJSON(schedule, &c.PaymentSchedule); err != nil {
		return nil, err
	}
	return &c, nil
}

func nonNilSchedule(items []entity.PaymentScheduleItem) []entity.PaymentScheduleItem {
	if items == nil {
		return []entity.PaymentScheduleItem{}
	}
	return items
}

// Verify interface compliance
var _ port.ContractRepository = (*ContractRepository)(nil)
