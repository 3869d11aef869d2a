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

const estimateColumns = `
	id, estimate_number, contact_id, customer_user_id, title, description, status,
	line_items, subtotal, tax_rate, tax_amount, total, terms, valid_until, customer_notes,
	sent_at, viewed_at, approved_at, rejected_at, created_at, updated_at`

// EstimateRepository implements port.EstimateRepository
type EstimateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEstimateRepository creates a new estimate repository
func NewEstimateRepository(db *sql.DB, logger *zap.Logger) port.EstimateRepository {
	return &EstimateRepository{
		db:     db,
		logger: logger,
	}
}

// LatestNumber implements port.DocumentNumberSource
func (r *EstimateRepository) LatestNumber(ctx context.Context, prefix string) (string, error) {
	return latestNumber(ctx, sqlite.Conn(ctx, r.db), "estimates", "estimate_number", prefix)
}

// Create inserts an estimate and sets its ID
func (r *EstimateRepository) Create(ctx context.Context, e *entity.Estimate) error {
	items, err := toJSON(nonNilItems(e.LineItems))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO estimates (
			estimate_number, contact_id, customer_user_id, title, description, status,
			line_items, subtotal, tax_rate, tax_amount, total, terms, valid_until, customer_notes,
			sent_at, viewed_at, approved_at, rejected_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		e.EstimateNumber, e.ContactID, nullInt64(e.CustomerUserID), e.Title, e.Description, e.Status,
		items, e.Subtotal, e.TaxRate, e.TaxAmount, e.Total, e.Terms, nullTime(e.ValidUntil), e.CustomerNotes,
		nullTime(e.SentAt), nullTime(e.ViewedAt), nullTime(e.ApprovedAt), nullTime(e.RejectedAt),
		utc(e.CreatedAt), utc(e.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create estimate", zap.String("estimate_number", e.EstimateNumber), zap.Error(err))
		return fmt.Errorf("failed to create estimate: %w", err)
	}

	e.ID, err = insertID(result)
	return err
}

// GetByID retrieves an estimate by ID
func (r *EstimateRepository) GetByID(ctx context.Context, id int64) (*entity.Estimate, error) {
	query := `SELECT ` + estimateColumns + ` FROM estimates WHERE id = ?`
	e, err := scanEstimate(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get estimate", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get estimate: %w", err)
	}
	return e, nil
}

// Update writes all mutable estimate fields
func (r *EstimateRepository) Update(ctx context.Context, e *entity.Estimate) error {
	items, err := toJSON(nonNilItems(e.LineItems))
	if err != nil {
		return err
	}

	query := `
		UPDATE estimates SET
			customer_user_id = ?, title = ?, description = ?, status = ?,
			line_items = ?, subtotal = ?, tax_rate = ?, tax_amount = ?, total = ?,
			terms = ?, valid_until = ?, customer_notes = ?,
			sent_at = ?, viewed_at = ?, approved_at = ?, rejected_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		nullInt64(e.CustomerUserID), e.Title, e.Description, e.Status,
		items, e.Subtotal, e.TaxRate, e.TaxAmount, e.Total,
		e.Terms, nullTime(e.ValidUntil), e.CustomerNotes,
		nullTime(e.SentAt), nullTime(e.ViewedAt), nullTime(e.ApprovedAt), nullTime(e.RejectedAt), utc(e.UpdatedAt),
		e.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update estimate", zap.Int64("id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to update estimate: %w", err)
	}
	return nil
}

// ListByContact retrieves a contact's estimates, newest first
func (r *EstimateRepository) ListByContact(ctx context.Context, contactID int64) ([]*entity.Estimate, error) {
	query := `SELECT ` + estimateColumns + ` FROM estimates WHERE contact_id = ? ORDER BY id DESC`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, contactID)
	if err != nil {
		r.logger.Error("Failed to list estimates", zap.Int64("contact_id", contactID), zap.Error(err))
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	defer rows.Close()

	estimates := []*entity.Estimate{}
	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		estimates = append(estimates, e)
	}
	return estimates, rows.Err()
}

func scanEstimate(s scanner) (*entity.Estimate, error) {
	var e entity.Estimate
	var customerUserID sql.NullInt64
	var validUntil, sentAt, viewedAt, approvedAt, rejectedAt sql.NullTime
	var items string

	err := s.Scan(
		&e.ID, &e.EstimateNumber, &e.ContactID, &customerUserID, &e.Title, &e.Description, &e.Status,
		&items, &e.Subtotal, &e.TaxRate, &e.TaxAmount, &e.Total, &e.Terms, &validUntil, &e.CustomerNotes,
		&sentAt, &viewedAt, &approvedAt, &rejectedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.CustomerUserID = int64Ptr(customerUserID)
	e.ValidUntil = timePtr(validUntil)
	e.SentAt = timePtr(sentAt)
	e.ViewedAt = timePtr(viewedAt)
	e.ApprovedAt = timePtr(approvedAt)
	e.RejectedAt = timePtr(rejectedAt)
	e.LineItems = []entity.LineItem{}
	if err := fromJSON(items, &e.LineItems); err != nil {
		return nil, err
	}
	return &e, nil
}

func nonNilItems(items []entity.LineItem) []entity.LineItem {
	if items == nil {
		return []entity.LineItem{}
	}
	return items
}

// Verify interface compliance
var _ port.EstimateRepository = (*EstimateRepository)(nil)
