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

const invoiceColumns = `
	id, invoice_number, contract_id, schedule_item_id, contact_id, customer_user_id, project_id,
	title, description, line_items, status, total, amount_paid, amount_due,
	due_date, sent_at, viewed_at, paid_at, created_at, updated_at`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// LatestNumber implements port.DocumentNumberSource
func (r *InvoiceRepository) LatestNumber(ctx context.Context, prefix string) (string, error) {
	return latestNumber(ctx, sqlite.Conn(ctx, r.db), "invoices", "invoice_number", prefix)
}

// Create inserts an invoice and sets its ID
func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	items, err := toJSON(nonNilItems(inv.LineItems))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO invoices (
			invoice_number, contract_id, schedule_item_id, contact_id, customer_user_id, project_id,
			title, description, line_items, status, total, amount_paid, amount_due,
			due_date, sent_at, viewed_at, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		inv.InvoiceNumber, nullInt64(inv.ContractID), inv.ScheduleItemID,
		nullInt64(inv.ContactID), nullInt64(inv.CustomerUserID), nullInt64(inv.ProjectID),
		inv.Title, inv.Description, items, inv.Status, inv.Total, inv.AmountPaid, inv.AmountDue,
		nullTime(inv.DueDate), nullTime(inv.SentAt), nullTime(inv.ViewedAt), nullTime(inv.PaidAt),
		utc(inv.CreatedAt), utc(inv.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.String("invoice_number", inv.InvoiceNumber), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	inv.ID, err = insertID(result)
	return err
}

// GetByID retrieves an invoice by ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`
	inv, err := scanInvoice(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// Update writes all mutable invoice fields
func (r *InvoiceRepository) Update(ctx context.Context, inv *entity.Invoice) error {
	items, err := toJSON(nonNilItems(inv.LineItems))
	if err != nil {
		return err
	}

	query := `
		UPDATE invoices SET
			title = ?, description = ?, line_items = ?, status = ?,
			total = ?, amount_paid = ?, amount_due = ?,
			due_date = ?, sent_at = ?, viewed_at = ?, paid_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		inv.Title, inv.Description, items, inv.Status,
		inv.Total, inv.AmountPaid, inv.AmountDue,
		nullTime(inv.DueDate), nullTime(inv.SentAt), nullTime(inv.ViewedAt), nullTime(inv.PaidAt), utc(inv.UpdatedAt),
		inv.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice", zap.Int64("id", inv.ID), zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

// ListOverdueCandidates returns unpaid sent invoices whose due date has passed
func (r *InvoiceRepository) ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]*entity.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status IN (?, ?, ?) AND due_date IS NOT NULL AND due_date < ?
		ORDER BY due_date ASC
		LIMIT ?
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query,
		entity.InvoiceStatusSent, entity.InvoiceStatusViewed, entity.InvoiceStatusPartiallyPaid,
		utc(now), limit,
	)
	if err != nil {
		r.logger.Error("Failed to list overdue invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list overdue invoices: %w", err)
	}
	defer rows.Close()

	invoices := []*entity.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func scanInvoice(s scanner) (*entity.Invoice, error) {
	var inv entity.Invoice
	var contractID, contactID, customerUserID, projectID sql.NullInt64
	var dueDate, sentAt, viewedAt, paidAt sql.NullTime
	var items string

	err := s.Scan(
		&inv.ID, &inv.InvoiceNumber, &contractID, &inv.ScheduleItemID, &contactID, &customerUserID, &projectID,
		&inv.Title, &inv.Description, &items, &inv.Status, &inv.Total, &inv.AmountPaid, &inv.AmountDue,
		&dueDate, &sentAt, &viewedAt, &paidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.ContractID = int64Ptr(contractID)
	inv.ContactID = int64Ptr(contactID)
	inv.CustomerUserID = int64Ptr(customerUserID)
	inv.ProjectID = int64Ptr(projectID)
	inv.DueDate = timePtr(dueDate)
	inv.SentAt = timePtr(sentAt)
	inv.ViewedAt = timePtr(viewedAt)
	inv.PaidAt = timePtr(paidAt)
	inv.LineItems = []entity.LineItem{}
	if err := fromJSON(items, &inv.LineItems); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
