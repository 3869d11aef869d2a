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

const paymentColumns = `id, invoice_id, amount, method, status, transaction_ref, receipt_sent, paid_at, created_at`

// PaymentRepository implements port.PaymentRepository
type PaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) port.PaymentRepository {
	return &PaymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a payment and sets its ID
func (r *PaymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	query := `
		INSERT INTO payments (
			invoice_id, amount, method, status, transaction_ref, receipt_sent, paid_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		p.InvoiceID, p.Amount, p.Method, p.Status, p.TransactionRef, p.ReceiptSent,
		utc(p.PaidAt), utc(p.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create payment", zap.Int64("invoice_id", p.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}

	p.ID, err = insertID(result)
	return err
}

// GetByID retrieves a payment by ID
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	p, err := scanPayment(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payment", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// ListByInvoice retrieves all payments against an invoice in the order they were recorded
func (r *PaymentRepository) ListByInvoice(ctx context.Context, invoiceID int64) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = ? ORDER BY id`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list payments", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []*entity.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkReceiptSent flags a payment's receipt as delivered
func (r *PaymentRepository) MarkReceiptSent(ctx context.Context, id int64) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `UPDATE payments SET receipt_sent = 1 WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to mark receipt sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark receipt sent: %w", err)
	}
	return nil
}

func scanPayment(s scanner) (*entity.Payment, error) {
	var p entity.Payment
	err := s.Scan(
		&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Status, &p.TransactionRef,
		&p.ReceiptSent, &p.PaidAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Verify interface compliance
var _ port.PaymentRepository = (*PaymentRepository)(nil)
