package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/domain/statemachine"
)

// RecordPaymentInput describes money received against an invoice
type RecordPaymentInput struct {
	Amount         decimal.Decimal
	Method         string
	TransactionRef string
}

// PaymentService records payments. It is the only writer of an invoice's
// paid amounts and of the matching contract installment status.
type PaymentService interface {
	Record(ctx context.Context, invoiceID int64, in RecordPaymentInput) (*entity.Payment, *entity.Invoice, error)
	Get(ctx context.Context, id int64) (*entity.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*entity.Payment, error)
}

type paymentServiceImpl struct {
	payments  port.PaymentRepository
	invoices  port.InvoiceRepository
	contracts port.ContractRepository
	contacts  port.ContactRepository
	users     port.CustomerUserRepository
	txManager port.TransactionManager
	sink      port.NotificationSink
	logger    Logger
	now       Clock
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	payments port.PaymentRepository,
	invoices port.InvoiceRepository,
	contracts port.ContractRepository,
	contacts port.ContactRepository,
	users port.CustomerUserRepository,
	txManager port.TransactionManager,
	sink port.NotificationSink,
	logger Logger,
) PaymentService {
	return &paymentServiceImpl{
		payments:  payments,
		invoices:  invoices,
		contracts: contracts,
		contacts:  contacts,
		users:     users,
		txManager: txManager,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *paymentServiceImpl) Record(ctx context.Context, invoiceID int64, in RecordPaymentInput) (*entity.Payment, *entity.Invoice, error) {
	if !in.Amount.IsPositive() {
		return nil, nil, apperr.NewValidationError("amount", "amount must be greater than zero")
	}

	var (
		payment *entity.Payment
		invoice *entity.Invoice
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.invoices.GetByID(txCtx, invoiceID)
		if err != nil {
			return persistErr("get invoice", err)
		}
		if inv == nil {
			return apperr.NewEntityNotFoundError("invoice", invoiceID)
		}

		machine, err := statemachine.Invoice(inv.Status)
		if err != nil {
			return apperr.NewInvalidTransitionError("invoice", inv.Status, statemachine.TriggerPay.String(), err)
		}

		previous := inv.Status
		settled := inv.ApplyPayment(in.Amount)
		if err := machine.Fire(statemachine.WithSettled(txCtx, settled), statemachine.TriggerPay); err != nil {
			return apperr.NewInvalidTransitionError("invoice", previous, statemachine.TriggerPay.String(), err)
		}

		now := s.now()
		inv.Status = machine.State().String()
		inv.UpdatedAt = now
		if settled {
			inv.PaidAt = timePtr(now)
		}
		if err := s.invoices.Update(txCtx, inv); err != nil {
			return persistErr("update invoice", err)
		}

		payment = &entity.Payment{
			InvoiceID:      inv.ID,
			Amount:         in.Amount,
			Method:         in.Method,
			Status:         entity.PaymentStatusCompleted,
			TransactionRef: in.TransactionRef,
			PaidAt:         now,
			CreatedAt:      now,
		}
		if err := s.payments.Create(txCtx, payment); err != nil {
			return persistErr("create payment", err)
		}

		if settled && inv.ContractID != nil {
			if err := s.markInstallmentPaid(txCtx, inv); err != nil {
				return err
			}
		}

		s.logger.Info("Payment recorded",
			"invoice_id", inv.ID,
			"payment_id", payment.ID,
			"amount", in.Amount.StringFixed(2),
			"amount_due", inv.AmountDue.StringFixed(2),
			"from", previous,
			"to", inv.Status)
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.sendReceipt(ctx, payment, invoice)
	return payment, invoice, nil
}

// markInstallmentPaid flips the contract installment billed by inv to paid.
// Invoices without a schedule item reference fall back to amount matching.
func (s *paymentServiceImpl) markInstallmentPaid(ctx context.Context, inv *entity.Invoice) error {
	c, err := s.contracts.GetByID(ctx, *inv.ContractID)
	if err != nil {
		return persistErr("get contract", err)
	}
	if c == nil {
		s.logger.Warn("Invoice references missing contract", "invoice_id", inv.ID, "contract_id", *inv.ContractID)
		return nil
	}

	item, ok := c.ScheduleItem(inv.ScheduleItemID)
	if !ok {
		item, ok = c.ScheduleItemByAmount(inv.Total)
	}
	if !ok {
		s.logger.Warn("No schedule item matches paid invoice", "invoice_id", inv.ID, "contract_id", c.ID)
		return nil
	}

	item.Status = entity.ScheduleItemStatusPaid
	c.UpdatedAt = s.now()
	if err := s.contracts.Update(ctx, c); err != nil {
		return persistErr("mark schedule item paid", err)
	}
	s.logger.Info("Contract installment paid", "contract_id", c.ID, "schedule_item_id", item.ID)
	return nil
}

func (s *paymentServiceImpl) sendReceipt(ctx context.Context, p *entity.Payment, inv *entity.Invoice) {
	to, ok := resolveRecipient(ctx, s.users, s.contacts, inv.CustomerUserID, inv.ContactID)
	if !ok {
		return
	}

	res := s.sink.SendCustomEmail(ctx, port.EmailMessage{
		To:      to.Email,
		Subject: fmt.Sprintf("Payment received for invoice %s", inv.InvoiceNumber),
		HTML: fmt.Sprintf("<p>Hi %s,</p><p>We received your payment of $%s for invoice %s.</p><p>Remaining balance: $%s</p>",
			to.Name, p.Amount.StringFixed(2), inv.InvoiceNumber, decimal.Max(inv.AmountDue, decimal.Zero).StringFixed(2)),
	})
	if !logDelivery(s.logger, "Payment receipt", res, "payment_id", p.ID, "invoice_id", inv.ID) {
		return
	}
	if err := s.payments.MarkReceiptSent(ctx, p.ID); err != nil {
		s.logger.Error("Failed to flag receipt as sent", "payment_id", p.ID, "error", err)
		return
	}
	p.ReceiptSent = true
}

func (s *paymentServiceImpl) Get(ctx context.Context, id int64) (*entity.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, persistErr("get payment", err)
	}
	if p == nil {
		return nil, apperr.NewEntityNotFoundError("payment", id)
	}
	return p, nil
}

func (s *paymentServiceImpl) ListByInvoice(ctx context.Context, invoiceID int64) ([]*entity.Payment, error) {
	payments, err := s.payments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, persistErr("list payments", err)
	}
	return payments, nil
}
