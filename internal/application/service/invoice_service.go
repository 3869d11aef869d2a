package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/domain/statemachine"
)

// CreateInvoiceInput describes an ad-hoc invoice not tied to a contract
// installment. When LineItems is empty Total is billed as a single line.
type CreateInvoiceInput struct {
	ContactID      *int64
	CustomerUserID *int64
	ProjectID      *int64
	Title          string
	Description    string
	LineItems      []entity.LineItem
	Total          decimal.Decimal
	DueDate        *time.Time
}

// InvoiceService drives the invoice lifecycle up to the point of payment
type InvoiceService interface {
	Create(ctx context.Context, in CreateInvoiceInput) (*entity.Invoice, error)
	// CreateFromContract bills one scheduled installment of a contract and
	// marks that installment invoiced
	CreateFromContract(ctx context.Context, contractID int64, scheduleItemID string) (*entity.Invoice, error)
	Get(ctx context.Context, id int64) (*entity.Invoice, error)
	Send(ctx context.Context, id int64) (*entity.Invoice, error)
	MarkViewed(ctx context.Context, id int64) (*entity.Invoice, error)
	Cancel(ctx context.Context, id int64) (*entity.Invoice, error)
	// SweepOverdue marks up to limit past-due invoices overdue and returns how many changed
	SweepOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

type invoiceServiceImpl struct {
	invoices  port.InvoiceRepository
	contracts port.ContractRepository
	contacts  port.ContactRepository
	users     port.CustomerUserRepository
	txManager port.TransactionManager
	sink      port.NotificationSink
	logger    Logger
	now       Clock
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoices port.InvoiceRepository,
	contracts port.ContractRepository,
	contacts port.ContactRepository,
	users port.CustomerUserRepository,
	txManager port.TransactionManager,
	sink port.NotificationSink,
	logger Logger,
) InvoiceService {
	return &invoiceServiceImpl{
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

func (s *invoiceServiceImpl) Create(ctx context.Context, in CreateInvoiceInput) (*entity.Invoice, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.NewValidationError("title", "title is required")
	}
	if in.ContactID == nil && in.CustomerUserID == nil {
		return nil, apperr.NewValidationError("contact_id", "contact_id or customer_user_id is required")
	}

	items := in.LineItems
	total := decimal.Zero
	if len(items) == 0 {
		items = []entity.LineItem{{
			Description: in.Title,
			Quantity:    decimal.NewFromInt(1),
			Unit:        "ea",
			UnitPrice:   in.Total,
		}}
	}
	for i := range items {
		items[i].TotalPrice = items[i].Quantity.Mul(items[i].UnitPrice).Round(2)
		total = total.Add(items[i].TotalPrice)
	}
	if !total.IsPositive() {
		return nil, apperr.NewValidationError("total", "invoice total must be greater than zero")
	}

	now := s.now()
	inv := &entity.Invoice{
		InvoiceNumber:  NextDocumentNumber(ctx, s.invoices, entity.InvoiceNumberPrefix, now),
		ContactID:      in.ContactID,
		CustomerUserID: in.CustomerUserID,
		ProjectID:      in.ProjectID,
		Title:          in.Title,
		Description:    in.Description,
		LineItems:      items,
		Status:         entity.InvoiceStatusDraft,
		Total:          total,
		AmountPaid:     decimal.Zero,
		AmountDue:      total,
		DueDate:        in.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if inv.CustomerUserID == nil && inv.ContactID != nil {
		if user, err := s.users.GetByContactID(ctx, *inv.ContactID); err == nil && user != nil {
			inv.CustomerUserID = int64Ptr(user.ID)
		}
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, persistErr("create invoice", err)
	}
	s.logger.Info("Invoice created", "invoice_id", inv.ID, "invoice_number", inv.InvoiceNumber, "total", inv.Total.StringFixed(2))
	return inv, nil
}

func (s *invoiceServiceImpl) CreateFromContract(ctx context.Context, contractID int64, scheduleItemID string) (*entity.Invoice, error) {
	if scheduleItemID == "" {
		return nil, apperr.NewValidationError("schedule_item_id", "schedule_item_id is required")
	}

	var inv *entity.Invoice
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := s.contracts.GetByID(txCtx, contractID)
		if err != nil {
			return persistErr("get contract", err)
		}
		if c == nil {
			return apperr.NewEntityNotFoundError("contract", contractID)
		}
		if c.Status == entity.ContractStatusCancelled {
			return apperr.NewConflictError("contract", fmt.Sprintf("contract %s is cancelled", c.ContractNumber))
		}

		item, ok := c.ScheduleItem(scheduleItemID)
		if !ok {
			return apperr.NewValidationError("schedule_item_id", fmt.Sprintf("contract %s has no schedule item %s", c.ContractNumber, scheduleItemID))
		}
		if item.Status != entity.ScheduleItemStatusScheduled {
			return apperr.NewConflictError("schedule_item", fmt.Sprintf("schedule item %s is already %s", item.ID, item.Status))
		}

		now := s.now()
		due := item.DueDate
		inv = &entity.Invoice{
			InvoiceNumber:  NextDocumentNumber(txCtx, s.invoices, entity.InvoiceNumberPrefix, now),
			ContractID:     int64Ptr(c.ID),
			ScheduleItemID: item.ID,
			ContactID:      int64Ptr(c.ContactID),
			CustomerUserID: c.CustomerUserID,
			ProjectID:      c.ProjectID,
			Title:          fmt.Sprintf("%s - %s", c.Title, item.Description),
			Description:    fmt.Sprintf("Installment of contract %s", c.ContractNumber),
			LineItems: []entity.LineItem{{
				Description: item.Description,
				Quantity:    decimal.NewFromInt(1),
				Unit:        "ea",
				UnitPrice:   item.Amount,
				TotalPrice:  item.Amount,
			}},
			Status:     entity.InvoiceStatusDraft,
			Total:      item.Amount,
			AmountPaid: decimal.Zero,
			AmountDue:  item.Amount,
			DueDate:    &due,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.invoices.Create(txCtx, inv); err != nil {
			return persistErr("create invoice", err)
		}

		item.Status = entity.ScheduleItemStatusInvoiced
		c.UpdatedAt = now
		if err := s.contracts.Update(txCtx, c); err != nil {
			return persistErr("mark schedule item invoiced", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice created from contract",
		"contract_id", contractID,
		"schedule_item_id", scheduleItemID,
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber)
	return inv, nil
}

func (s *invoiceServiceImpl) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, persistErr("get invoice", err)
	}
	if inv == nil {
		return nil, apperr.NewEntityNotFoundError("invoice", id)
	}
	return inv, nil
}

func (s *invoiceServiceImpl) transition(ctx context.Context, inv *entity.Invoice, trigger statemachine.Trigger, mutate func(*entity.Invoice)) error {
	machine, err := statemachine.Invoice(inv.Status)
	if err != nil {
		return apperr.NewInvalidTransitionError("invoice", inv.Status, trigger.String(), err)
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return apperr.NewInvalidTransitionError("invoice", inv.Status, trigger.String(), err)
	}

	previous := inv.Status
	inv.Status = machine.State().String()
	inv.UpdatedAt = s.now()
	if mutate != nil {
		mutate(inv)
	}
	if err := s.invoices.Update(ctx, inv); err != nil {
		return persistErr("update invoice", err)
	}

	s.logger.Info("Invoice status changed", "invoice_id", inv.ID, "from", previous, "to", inv.Status)
	return nil
}

func (s *invoiceServiceImpl) Send(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, inv, statemachine.TriggerSend, func(i *entity.Invoice) {
		i.SentAt = timePtr(s.now())
	}); err != nil {
		return nil, err
	}

	if to, ok := resolveRecipient(ctx, s.users, s.contacts, inv.CustomerUserID, inv.ContactID); ok {
		res := s.sink.SendNewDocumentNotification(ctx, port.NewDocumentNotice{
			To:           to.Email,
			Name:         to.Name,
			DocumentType: "invoice",
			DocumentName: inv.Title,
			Number:       inv.InvoiceNumber,
		})
		logDelivery(s.logger, "Invoice notification", res, "invoice_id", inv.ID)
	}
	return inv, nil
}

func (s *invoiceServiceImpl) MarkViewed(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != entity.InvoiceStatusSent {
		return inv, nil
	}
	if err := s.transition(ctx, inv, statemachine.TriggerView, func(i *entity.Invoice) {
		i.ViewedAt = timePtr(s.now())
	}); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceServiceImpl) Cancel(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.AmountPaid.IsZero() {
		return nil, apperr.NewConflictError("invoice", fmt.Sprintf("invoice %s has payments recorded", inv.InvoiceNumber))
	}
	if err := s.transition(ctx, inv, statemachine.TriggerCancel, nil); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceServiceImpl) SweepOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	candidates, err := s.invoices.ListOverdueCandidates(ctx, now, limit)
	if err != nil {
		return 0, persistErr("list overdue invoices", err)
	}

	marked := 0
	for _, inv := range candidates {
		if !inv.IsOverdue(now) {
			continue
		}
		machine, err := statemachine.Invoice(inv.Status)
		if err != nil || !machine.CanFire(statemachine.TriggerMarkOverdue) {
			continue
		}
		if err := s.transition(ctx, inv, statemachine.TriggerMarkOverdue, nil); err != nil {
			s.logger.Error("Failed to mark invoice overdue", "invoice_id", inv.ID, "error", err)
			continue
		}
		marked++
	}
	return marked, nil
}
