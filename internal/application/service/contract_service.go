package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/domain/statemachine"
)

var depositRate = decimal.RequireFromString("0.25")

const finalPaymentDueDays = 30

// ContractService drives the contract lifecycle, including conversion
// from estimates and project linkage on signing
type ContractService interface {
	CreateFromEstimate(ctx context.Context, estimateID int64) (*entity.Contract, error)
	Get(ctx context.Context, id int64) (*entity.Contract, error)
	Send(ctx context.Context, id int64) (*entity.Contract, error)
	MarkViewed(ctx context.Context, id int64) (*entity.Contract, error)
	Sign(ctx context.Context, id int64, signature string) (*entity.Contract, error)
	Cancel(ctx context.Context, id int64) (*entity.Contract, error)
}

type contractServiceImpl struct {
	contracts port.ContractRepository
	estimates port.EstimateRepository
	projects  port.ProjectRepository
	contacts  port.ContactRepository
	users     port.CustomerUserRepository
	txManager port.TransactionManager
	sink      port.NotificationSink
	emitter   EventEmitter
	logger    Logger
	now       Clock
}

// ContractDeps groups the collaborators of the contract service
type ContractDeps struct {
	Contracts port.ContractRepository
	Estimates port.EstimateRepository
	Projects  port.ProjectRepository
	Contacts  port.ContactRepository
	Users     port.CustomerUserRepository
	TxManager port.TransactionManager
	Sink      port.NotificationSink
	Emitter   EventEmitter
	Logger    Logger
}

// NewContractService creates a new ContractService
func NewContractService(deps ContractDeps) ContractService {
	emitter := deps.Emitter
	if emitter == nil {
		emitter = NoopEmitter
	}
	return &contractServiceImpl{
		contracts: deps.Contracts,
		estimates: deps.Estimates,
		projects:  deps.Projects,
		contacts:  deps.Contacts,
		users:     deps.Users,
		txManager: deps.TxManager,
		sink:      deps.Sink,
		emitter:   emitter,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// BuildPaymentSchedule splits total into a 25% deposit due now and the
// remainder due 30 days later. The two amounts always sum to total.
func BuildPaymentSchedule(total decimal.Decimal, now time.Time) []entity.PaymentScheduleItem {
	deposit := total.Mul(depositRate).Round(2)
	final := total.Sub(deposit)
	return []entity.PaymentScheduleItem{
		{
			ID:          uuid.NewString(),
			Description: "Deposit (25%)",
			Amount:      deposit,
			DueDate:     now,
			Status:      entity.ScheduleItemStatusScheduled,
		},
		{
			ID:          uuid.NewString(),
			Description: "Final payment (75%)",
			Amount:      final,
			DueDate:     now.AddDate(0, 0, finalPaymentDueDays),
			Status:      entity.ScheduleItemStatusScheduled,
		},
	}
}

func (s *contractServiceImpl) CreateFromEstimate(ctx context.Context, estimateID int64) (*entity.Contract, error) {
	var contract *entity.Contract

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		est, err := s.estimates.GetByID(txCtx, estimateID)
		if err != nil {
			return persistErr("get estimate", err)
		}
		if est == nil {
			return apperr.NewEntityNotFoundError("estimate", estimateID)
		}

		existing, err := s.contracts.GetByEstimateID(txCtx, estimateID)
		if err != nil {
			return persistErr("get contract by estimate", err)
		}
		if existing != nil {
			return apperr.NewConflictError("contract", fmt.Sprintf("estimate %s already converted to contract %s", est.EstimateNumber, existing.ContractNumber))
		}

		machine, err := statemachine.Estimate(est.Status)
		if err != nil {
			return apperr.NewInvalidTransitionError("estimate", est.Status, "convert", err)
		}
		if err := machine.Fire(txCtx, statemachine.TriggerConvert); err != nil {
			return apperr.NewInvalidTransitionError("estimate", est.Status, "convert", err)
		}

		now := s.now()
		customerUserID := est.CustomerUserID
		if customerUserID == nil {
			user, err := s.users.GetByContactID(txCtx, est.ContactID)
			if err != nil {
				return persistErr("get customer by contact", err)
			}
			if user != nil {
				customerUserID = int64Ptr(user.ID)
			}
		}

		contract = &entity.Contract{
			ContractNumber:  NextDocumentNumber(txCtx, s.contracts, entity.ContractNumberPrefix, now),
			EstimateID:      int64Ptr(est.ID),
			ContactID:       est.ContactID,
			CustomerUserID:  customerUserID,
			Title:           est.Title,
			Description:     est.Description,
			Status:          entity.ContractStatusDraft,
			Amount:          est.Total,
			PaymentSchedule: BuildPaymentSchedule(est.Total, now),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		contract.Body = contractBody(est, contract.PaymentSchedule)

		if err := s.contracts.Create(txCtx, contract); err != nil {
			return persistErr("create contract", err)
		}

		est.Status = machine.State().String()
		est.UpdatedAt = now
		if err := s.estimates.Update(txCtx, est); err != nil {
			return persistErr("mark estimate converted", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Estimate converted to contract",
		"estimate_id", estimateID,
		"contract_id", contract.ID,
		"contract_number", contract.ContractNumber,
		"amount", contract.Amount.StringFixed(2))
	return contract, nil
}

func (s *contractServiceImpl) Get(ctx context.Context, id int64) (*entity.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, persistErr("get contract", err)
	}
	if contract == nil {
		return nil, apperr.NewEntityNotFoundError("contract", id)
	}
	return contract, nil
}

func (s *contractServiceImpl) fire(ctx context.Context, c *entity.Contract, trigger statemachine.Trigger) error {
	machine, err := statemachine.Contract(c.Status)
	if err != nil {
		return apperr.NewInvalidTransitionError("contract", c.Status, trigger.String(), err)
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return apperr.NewInvalidTransitionError("contract", c.Status, trigger.String(), err)
	}
	s.logger.Info("Contract status changed", "contract_id", c.ID, "from", c.Status, "to", machine.State().String())
	c.Status = machine.State().String()
	c.UpdatedAt = s.now()
	return nil
}

func (s *contractServiceImpl) Send(ctx context.Context, id int64) (*entity.Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fire(ctx, c, statemachine.TriggerSend); err != nil {
		return nil, err
	}
	c.SentAt = timePtr(s.now())
	if err := s.contracts.Update(ctx, c); err != nil {
		return nil, persistErr("update contract", err)
	}

	if to, ok := resolveRecipient(ctx, s.users, s.contacts, c.CustomerUserID, int64Ptr(c.ContactID)); ok {
		res := s.sink.SendNewDocumentNotification(ctx, port.NewDocumentNotice{
			To:           to.Email,
			Name:         to.Name,
			DocumentType: "contract",
			DocumentName: c.Title,
			Number:       c.ContractNumber,
		})
		logDelivery(s.logger, "Contract notification", res, "contract_id", c.ID)
	}
	return c, nil
}

func (s *contractServiceImpl) MarkViewed(ctx context.Context, id int64) (*entity.Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != entity.ContractStatusSent {
		return c, nil
	}
	if err := s.fire(ctx, c, statemachine.TriggerView); err != nil {
		return nil, err
	}
	c.ViewedAt = timePtr(s.now())
	if err := s.contracts.Update(ctx, c); err != nil {
		return nil, persistErr("update contract", err)
	}
	return c, nil
}

// Sign records the customer signature. If the contract already points at a
// project that project moves to in_progress; otherwise, when both the
// contact and the portal account are known, a new in_progress project is
// created and linked.
func (s *contractServiceImpl) Sign(ctx context.Context, id int64, signature string) (*entity.Contract, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, apperr.NewValidationError("signature", "signature is required")
	}

	var contract *entity.Contract
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := s.Get(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.fire(txCtx, c, statemachine.TriggerSign); err != nil {
			return err
		}

		now := s.now()
		c.CustomerSignature = signature
		c.CustomerSignedAt = timePtr(now)

		if c.CustomerUserID == nil && c.ContactID != 0 {
			user, err := s.users.GetByContactID(txCtx, c.ContactID)
			if err != nil {
				return persistErr("get customer by contact", err)
			}
			if user != nil {
				c.CustomerUserID = int64Ptr(user.ID)
			}
		}

		switch {
		case c.ProjectID != nil:
			if err := s.projects.UpdateStatus(txCtx, *c.ProjectID, entity.ProjectStatusInProgress); err != nil {
				return persistErr("start project", err)
			}
		case c.ContactID != 0 && c.CustomerUserID != nil:
			start := now
			if c.StartDate != nil {
				start = *c.StartDate
			}
			project := &entity.CustomerProject{
				CustomerID:      *c.CustomerUserID,
				ContactID:       int64Ptr(c.ContactID),
				Title:           c.Title,
				Description:     c.Description,
				Status:          entity.ProjectStatusInProgress,
				EstimatedCost:   decimal.NewNullDecimal(c.Amount),
				StartDate:       &start,
				ProgressUpdates: []entity.ProgressUpdate{},
				Documents:       []entity.ProjectDocument{},
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.projects.Create(txCtx, project); err != nil {
				return persistErr("create project", err)
			}
			c.ProjectID = int64Ptr(project.ID)
			s.logger.Info("Project created from signed contract", "contract_id", c.ID, "project_id", project.ID)
		}

		if err := s.contracts.Update(txCtx, c); err != nil {
			return persistErr("update contract", err)
		}
		contract = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.emitter.ContractSigned(ctx, contract.ID); err != nil {
		s.logger.Error("Contract signed workflows failed", "contract_id", contract.ID, "error", err)
	}
	return contract, nil
}

func (s *contractServiceImpl) Cancel(ctx context.Context, id int64) (*entity.Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fire(ctx, c, statemachine.TriggerCancel); err != nil {
		return nil, err
	}
	c.CancelledAt = timePtr(s.now())
	if err := s.contracts.Update(ctx, c); err != nil {
		return nil, persistErr("update contract", err)
	}
	return c, nil
}

func contractBody(est *entity.Estimate, schedule []entity.PaymentScheduleItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This agreement covers the work described in estimate %s: %s.\n\n", est.EstimateNumber, est.Title)
	if est.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", est.Description)
	}
	b.WriteString("Scope of work:\n")
	for _, li := range est.LineItems {
		fmt.Fprintf(&b, "- %s: %s %s @ $%s = $%s\n",
			li.Description, li.Quantity.String(), li.Unit, li.UnitPrice.StringFixed(2), li.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nContract total: $%s\n\nPayment schedule:\n", est.Total.StringFixed(2))
	for _, item := range schedule {
		fmt.Fprintf(&b, "- %s: $%s due %s\n", item.Description, item.Amount.StringFixed(2), item.DueDate.Format("2006-01-02"))
	}
	if est.Terms != "" {
		fmt.Fprintf(&b, "\nTerms:\n%s\n", est.Terms)
	}
	return b.String()
}
