package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/domain/statemachine"
)

// CreateEstimateInput describes a new draft estimate
type CreateEstimateInput struct {
	ContactID   int64
	Title       string
	Description string
	LineItems   []entity.LineItem
	TaxRate     decimal.Decimal
	Terms       string
	ValidUntil  *time.Time
}

// EstimateService drives the estimate lifecycle
type EstimateService interface {
	Create(ctx context.Context, in CreateEstimateInput) (*entity.Estimate, error)
	Get(ctx context.Context, id int64) (*entity.Estimate, error)
	Send(ctx context.Context, id int64) (*entity.Estimate, error)
	// MarkViewed moves a sent estimate to viewed; in any other status the
	// estimate is returned unchanged
	MarkViewed(ctx context.Context, id int64) (*entity.Estimate, error)
	Respond(ctx context.Context, id int64, approve bool, notes string) (*entity.Estimate, error)
}

type estimateServiceImpl struct {
	estimates port.EstimateRepository
	contacts  port.ContactRepository
	users     port.CustomerUserRepository
	sink      port.NotificationSink
	emitter   EventEmitter
	logger    Logger
	now       Clock
}

// NewEstimateService creates a new EstimateService
func NewEstimateService(
	estimates port.EstimateRepository,
	contacts port.ContactRepository,
	users port.CustomerUserRepository,
	sink port.NotificationSink,
	emitter EventEmitter,
	logger Logger,
) EstimateService {
	if emitter == nil {
		emitter = NoopEmitter
	}
	return &estimateServiceImpl{
		estimates: estimates,
		contacts:  contacts,
		users:     users,
		sink:      sink,
		emitter:   emitter,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *estimateServiceImpl) Create(ctx context.Context, in CreateEstimateInput) (*entity.Estimate, error) {
	if in.ContactID == 0 {
		return nil, apperr.NewValidationError("contact_id", "contact_id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.NewValidationError("title", "title is required")
	}
	contact, err := s.contacts.GetByID(ctx, in.ContactID)
	if err != nil {
		return nil, persistErr("get contact", err)
	}
	if contact == nil {
		return nil, apperr.NewEntityNotFoundError("contact", in.ContactID)
	}

	now := s.now()
	est := &entity.Estimate{
		EstimateNumber: NextDocumentNumber(ctx, s.estimates, entity.EstimateNumberPrefix, now),
		ContactID:      in.ContactID,
		Title:          in.Title,
		Description:    in.Description,
		Status:         entity.EstimateStatusDraft,
		LineItems:      in.LineItems,
		TaxRate:        in.TaxRate,
		Terms:          in.Terms,
		ValidUntil:     in.ValidUntil,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if est.LineItems == nil {
		est.LineItems = []entity.LineItem{}
	}
	est.RecalculateTotals()

	if user, err := s.users.GetByContactID(ctx, in.ContactID); err == nil && user != nil {
		est.CustomerUserID = int64Ptr(user.ID)
	}

	if err := s.estimates.Create(ctx, est); err != nil {
		return nil, persistErr("create estimate", err)
	}

	s.logger.Info("Estimate created", "estimate_id", est.ID, "estimate_number", est.EstimateNumber, "total", est.Total.StringFixed(2))
	return est, nil
}

func (s *estimateServiceImpl) Get(ctx context.Context, id int64) (*entity.Estimate, error) {
	est, err := s.estimates.GetByID(ctx, id)
	if err != nil {
		return nil, persistErr("get estimate", err)
	}
	if est == nil {
		return nil, apperr.NewEntityNotFoundError("estimate", id)
	}
	return est, nil
}

// transition fires trigger on the estimate and applies mutate before saving
func (s *estimateServiceImpl) transition(ctx context.Context, est *entity.Estimate, trigger statemachine.Trigger, mutate func(*entity.Estimate)) error {
	machine, err := statemachine.Estimate(est.Status)
	if err != nil {
		return apperr.NewInvalidTransitionError("estimate", est.Status, trigger.String(), err)
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return apperr.NewInvalidTransitionError("estimate", est.Status, trigger.String(), err)
	}

	previous := est.Status
	est.Status = machine.State().String()
	est.UpdatedAt = s.now()
	if mutate != nil {
		mutate(est)
	}
	if err := s.estimates.Update(ctx, est); err != nil {
		return persistErr("update estimate", err)
	}

	s.logger.Info("Estimate status changed", "estimate_id", est.ID, "from", previous, "to", est.Status)
	return nil
}

func (s *estimateServiceImpl) Send(ctx context.Context, id int64) (*entity.Estimate, error) {
	est, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if est.CustomerUserID == nil {
		if user, err := s.users.GetByContactID(ctx, est.ContactID); err == nil && user != nil {
			est.CustomerUserID = int64Ptr(user.ID)
		}
	}

	if err := s.transition(ctx, est, statemachine.TriggerSend, func(e *entity.Estimate) {
		e.SentAt = timePtr(s.now())
	}); err != nil {
		return nil, err
	}

	if to, ok := resolveRecipient(ctx, s.users, s.contacts, est.CustomerUserID, int64Ptr(est.ContactID)); ok {
		res := s.sink.SendNewDocumentNotification(ctx, port.NewDocumentNotice{
			To:           to.Email,
			Name:         to.Name,
			DocumentType: "estimate",
			DocumentName: est.Title,
			Number:       est.EstimateNumber,
		})
		logDelivery(s.logger, "Estimate notification", res, "estimate_id", est.ID)
	}

	return est, nil
}

func (s *estimateServiceImpl) MarkViewed(ctx context.Context, id int64) (*entity.Estimate, error) {
	est, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if est.Status != entity.EstimateStatusSent {
		return est, nil
	}
	if err := s.transition(ctx, est, statemachine.TriggerView, func(e *entity.Estimate) {
		e.ViewedAt = timePtr(s.now())
	}); err != nil {
		return nil, err
	}
	return est, nil
}

func (s *estimateServiceImpl) Respond(ctx context.Context, id int64, approve bool, notes string) (*entity.Estimate, error) {
	est, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	trigger := statemachine.TriggerReject
	if approve {
		trigger = statemachine.TriggerApprove
	}
	err = s.transition(ctx, est, trigger, func(e *entity.Estimate) {
		e.CustomerNotes = notes
		if approve {
			e.ApprovedAt = timePtr(s.now())
		} else {
			e.RejectedAt = timePtr(s.now())
		}
	})
	if err != nil {
		return nil, err
	}

	if approve {
		if err := s.emitter.EstimateApproved(ctx, est.ID); err != nil {
			s.logger.Error("Estimate approval workflows failed", "estimate_id", est.ID, "error", err)
		}
	}
	return est, nil
}

// IsInvalidTransition reports whether err came from a lifecycle violation
func IsInvalidTransition(err error) bool {
	var it *apperr.InvalidTransitionError
	return errors.As(err, &it)
}
