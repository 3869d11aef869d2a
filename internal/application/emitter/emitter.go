// Package emitter turns committed sales pipeline and CRM transitions into
// business events and publishes them on the dispatcher.
package emitter

import (
	"context"
	"fmt"

	"github.com/garyjia/flooring-crm/internal/application/dispatcher"
	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Emitter implements service.EventEmitter on top of the dispatcher
type Emitter struct {
	dispatcher   dispatcher.Dispatcher
	estimates    port.EstimateRepository
	contracts    port.ContractRepository
	contacts     port.ContactRepository
	appointments port.AppointmentRepository
	logger       Logger
	async        bool
}

var _ service.EventEmitter = (*Emitter)(nil)

// Option configures an Emitter
type Option func(*Emitter)

// WithAsync publishes events without waiting for workflows to finish.
// Errors from workflow runs are then only logged by the dispatcher.
func WithAsync() Option {
	return func(e *Emitter) {
		e.async = true
	}
}

// New creates an Emitter
func New(
	d dispatcher.Dispatcher,
	estimates port.EstimateRepository,
	contracts port.ContractRepository,
	contacts port.ContactRepository,
	appointments port.AppointmentRepository,
	logger Logger,
	opts ...Option,
) *Emitter {
	e := &Emitter{
		dispatcher:   d,
		estimates:    estimates,
		contracts:    contracts,
		contacts:     contacts,
		appointments: appointments,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EstimateApproved publishes estimate.approved
func (e *Emitter) EstimateApproved(ctx context.Context, estimateID int64) error {
	est, err := e.estimates.GetByID(ctx, estimateID)
	if err != nil {
		return fmt.Errorf("load estimate %d: %w", estimateID, err)
	}
	if est == nil {
		e.logger.Warn("Estimate not found, skipping event", "estimate_id", estimateID)
		return nil
	}

	payload := e.contactPayload(ctx, est.ContactID)
	payload["estimate_id"] = est.ID
	payload["estimate_number"] = est.EstimateNumber
	payload["title"] = est.Title
	payload["description"] = est.Description
	payload["total"] = est.Total.StringFixed(2)
	payload["status"] = est.Status
	setCustomer(payload, est.CustomerUserID)

	return e.publish(ctx, event.NewEvent(event.TypeEstimateApproved, est.ID, payload))
}

// ContractSigned publishes contract.signed
func (e *Emitter) ContractSigned(ctx context.Context, contractID int64) error {
	c, err := e.contracts.GetByID(ctx, contractID)
	if err != nil {
		return fmt.Errorf("load contract %d: %w", contractID, err)
	}
	if c == nil {
		e.logger.Warn("Contract not found, skipping event", "contract_id", contractID)
		return nil
	}

	payload := e.contactPayload(ctx, c.ContactID)
	payload["contract_id"] = c.ID
	payload["contract_number"] = c.ContractNumber
	payload["title"] = c.Title
	payload["description"] = c.Description
	payload["amount"] = c.Amount.StringFixed(2)
	payload["status"] = c.Status
	if c.EstimateID != nil {
		payload["estimate_id"] = *c.EstimateID
	}
	if c.ProjectID != nil {
		payload["project_id"] = *c.ProjectID
	}
	if c.CustomerSignedAt != nil {
		payload["signed_at"] = *c.CustomerSignedAt
	}
	setCustomer(payload, c.CustomerUserID)

	return e.publish(ctx, event.NewEvent(event.TypeContractSigned, c.ID, payload))
}

// FormSubmitted publishes form.submitted. Form fields are copied into the
// payload without overriding contact fields and are also kept under "form".
func (e *Emitter) FormSubmitted(ctx context.Context, contactID int64, form map[string]interface{}) error {
	contact, err := e.contacts.GetByID(ctx, contactID)
	if err != nil {
		return fmt.Errorf("load contact %d: %w", contactID, err)
	}
	if contact == nil {
		e.logger.Warn("Contact not found, skipping event", "contact_id", contactID)
		return nil
	}

	payload := contactFields(contact)
	for k, v := range form {
		if _, taken := payload[k]; !taken {
			payload[k] = v
		}
	}
	payload["form"] = form

	return e.publish(ctx, event.NewEvent(event.TypeFormSubmitted, contact.ID, payload))
}

// LeadStageChanged publishes lead.stage_changed with the new stage as the
// trigger condition
func (e *Emitter) LeadStageChanged(ctx context.Context, contactID int64, stage string) error {
	contact, err := e.contacts.GetByID(ctx, contactID)
	if err != nil {
		return fmt.Errorf("load contact %d: %w", contactID, err)
	}
	if contact == nil {
		e.logger.Warn("Contact not found, skipping event", "contact_id", contactID)
		return nil
	}

	payload := contactFields(contact)
	payload["stage"] = stage

	evt := event.NewEvent(event.TypeLeadStageChanged, contact.ID, payload).WithCondition(stage)
	return e.publish(ctx, evt)
}

// AppointmentScheduled publishes appointment.scheduled
func (e *Emitter) AppointmentScheduled(ctx context.Context, appointmentID int64) error {
	appt, err := e.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("load appointment %d: %w", appointmentID, err)
	}
	if appt == nil {
		e.logger.Warn("Appointment not found, skipping event", "appointment_id", appointmentID)
		return nil
	}

	payload := e.contactPayload(ctx, appt.ContactID)
	payload["appointment_id"] = appt.ID
	payload["appointment_title"] = appt.Title
	payload["scheduled_at"] = appt.ScheduledAt
	payload["location"] = appt.Location
	payload["notes"] = appt.Notes

	return e.publish(ctx, event.NewEvent(event.TypeAppointmentScheduled, appt.ID, payload))
}

func (e *Emitter) publish(ctx context.Context, evt *event.Event) error {
	e.logger.Info("Publishing event", "event_type", evt.Type, "entity_id", evt.EntityID, "event_id", evt.ID)
	if e.async {
		e.dispatcher.DispatchAsync(ctx, evt)
		return nil
	}
	if err := e.dispatcher.Dispatch(ctx, evt); err != nil {
		return fmt.Errorf("dispatch %s: %w", evt.Type, err)
	}
	return nil
}

// contactPayload returns the contact fields, or just contact_id when the
// contact cannot be loaded
func (e *Emitter) contactPayload(ctx context.Context, contactID int64) map[string]interface{} {
	contact, err := e.contacts.GetByID(ctx, contactID)
	if err != nil {
		e.logger.Warn("Failed to load contact for event payload", "contact_id", contactID, "error", err)
	}
	if contact == nil {
		return map[string]interface{}{"contact_id": contactID}
	}
	return contactFields(contact)
}

func contactFields(c *entity.Contact) map[string]interface{} {
	return map[string]interface{}{
		"contact_id": c.ID,
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"name":       c.FullName(),
		"email":      c.Email,
		"phone":      c.Phone,
		"address":    c.Address,
		"lead_stage": c.Stage,
	}
}

// setCustomer records the portal account, or an explicit nil so that
// create_customer_account runs before anything that needs customer_id
func setCustomer(payload map[string]interface{}, customerUserID *int64) {
	if customerUserID == nil {
		payload["customer_id"] = nil
		return
	}
	payload["customer_id"] = *customerUserID
	payload["customer_user_id"] = *customerUserID
}
