package service

import (
	"context"
	"strings"
	"time"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/pkg/utils"
)

// CreateContactInput describes a new lead
type CreateContactInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Stage     string `json:"stage"`
	Source    string `json:"source"`
	Notes     string `json:"notes"`
}

// ContactFormInput is a website contact form submission
type ContactFormInput struct {
	FirstName string                 `json:"first_name"`
	LastName  string                 `json:"last_name"`
	Email     string                 `json:"email"`
	Phone     string                 `json:"phone"`
	Address   string                 `json:"address"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
}

// AppointmentInput describes an appointment to book for a contact
type AppointmentInput struct {
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Location    string    `json:"location"`
	Notes       string    `json:"notes"`
}

// ContactService handles the CRM side of the pipeline and raises the lead
// events that drive marketing workflows
type ContactService interface {
	Create(ctx context.Context, in CreateContactInput) (*entity.Contact, error)
	Get(ctx context.Context, id int64) (*entity.Contact, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Contact, error)
	// UpdateStage moves a lead on the board. The stage change event fires
	// only when the stage actually differs.
	UpdateStage(ctx context.Context, id int64, stage string) (*entity.Contact, error)
	// SubmitForm matches the submission to a contact by email, creating one
	// when none exists
	SubmitForm(ctx context.Context, in ContactFormInput) (*entity.Contact, error)
	ScheduleAppointment(ctx context.Context, contactID int64, in AppointmentInput) (*entity.Appointment, error)
}

type contactServiceImpl struct {
	contacts     port.ContactRepository
	appointments port.AppointmentRepository
	emitter      EventEmitter
	logger       Logger
	now          Clock
}

// NewContactService creates a new ContactService
func NewContactService(
	contacts port.ContactRepository,
	appointments port.AppointmentRepository,
	emitter EventEmitter,
	logger Logger,
) ContactService {
	if emitter == nil {
		emitter = NoopEmitter
	}
	return &contactServiceImpl{
		contacts:     contacts,
		appointments: appointments,
		emitter:      emitter,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *contactServiceImpl) Create(ctx context.Context, in CreateContactInput) (*entity.Contact, error) {
	if strings.TrimSpace(in.FirstName) == "" && strings.TrimSpace(in.LastName) == "" {
		return nil, apperr.NewValidationError("first_name", "a name is required")
	}
	if in.Email == "" && in.Phone == "" {
		return nil, apperr.NewValidationError("email", "email or phone is required")
	}

	email := normalizeEmail(in.Email)
	if email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			return nil, apperr.NewValidationError("email", err.Error())
		}
		existing, err := s.contacts.GetByEmail(ctx, email)
		if err != nil {
			return nil, persistErr("get contact by email", err)
		}
		if existing != nil {
			return nil, apperr.NewConflictError("contact", "a contact with this email already exists")
		}
	}

	stage := in.Stage
	if stage == "" {
		stage = entity.LeadStageNew
	}
	now := s.now()
	contact := &entity.Contact{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     email,
		Phone:     in.Phone,
		Address:   in.Address,
		Stage:     stage,
		Source:    in.Source,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, persistErr("create contact", err)
	}
	s.logger.Info("Contact created", "contact_id", contact.ID, "stage", contact.Stage)
	return contact, nil
}

func (s *contactServiceImpl) Get(ctx context.Context, id int64) (*entity.Contact, error) {
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, persistErr("get contact", err)
	}
	if contact == nil {
		return nil, apperr.NewEntityNotFoundError("contact", id)
	}
	return contact, nil
}

func (s *contactServiceImpl) List(ctx context.Context, limit, offset int) ([]*entity.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	contacts, err := s.contacts.List(ctx, limit, offset)
	if err != nil {
		return nil, persistErr("list contacts", err)
	}
	return contacts, nil
}

func (s *contactServiceImpl) UpdateStage(ctx context.Context, id int64, stage string) (*entity.Contact, error) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return nil, apperr.NewValidationError("stage", "stage is required")
	}
	contact, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if contact.Stage == stage {
		return contact, nil
	}

	previous := contact.Stage
	contact.Stage = stage
	contact.UpdatedAt = s.now()
	if err := s.contacts.Update(ctx, contact); err != nil {
		return nil, persistErr("update contact", err)
	}
	s.logger.Info("Lead stage changed", "contact_id", id, "from", previous, "to", stage)

	if err := s.emitter.LeadStageChanged(ctx, id, stage); err != nil {
		s.logger.Error("Lead stage workflows failed", "contact_id", id, "stage", stage, "error", err)
	}
	return contact, nil
}

func (s *contactServiceImpl) SubmitForm(ctx context.Context, in ContactFormInput) (*entity.Contact, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperr.NewValidationError("email", "email is required")
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, apperr.NewValidationError("email", err.Error())
	}

	contact, err := s.contacts.GetByEmail(ctx, email)
	if err != nil {
		return nil, persistErr("get contact by email", err)
	}
	if contact == nil {
		contact, err = s.Create(ctx, CreateContactInput{
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Email:     email,
			Phone:     in.Phone,
			Address:   in.Address,
			Stage:     entity.LeadStageNew,
			Source:    "website_form",
			Notes:     utils.SanitizeString(in.Message),
		})
		if err != nil {
			return nil, err
		}
	}

	form := make(map[string]interface{}, len(in.Fields)+2)
	for k, v := range in.Fields {
		form[k] = v
	}
	form["message"] = utils.SanitizeString(in.Message)
	form["phone"] = in.Phone

	if err := s.emitter.FormSubmitted(ctx, contact.ID, form); err != nil {
		s.logger.Error("Form submission workflows failed", "contact_id", contact.ID, "error", err)
	}
	return contact, nil
}

func (s *contactServiceImpl) ScheduleAppointment(ctx context.Context, contactID int64, in AppointmentInput) (*entity.Appointment, error) {
	if in.ScheduledAt.IsZero() {
		return nil, apperr.NewValidationError("scheduled_at", "scheduled_at is required")
	}
	if _, err := s.Get(ctx, contactID); err != nil {
		return nil, err
	}

	title := in.Title
	if title == "" {
		title = "In-home measurement"
	}
	appt := &entity.Appointment{
		ContactID:   contactID,
		Title:       title,
		ScheduledAt: in.ScheduledAt,
		Location:    in.Location,
		Notes:       in.Notes,
		CreatedAt:   s.now(),
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, persistErr("create appointment", err)
	}
	s.logger.Info("Appointment scheduled", "contact_id", contactID, "appointment_id", appt.ID, "scheduled_at", appt.ScheduledAt)

	if err := s.emitter.AppointmentScheduled(ctx, appt.ID); err != nil {
		s.logger.Error("Appointment workflows failed", "appointment_id", appt.ID, "error", err)
	}
	return appt, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
