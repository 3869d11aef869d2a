package port

import (
	"context"
	"time"

	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

// Repositories return (nil, nil) when a row does not exist.

// ContactRepository defines persistence operations for Contact
type ContactRepository interface {
	Create(ctx context.Context, contact *entity.Contact) error
	GetByID(ctx context.Context, id int64) (*entity.Contact, error)
	GetByEmail(ctx context.Context, email string) (*entity.Contact, error)
	Update(ctx context.Context, contact *entity.Contact) error
	List(ctx context.Context, limit, offset int) ([]*entity.Contact, error)
}

// AppointmentRepository defines persistence operations for Appointment
type AppointmentRepository interface {
	Create(ctx context.Context, appt *entity.Appointment) error
	GetByID(ctx context.Context, id int64) (*entity.Appointment, error)
	ListByContact(ctx context.Context, contactID int64) ([]*entity.Appointment, error)
}

// CustomerUserRepository defines persistence operations for CustomerUser
type CustomerUserRepository interface {
	Create(ctx context.Context, user *entity.CustomerUser) error
	GetByID(ctx context.Context, id int64) (*entity.CustomerUser, error)
	GetByContactID(ctx context.Context, contactID int64) (*entity.CustomerUser, error)
	GetByEmail(ctx context.Context, email string) (*entity.CustomerUser, error)
	GetByUsername(ctx context.Context, username string) (*entity.CustomerUser, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// ProjectRepository defines persistence operations for CustomerProject
type ProjectRepository interface {
	Create(ctx context.Context, project *entity.CustomerProject) error
	GetByID(ctx context.Context, id int64) (*entity.CustomerProject, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]*entity.CustomerProject, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	AddProgressUpdate(ctx context.Context, id int64, update entity.ProgressUpdate) (*entity.CustomerProject, error)
	AddDocument(ctx context.Context, id int64, doc entity.ProjectDocument) (*entity.CustomerProject, error)
}

// DocumentNumberSource returns the highest number issued with a prefix,
// e.g. "EST-2025-". An empty string means none exists yet.
type DocumentNumberSource interface {
	LatestNumber(ctx context.Context, prefix string) (string, error)
}

// EstimateRepository defines persistence operations for Estimate
type EstimateRepository interface {
	DocumentNumberSource
	Create(ctx context.Context, estimate *entity.Estimate) error
	GetByID(ctx context.Context, id int64) (*entity.Estimate, error)
	Update(ctx context.Context, estimate *entity.Estimate) error
	ListByContact(ctx context.Context, contactID int64) ([]*entity.Estimate, error)
}

// ContractRepository defines persistence operations for Contract
type ContractRepository interface {
	DocumentNumberSource
	Create(ctx context.Context, contract *entity.Contract) error
	GetByID(ctx context.Context, id int64) (*entity.Contract, error)
	GetByEstimateID(ctx context.Context, estimateID int64) (*entity.Contract, error)
	Update(ctx context.Context, contract *entity.Contract) error
}

// InvoiceRepository defines persistence operations for Invoice
type InvoiceRepository interface {
	DocumentNumberSource
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)
	Update(ctx context.Context, invoice *entity.Invoice) error
	ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]*entity.Invoice, error)
}

// PaymentRepository defines persistence operations for Payment
type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	GetByID(ctx context.Context, id int64) (*entity.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*entity.Payment, error)
	MarkReceiptSent(ctx context.Context, id int64) error
}

// TemplateRepository defines persistence operations for email and SMS templates
type TemplateRepository interface {
	CreateEmail(ctx context.Context, tpl *entity.EmailTemplate) error
	GetEmail(ctx context.Context, id int64) (*entity.EmailTemplate, error)
	ListEmail(ctx context.Context) ([]*entity.EmailTemplate, error)
	CreateSms(ctx context.Context, tpl *entity.SmsTemplate) error
	GetSms(ctx context.Context, id int64) (*entity.SmsTemplate, error)
	ListSms(ctx context.Context) ([]*entity.SmsTemplate, error)
}

// WorkflowRepository defines persistence operations for Workflow
type WorkflowRepository interface {
	Create(ctx context.Context, wf *entity.Workflow) error
	GetByID(ctx context.Context, id int64) (*entity.Workflow, error)
	Update(ctx context.Context, wf *entity.Workflow) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*entity.Workflow, error)
	Count(ctx context.Context) (int, error)

	// ListActiveByTrigger returns active workflows for a trigger. A non-nil
	// condition keeps only workflows whose condition equals it exactly.
	ListActiveByTrigger(ctx context.Context, triggerType string, condition *string) ([]*entity.Workflow, error)
}

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id int64) (*entity.Task, error)
	ListOpen(ctx context.Context, limit int) ([]*entity.Task, error)
}

// ScheduledRunRepository persists delayed workflow runs
type ScheduledRunRepository interface {
	Create(ctx context.Context, run *entity.ScheduledRun) error
	// ClaimDue marks up to limit pending runs with RunAt <= now as running and returns them.
	// Runs left running longer than entity.ScheduledRunLease are claimed again.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledRun, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
