// Package testutil provides in-memory fakes of the application ports for
// tests across packages.
package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

// Store is an in-memory backing for every repository port. Entities are
// copied on the way in and out so callers must Update to persist changes.
type Store struct {
	mu     sync.Mutex
	nextID int64
	fail   map[string]error

	contacts      map[int64]*entity.Contact
	appointments  map[int64]*entity.Appointment
	users         map[int64]*entity.CustomerUser
	projects      map[int64]*entity.CustomerProject
	estimates     map[int64]*entity.Estimate
	contracts     map[int64]*entity.Contract
	invoices      map[int64]*entity.Invoice
	payments      map[int64]*entity.Payment
	emailTpls     map[int64]*entity.EmailTemplate
	smsTpls       map[int64]*entity.SmsTemplate
	workflows     map[int64]*entity.Workflow
	tasks         map[int64]*entity.Task
	scheduledRuns map[string]*entity.ScheduledRun
	runOrder      []string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		fail:          make(map[string]error),
		contacts:      make(map[int64]*entity.Contact),
		appointments:  make(map[int64]*entity.Appointment),
		users:         make(map[int64]*entity.CustomerUser),
		projects:      make(map[int64]*entity.CustomerProject),
		estimates:     make(map[int64]*entity.Estimate),
		contracts:     make(map[int64]*entity.Contract),
		invoices:      make(map[int64]*entity.Invoice),
		payments:      make(map[int64]*entity.Payment),
		emailTpls:     make(map[int64]*entity.EmailTemplate),
		smsTpls:       make(map[int64]*entity.SmsTemplate),
		workflows:     make(map[int64]*entity.Workflow),
		tasks:         make(map[int64]*entity.Task),
		scheduledRuns: make(map[string]*entity.ScheduledRun),
	}
}

// FailOn makes the named operation return err, e.g. "invoices.LatestNumber"
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

func (s *Store) failure(op string) error {
	return s.fail[op]
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Repos bundles every port implementation backed by one store
type Repos struct {
	Contacts      port.ContactRepository
	Appointments  port.AppointmentRepository
	Users         port.CustomerUserRepository
	Projects      port.ProjectRepository
	Estimates     port.EstimateRepository
	Contracts     port.ContractRepository
	Invoices      port.InvoiceRepository
	Payments      port.PaymentRepository
	Templates     port.TemplateRepository
	Workflows     port.WorkflowRepository
	Tasks         port.TaskRepository
	ScheduledRuns port.ScheduledRunRepository
	TxManager     *TxManager
}

// Repos returns the port implementations for this store
func (s *Store) Repos() Repos {
	return Repos{
		Contacts:      &contactRepo{s},
		Appointments:  &appointmentRepo{s},
		Users:         &userRepo{s},
		Projects:      &projectRepo{s},
		Estimates:     &estimateRepo{s},
		Contracts:     &contractRepo{s},
		Invoices:      &invoiceRepo{s},
		Payments:      &paymentRepo{s},
		Templates:     &templateRepo{s},
		Workflows:     &workflowRepo{s},
		Tasks:         &taskRepo{s},
		ScheduledRuns: &scheduledRunRepo{s},
		TxManager:     &TxManager{},
	}
}

// Count reports how many rows of a kind exist, e.g. "projects"
func (s *Store) Count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case "contacts":
		return len(s.contacts)
	case "appointments":
		return len(s.appointments)
	case "users":
		return len(s.users)
	case "projects":
		return len(s.projects)
	case "estimates":
		return len(s.estimates)
	case "contracts":
		return len(s.contracts)
	case "invoices":
		return len(s.invoices)
	case "payments":
		return len(s.payments)
	case "workflows":
		return len(s.workflows)
	case "tasks":
		return len(s.tasks)
	case "scheduled_runs":
		return len(s.scheduledRuns)
	}
	panic(fmt.Sprintf("testutil: unknown kind %q", kind))
}

// latestNumber mimics ORDER BY the numeric suffix DESC LIMIT 1
func latestNumber(numbers []string, prefix string) string {
	best, bestSeq := "", -1
	for _, n := range numbers {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimPrefix(n, prefix))
		if err != nil {
			seq = 0
		}
		if seq > bestSeq {
			best, bestSeq = n, seq
		}
	}
	return best
}

// TxManager runs fn inline and counts transactions
type TxManager struct {
	mu    sync.Mutex
	Calls int
}

func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return fn(ctx)
}

var _ port.TransactionManager = (*TxManager)(nil)
