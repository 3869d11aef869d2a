package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

var (
	_ port.ContactRepository      = (*contactRepo)(nil)
	_ port.AppointmentRepository  = (*appointmentRepo)(nil)
	_ port.CustomerUserRepository = (*userRepo)(nil)
	_ port.ProjectRepository      = (*projectRepo)(nil)
	_ port.EstimateRepository     = (*estimateRepo)(nil)
	_ port.ContractRepository     = (*contractRepo)(nil)
	_ port.InvoiceRepository      = (*invoiceRepo)(nil)
	_ port.PaymentRepository      = (*paymentRepo)(nil)
	_ port.TemplateRepository     = (*templateRepo)(nil)
	_ port.WorkflowRepository     = (*workflowRepo)(nil)
	_ port.TaskRepository         = (*taskRepo)(nil)
	_ port.ScheduledRunRepository = (*scheduledRunRepo)(nil)
)

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Contacts

type contactRepo struct{ s *Store }

func (r *contactRepo) Create(ctx context.Context, c *entity.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("contacts.Create"); err != nil {
		return err
	}
	c.ID = r.s.id()
	r.s.contacts[c.ID] = clonePtr(c)
	return nil
}

func (r *contactRepo) GetByID(ctx context.Context, id int64) (*entity.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.contacts[id]; ok {
		return clonePtr(c), nil
	}
	return nil, nil
}

func (r *contactRepo) GetByEmail(ctx context.Context, email string) (*entity.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range sortedIDs(r.s.contacts) {
		if r.s.contacts[id].Email == email {
			return clonePtr(r.s.contacts[id]), nil
		}
	}
	return nil, nil
}

func (r *contactRepo) Update(ctx context.Context, c *entity.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.contacts[c.ID] = clonePtr(c)
	return nil
}

func (r *contactRepo) List(ctx context.Context, limit, offset int) ([]*entity.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Contact
	for i, id := range sortedIDs(r.s.contacts) {
		if i < offset {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, clonePtr(r.s.contacts[id]))
	}
	return out, nil
}

// Appointments

type appointmentRepo struct{ s *Store }

func (r *appointmentRepo) Create(ctx context.Context, a *entity.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = r.s.id()
	r.s.appointments[a.ID] = clonePtr(a)
	return nil
}

func (r *appointmentRepo) GetByID(ctx context.Context, id int64) (*entity.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.appointments[id]; ok {
		return clonePtr(a), nil
	}
	return nil, nil
}

func (r *appointmentRepo) ListByContact(ctx context.Context, contactID int64) ([]*entity.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Appointment
	for _, id := range sortedIDs(r.s.appointments) {
		if a := r.s.appointments[id]; a.ContactID == contactID {
			out = append(out, clonePtr(a))
		}
	}
	return out, nil
}

// Customer users

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, u *entity.CustomerUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("users.Create"); err != nil {
		return err
	}
	u.ID = r.s.id()
	r.s.users[u.ID] = clonePtr(u)
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*entity.CustomerUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return clonePtr(u), nil
	}
	return nil, nil
}

func (r *userRepo) find(match func(*entity.CustomerUser) bool) *entity.CustomerUser {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range sortedIDs(r.s.users) {
		if match(r.s.users[id]) {
			return clonePtr(r.s.users[id])
		}
	}
	return nil
}

func (r *userRepo) GetByContactID(ctx context.Context, contactID int64) (*entity.CustomerUser, error) {
	r.s.mu.Lock()
	err := r.s.failure("users.GetByContactID")
	r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.find(func(u *entity.CustomerUser) bool { return u.ContactID != nil && *u.ContactID == contactID }), nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*entity.CustomerUser, error) {
	return r.find(func(u *entity.CustomerUser) bool { return u.Email == email }), nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*entity.CustomerUser, error) {
	return r.find(func(u *entity.CustomerUser) bool { return u.Username == username }), nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

// Projects

type projectRepo struct{ s *Store }

func (r *projectRepo) Create(ctx context.Context, p *entity.CustomerProject) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("projects.Create"); err != nil {
		return err
	}
	p.ID = r.s.id()
	r.s.projects[p.ID] = cloneProject(p)
	return nil
}

func (r *projectRepo) GetByID(ctx context.Context, id int64) (*entity.CustomerProject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.projects[id]; ok {
		return cloneProject(p), nil
	}
	return nil, nil
}

func (r *projectRepo) ListByCustomer(ctx context.Context, customerID int64) ([]*entity.CustomerProject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.CustomerProject
	for _, id := range sortedIDs(r.s.projects) {
		if p := r.s.projects[id]; p.CustomerID == customerID {
			out = append(out, cloneProject(p))
		}
	}
	return out, nil
}

func (r *projectRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.projects[id]; ok {
		p.Status = status
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (r *projectRepo) AddProgressUpdate(ctx context.Context, id int64, u entity.ProgressUpdate) (*entity.CustomerProject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, nil
	}
	p.AddProgressUpdate(u)
	return cloneProject(p), nil
}

func (r *projectRepo) AddDocument(ctx context.Context, id int64, d entity.ProjectDocument) (*entity.CustomerProject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, nil
	}
	p.AddDocument(d)
	return cloneProject(p), nil
}

// Estimates

type estimateRepo struct{ s *Store }

func (r *estimateRepo) LatestNumber(ctx context.Context, prefix string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("estimates.LatestNumber"); err != nil {
		return "", err
	}
	var numbers []string
	for _, e := range r.s.estimates {
		numbers = append(numbers, e.EstimateNumber)
	}
	return latestNumber(numbers, prefix), nil
}

func (r *estimateRepo) Create(ctx context.Context, e *entity.Estimate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = r.s.id()
	r.s.estimates[e.ID] = cloneEstimate(e)
	return nil
}

func (r *estimateRepo) GetByID(ctx context.Context, id int64) (*entity.Estimate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.estimates[id]; ok {
		return cloneEstimate(e), nil
	}
	return nil, nil
}

func (r *estimateRepo) Update(ctx context.Context, e *entity.Estimate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("estimates.Update"); err != nil {
		return err
	}
	r.s.estimates[e.ID] = cloneEstimate(e)
	return nil
}

func (r *estimateRepo) ListByContact(ctx context.Context, contactID int64) ([]*entity.Estimate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Estimate
	for _, id := range sortedIDs(r.s.estimates) {
		if e := r.s.estimates[id]; e.ContactID == contactID {
			out = append(out, cloneEstimate(e))
		}
	}
	return out, nil
}

// Contracts

type contractRepo struct{ s *Store }

func (r *contractRepo) LatestNumber(ctx context.Context, prefix string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var numbers []string
	for _, c := range r.s.contracts {
		numbers = append(numbers, c.ContractNumber)
	}
	return latestNumber(numbers, prefix), nil
}

func (r *contractRepo) Create(ctx context.Context, c *entity.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = r.s.id()
	r.s.contracts[c.ID] = cloneContract(c)
	return nil
}

func (r *contractRepo) GetByID(ctx context.Context, id int64) (*entity.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.contracts[id]; ok {
		return cloneContract(c), nil
	}
	return nil, nil
}

func (r *contractRepo) GetByEstimateID(ctx context.Context, estimateID int64) (*entity.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range sortedIDs(r.s.contracts) {
		if c := r.s.contracts[id]; c.EstimateID != nil && *c.EstimateID == estimateID {
			return cloneContract(c), nil
		}
	}
	return nil, nil
}

func (r *contractRepo) Update(ctx context.Context, c *entity.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.contracts[c.ID] = cloneContract(c)
	return nil
}

// Invoices

type invoiceRepo struct{ s *Store }

func (r *invoiceRepo) LatestNumber(ctx context.Context, prefix string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var numbers []string
	for _, i := range r.s.invoices {
		numbers = append(numbers, i.InvoiceNumber)
	}
	return latestNumber(numbers, prefix), nil
}

func (r *invoiceRepo) Create(ctx context.Context, i *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i.ID = r.s.id()
	r.s.invoices[i.ID] = cloneInvoice(i)
	return nil
}

func (r *invoiceRepo) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if i, ok := r.s.invoices[id]; ok {
		return cloneInvoice(i), nil
	}
	return nil, nil
}

func (r *invoiceRepo) Update(ctx context.Context, i *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invoices[i.ID] = cloneInvoice(i)
	return nil
}

func (r *invoiceRepo) ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Invoice
	for _, id := range sortedIDs(r.s.invoices) {
		i := r.s.invoices[id]
		switch i.Status {
		case entity.InvoiceStatusSent, entity.InvoiceStatusViewed, entity.InvoiceStatusPartiallyPaid:
		default:
			continue
		}
		if i.DueDate == nil || !i.DueDate.Before(now) {
			continue
		}
		out = append(out, cloneInvoice(i))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Payments

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(ctx context.Context, p *entity.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("payments.Create"); err != nil {
		return err
	}
	p.ID = r.s.id()
	r.s.payments[p.ID] = clonePtr(p)
	return nil
}

func (r *paymentRepo) GetByID(ctx context.Context, id int64) (*entity.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.payments[id]; ok {
		return clonePtr(p), nil
	}
	return nil, nil
}

func (r *paymentRepo) ListByInvoice(ctx context.Context, invoiceID int64) ([]*entity.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Payment
	for _, id := range sortedIDs(r.s.payments) {
		if p := r.s.payments[id]; p.InvoiceID == invoiceID {
			out = append(out, clonePtr(p))
		}
	}
	return out, nil
}

func (r *paymentRepo) MarkReceiptSent(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.payments[id]; ok {
		p.ReceiptSent = true
	}
	return nil
}

// Templates

type templateRepo struct{ s *Store }

func (r *templateRepo) CreateEmail(ctx context.Context, t *entity.EmailTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	r.s.emailTpls[t.ID] = clonePtr(t)
	return nil
}

func (r *templateRepo) GetEmail(ctx context.Context, id int64) (*entity.EmailTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.emailTpls[id]; ok {
		return clonePtr(t), nil
	}
	return nil, nil
}

func (r *templateRepo) ListEmail(ctx context.Context) ([]*entity.EmailTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.EmailTemplate{}
	for _, id := range sortedIDs(r.s.emailTpls) {
		out = append(out, clonePtr(r.s.emailTpls[id]))
	}
	return out, nil
}

func (r *templateRepo) CreateSms(ctx context.Context, t *entity.SmsTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	r.s.smsTpls[t.ID] = clonePtr(t)
	return nil
}

func (r *templateRepo) GetSms(ctx context.Context, id int64) (*entity.SmsTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.smsTpls[id]; ok {
		return clonePtr(t), nil
	}
	return nil, nil
}

func (r *templateRepo) ListSms(ctx context.Context) ([]*entity.SmsTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.SmsTemplate{}
	for _, id := range sortedIDs(r.s.smsTpls) {
		out = append(out, clonePtr(r.s.smsTpls[id]))
	}
	return out, nil
}

// Workflows

type workflowRepo struct{ s *Store }

func (r *workflowRepo) Create(ctx context.Context, w *entity.Workflow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w.ID = r.s.id()
	r.s.workflows[w.ID] = cloneWorkflow(w)
	return nil
}

func (r *workflowRepo) GetByID(ctx context.Context, id int64) (*entity.Workflow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("workflows.GetByID"); err != nil {
		return nil, err
	}
	if w, ok := r.s.workflows[id]; ok {
		return cloneWorkflow(w), nil
	}
	return nil, nil
}

func (r *workflowRepo) Update(ctx context.Context, w *entity.Workflow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.workflows[w.ID] = cloneWorkflow(w)
	return nil
}

func (r *workflowRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.workflows, id)
	return nil
}

func (r *workflowRepo) List(ctx context.Context) ([]*entity.Workflow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.Workflow{}
	for _, id := range sortedIDs(r.s.workflows) {
		out = append(out, cloneWorkflow(r.s.workflows[id]))
	}
	return out, nil
}

func (r *workflowRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.workflows), nil
}

func (r *workflowRepo) ListActiveByTrigger(ctx context.Context, triggerType string, condition *string) ([]*entity.Workflow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("workflows.ListActiveByTrigger"); err != nil {
		return nil, err
	}
	var out []*entity.Workflow
	for _, id := range sortedIDs(r.s.workflows) {
		w := r.s.workflows[id]
		if !w.IsActive || w.TriggerType != triggerType {
			continue
		}
		if condition != nil && (w.TriggerCondition == nil || *w.TriggerCondition != *condition) {
			continue
		}
		out = append(out, cloneWorkflow(w))
	}
	return out, nil
}

// Tasks

type taskRepo struct{ s *Store }

func (r *taskRepo) Create(ctx context.Context, t *entity.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	r.s.tasks[t.ID] = clonePtr(t)
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tasks[id]; ok {
		return clonePtr(t), nil
	}
	return nil, nil
}

func (r *taskRepo) ListOpen(ctx context.Context, limit int) ([]*entity.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Task
	for _, id := range sortedIDs(r.s.tasks) {
		if t := r.s.tasks[id]; t.Status == entity.TaskStatusOpen {
			out = append(out, clonePtr(t))
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Scheduled runs

type scheduledRunRepo struct{ s *Store }

func (r *scheduledRunRepo) Create(ctx context.Context, run *entity.ScheduledRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.scheduledRuns[run.ID] = cloneScheduledRun(run)
	r.s.runOrder = append(r.s.runOrder, run.ID)
	return nil
}

func (r *scheduledRunRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ScheduledRun
	expired := now.Add(-entity.ScheduledRunLease)
	for _, id := range r.s.runOrder {
		run := r.s.scheduledRuns[id]
		due := run.Status == entity.ScheduledRunStatusPending && !run.RunAt.After(now)
		stale := run.Status == entity.ScheduledRunStatusRunning && !run.UpdatedAt.After(expired)
		if !due && !stale {
			continue
		}
		run.Status = entity.ScheduledRunStatusRunning
		run.Attempts++
		run.UpdatedAt = now
		out = append(out, cloneScheduledRun(run))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *scheduledRunRepo) MarkCompleted(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if run, ok := r.s.scheduledRuns[id]; ok {
		run.Status = entity.ScheduledRunStatusCompleted
	}
	return nil
}

func (r *scheduledRunRepo) MarkFailed(ctx context.Context, id string, msg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if run, ok := r.s.scheduledRuns[id]; ok {
		run.Status = entity.ScheduledRunStatusFailed
		run.LastError = msg
	}
	return nil
}

// ScheduledRun returns a stored run by id for assertions
func (s *Store) ScheduledRun(id string) *entity.ScheduledRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.scheduledRuns[id]; ok {
		return cloneScheduledRun(run)
	}
	return nil
}
