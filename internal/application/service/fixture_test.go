package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type recordingEmitter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (e *recordingEmitter) add(call string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
	return e.err
}

func (e *recordingEmitter) EstimateApproved(_ context.Context, id int64) error {
	return e.add(fmt.Sprintf("estimate_approved:%d", id))
}

func (e *recordingEmitter) ContractSigned(_ context.Context, id int64) error {
	return e.add(fmt.Sprintf("contract_signed:%d", id))
}

func (e *recordingEmitter) FormSubmitted(_ context.Context, contactID int64, _ map[string]interface{}) error {
	return e.add(fmt.Sprintf("form_submitted:%d", contactID))
}

func (e *recordingEmitter) LeadStageChanged(_ context.Context, contactID int64, stage string) error {
	return e.add(fmt.Sprintf("lead_stage_changed:%d:%s", contactID, stage))
}

func (e *recordingEmitter) AppointmentScheduled(_ context.Context, id int64) error {
	return e.add(fmt.Sprintf("appointment_scheduled:%d", id))
}

type fixture struct {
	store   *testutil.Store
	repos   testutil.Repos
	sink    *testutil.Sink
	logger  *testutil.Logger
	emitter *recordingEmitter

	customers CustomerService
	projects  ProjectService
	estimates EstimateService
	contracts ContractService
	invoices  InvoiceService
	payments  PaymentService
	contacts  ContactService
	templates TemplateService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	repos := store.Repos()
	f := &fixture{
		store:   store,
		repos:   repos,
		sink:    testutil.NewSink(),
		logger:  &testutil.Logger{},
		emitter: &recordingEmitter{},
	}
	clock := func() time.Time { return fixedNow }

	customers := NewCustomerService(repos.Users, repos.Contacts, f.sink, f.logger).(*customerServiceImpl)
	customers.now = clock
	projects := NewProjectService(repos.Projects, repos.Users, f.sink, f.logger).(*projectServiceImpl)
	projects.now = clock
	estimates := NewEstimateService(repos.Estimates, repos.Contacts, repos.Users, f.sink, f.emitter, f.logger).(*estimateServiceImpl)
	estimates.now = clock
	contracts := NewContractService(ContractDeps{
		Contracts: repos.Contracts,
		Estimates: repos.Estimates,
		Projects:  repos.Projects,
		Contacts:  repos.Contacts,
		Users:     repos.Users,
		TxManager: repos.TxManager,
		Sink:      f.sink,
		Emitter:   f.emitter,
		Logger:    f.logger,
	}).(*contractServiceImpl)
	contracts.now = clock
	invoices := NewInvoiceService(repos.Invoices, repos.Contracts, repos.Contacts, repos.Users, repos.TxManager, f.sink, f.logger).(*invoiceServiceImpl)
	invoices.now = clock
	payments := NewPaymentService(repos.Payments, repos.Invoices, repos.Contracts, repos.Contacts, repos.Users, repos.TxManager, f.sink, f.logger).(*paymentServiceImpl)
	payments.now = clock
	contacts := NewContactService(repos.Contacts, repos.Appointments, f.emitter, f.logger).(*contactServiceImpl)
	contacts.now = clock
	templates := NewTemplateService(repos.Templates, f.logger).(*templateServiceImpl)
	templates.now = clock

	f.customers, f.projects, f.estimates, f.contracts = customers, projects, estimates, contracts
	f.invoices, f.payments, f.contacts, f.templates = invoices, payments, contacts, templates
	return f
}

func (f *fixture) contact(t *testing.T, email string) *entity.Contact {
	t.Helper()
	c := &entity.Contact{FirstName: "Dana", LastName: "Reyes", Email: email, Phone: "555-0101", Stage: entity.LeadStageNew}
	require.NoError(t, f.repos.Contacts.Create(context.Background(), c))
	return c
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// approvedEstimate creates an estimate for contact and walks it to approved
func (f *fixture) approvedEstimate(t *testing.T, contactID int64, unitPrice string) *entity.Estimate {
	t.Helper()
	ctx := context.Background()
	est, err := f.estimates.Create(ctx, CreateEstimateInput{
		ContactID: contactID,
		Title:     "Living room hardwood",
		LineItems: []entity.LineItem{
			{Description: "Oak planks", Quantity: dec("1"), Unit: "lot", UnitPrice: dec(unitPrice)},
		},
	})
	require.NoError(t, err)
	_, err = f.estimates.Send(ctx, est.ID)
	require.NoError(t, err)
	est, err = f.estimates.Respond(ctx, est.ID, true, "Looks good")
	require.NoError(t, err)
	return est
}

func itoa(v int64) string {
	return fmt.Sprintf("%d", v)
}

func (e *recordingEmitter) callsWithPrefix(prefix string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, c := range e.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c)
		}
	}
	return out
}
