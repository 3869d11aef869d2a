package action

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/testutil"
)

type env struct {
	store     *testutil.Store
	repos     testutil.Repos
	sink      *testutil.Sink
	messenger *testutil.Messenger
	registry  *Registry
	deps      Deps
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := testutil.NewStore()
	repos := store.Repos()
	sink := testutil.NewSink()
	logger := &testutil.Logger{}
	messenger := &testutil.Messenger{}

	deps := Deps{
		Templates: service.NewTemplateService(repos.Templates, logger),
		Customers: service.NewCustomerService(repos.Users, repos.Contacts, sink, logger),
		Projects:  service.NewProjectService(repos.Projects, repos.Users, sink, logger),
		Contracts: service.NewContractService(service.ContractDeps{
			Contracts: repos.Contracts,
			Estimates: repos.Estimates,
			Projects:  repos.Projects,
			Contacts:  repos.Contacts,
			Users:     repos.Users,
			TxManager: repos.TxManager,
			Sink:      sink,
			Logger:    logger,
		}),
		Invoices:  service.NewInvoiceService(repos.Invoices, repos.Contracts, repos.Contacts, repos.Users, repos.TxManager, sink, logger),
		Tasks:     repos.Tasks,
		Sink:      sink,
		Messenger: messenger,
		Logger:    logger,
	}
	registry, err := NewDefaultRegistry(deps)
	require.NoError(t, err)

	return &env{store: store, repos: repos, sink: sink, messenger: messenger, registry: registry, deps: deps}
}

func (e *env) run(t *testing.T, kind Kind, in Input) (*Result, error) {
	t.Helper()
	h, ok := e.registry.Lookup(string(kind))
	require.True(t, ok, "handler %s registered", kind)
	return h.Execute(context.Background(), in)
}

func (e *env) contact(t *testing.T, email string) *entity.Contact {
	t.Helper()
	c := &entity.Contact{FirstName: "Dana", LastName: "Reyes", Email: email, Phone: "555-0101"}
	require.NoError(t, e.repos.Contacts.Create(context.Background(), c))
	return c
}

func TestDefaultRegistry_HasAllKinds(t *testing.T) {
	e := newEnv(t)
	catalog := e.registry.Catalog()
	require.Len(t, catalog, len(AllKinds()))
	for i, k := range AllKinds() {
		assert.Equal(t, k, catalog[i].Kind)
		assert.NotEmpty(t, catalog[i].Label)
	}
}

func TestSendEmail_Template(t *testing.T) {
	e := newEnv(t)
	tpl, err := e.deps.Templates.CreateEmail(context.Background(), &entity.EmailTemplate{
		Name:     "Thanks",
		Subject:  "Thanks {{first_name}}",
		HTMLBody: "<p>Hi {{first_name}}, use code {{promo}} by {{deadline}}</p>",
	})
	require.NoError(t, err)

	res, err := e.run(t, KindSendEmail, Input{
		"email":       "dana@example.com",
		"first_name":  "Dana",
		"template_id": tpl.ID,
		"variables":   map[string]interface{}{"promo": "OAK10"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	sent := e.sink.Of("email")
	require.Len(t, sent, 1)
	assert.Equal(t, "dana@example.com", sent[0].To)
	assert.Equal(t, "Thanks Dana", sent[0].Subject)
	assert.Equal(t, "<p>Hi Dana, use code OAK10 by {{deadline}}</p>", sent[0].Body)
}

func TestSendEmail_Custom(t *testing.T) {
	e := newEnv(t)
	res, err := e.run(t, KindSendEmail, Input{
		"recipient_email": "ops@example.com",
		"email":           "dana@example.com",
		"custom_subject":  "Estimate {{estimate_number}} approved",
		"custom_body":     "<p>Go</p>",
		"estimate_number": "EST-2025-0003",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	sent := e.sink.Of("email")
	require.Len(t, sent, 1)
	assert.Equal(t, "ops@example.com", sent[0].To)
	assert.Equal(t, "Estimate EST-2025-0003 approved", sent[0].Subject)
}

func TestSendEmail_InputErrors(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, KindSendEmail, Input{"custom_subject": "x", "custom_body": "y"})
	assert.True(t, apperr.IsActionInput(err), "no recipient")

	_, err = e.run(t, KindSendEmail, Input{"email": "dana@example.com", "custom_subject": "only subject"})
	assert.True(t, apperr.IsActionInput(err), "no content")

	_, err = e.run(t, KindSendEmail, Input{"email": "dana@example.com", "template_id": 999})
	assert.True(t, apperr.IsNotFound(err))
	assert.Empty(t, e.sink.Sent)
}

func TestSendEmail_DeliveryFailureIsAResultNotAnError(t *testing.T) {
	e := newEnv(t)
	e.sink.Fail["email"] = true

	res, err := e.run(t, KindSendEmail, Input{"email": "dana@example.com", "custom_subject": "a", "custom_body": "b"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
}

func TestSendSMS(t *testing.T) {
	e := newEnv(t)
	tpl, err := e.deps.Templates.CreateSms(context.Background(), &entity.SmsTemplate{Name: "Reminder", Body: "Hi {{first_name}}, see you soon"})
	require.NoError(t, err)

	res, err := e.run(t, KindSendSMS, Input{"phone": "555-0101", "first_name": "Dana", "template_id": tpl.ID})
	require.NoError(t, err)
	assert.True(t, res.Success)
	sms := e.sink.Of("sms")
	require.Len(t, sms, 1)
	assert.Equal(t, "Hi Dana, see you soon", sms[0].Body)

	_, err = e.run(t, KindSendSMS, Input{"custom_body": "hello"})
	assert.True(t, apperr.IsActionInput(err))
}

func TestCreateTask(t *testing.T) {
	e := newEnv(t)

	res, err := e.run(t, KindCreateTask, Input{
		"title":        "Call {{name}}",
		"contact_id":   7,
		"due_in_hours": 24,
		"name":         "Dana Reyes",
		"assigned_to":  "sam",
	})
	require.NoError(t, err)

	task := res.Data.(*entity.Task)
	assert.Equal(t, "Call Dana Reyes", task.Title)
	assert.Equal(t, "normal", task.Priority)
	assert.Equal(t, entity.TaskStatusOpen, task.Status)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, task.ID, res.Exports["task_id"])
	require.Len(t, e.messenger.Messages, 1)
	assert.Contains(t, e.messenger.Messages[0], "Call Dana Reyes")

	_, err = e.run(t, KindCreateTask, Input{})
	assert.True(t, apperr.IsActionInput(err))
}

func TestCreateTask_MessengerFailureKeepsTask(t *testing.T) {
	e := newEnv(t)
	e.messenger.Err = assert.AnError

	res, err := e.run(t, KindCreateTask, Input{"title": "Follow up"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, e.store.Count("tasks"))
}

func TestCreateCustomerAccount(t *testing.T) {
	e := newEnv(t)
	c := e.contact(t, "dana@example.com")

	res, err := e.run(t, KindCreateCustomerAccount, Input{"contact_id": c.ID, "send_welcome_email": false})
	require.NoError(t, err)
	user := res.Data.(*entity.CustomerUser)
	assert.Equal(t, user.ID, res.Exports["customer_id"])
	assert.Empty(t, e.sink.Of("welcome"))

	again, err := e.run(t, KindCreateCustomerAccount, Input{"contact_id": c.ID})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.Data.(*entity.CustomerUser).ID)
	assert.Equal(t, 1, e.store.Count("users"))

	_, err = e.run(t, KindCreateCustomerAccount, Input{})
	assert.True(t, apperr.IsActionInput(err))
}

func TestCreateCustomerAccount_WelcomeByDefault(t *testing.T) {
	e := newEnv(t)
	c := e.contact(t, "dana@example.com")

	_, err := e.run(t, KindCreateCustomerAccount, Input{"contact_id": c.ID})
	require.NoError(t, err)
	assert.Len(t, e.sink.Of("welcome"), 1)
}

func TestCreateProject(t *testing.T) {
	e := newEnv(t)

	res, err := e.run(t, KindCreateProject, Input{
		"customer_id":    12,
		"title":          "Install",
		"estimated_cost": "4200.00",
		"square_footage": 350,
	})
	require.NoError(t, err)
	project := res.Data.(*entity.CustomerProject)
	assert.Equal(t, int64(12), project.CustomerID)
	assert.Equal(t, entity.ProjectStatusPending, project.Status)
	assert.True(t, project.EstimatedCost.Valid)
	assert.True(t, decimal.RequireFromString("4200").Equal(project.EstimatedCost.Decimal))
	assert.Equal(t, project.ID, res.Exports["project_id"])

	_, err = e.run(t, KindCreateProject, Input{"customer_id": nil, "title": "Install"})
	assert.True(t, apperr.IsActionInput(err))

	_, err = e.run(t, KindCreateProject, Input{"customer_id": 12})
	assert.True(t, apperr.IsActionInput(err))
}

// approvedEstimate stores an estimate that is ready to convert
func (e *env) approvedEstimate(t *testing.T, contactID int64, total string) *entity.Estimate {
	t.Helper()
	est := &entity.Estimate{
		EstimateNumber: "EST-2025-0001",
		ContactID:      contactID,
		Title:          "Hardwood",
		Status:         entity.EstimateStatusApproved,
		LineItems:      []entity.LineItem{},
		Total:          decimal.RequireFromString(total),
	}
	require.NoError(t, e.repos.Estimates.Create(context.Background(), est))
	return est
}

func TestConvertToContract(t *testing.T) {
	e := newEnv(t)
	c := e.contact(t, "dana@example.com")
	est := e.approvedEstimate(t, c.ID, "2000")

	res, err := e.run(t, KindConvertToContract, Input{"estimate_id": est.ID, "send_to_customer": true})
	require.NoError(t, err)

	contract := res.Data.(*entity.Contract)
	assert.Equal(t, entity.ContractStatusSent, contract.Status)
	assert.Equal(t, contract.ID, res.Exports["contract_id"])
	assert.Len(t, e.sink.Of("document"), 1)

	_, err = e.run(t, KindConvertToContract, Input{"estimate_id": est.ID})
	var conflict *apperr.ConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = e.run(t, KindConvertToContract, Input{})
	assert.True(t, apperr.IsActionInput(err))
}

func TestCreateInvoice_Installments(t *testing.T) {
	e := newEnv(t)
	c := e.contact(t, "dana@example.com")
	est := e.approvedEstimate(t, c.ID, "2000")
	converted, err := e.run(t, KindConvertToContract, Input{"estimate_id": est.ID})
	require.NoError(t, err)
	contractID := converted.Exports["contract_id"]

	deposit, err := e.run(t, KindCreateInvoice, Input{"contract_id": contractID, "installment": "next"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("500").Equal(deposit.Data.(*entity.Invoice).Total))

	final, err := e.run(t, KindCreateInvoice, Input{"contract_id": contractID, "installment": "next", "send_to_customer": true})
	require.NoError(t, err)
	inv := final.Data.(*entity.Invoice)
	assert.True(t, decimal.RequireFromString("1500").Equal(inv.Total))
	assert.Equal(t, entity.InvoiceStatusSent, inv.Status)

	_, err = e.run(t, KindCreateInvoice, Input{"contract_id": contractID, "installment": "next"})
	assert.True(t, apperr.IsActionInput(err), "nothing left to bill")

	_, err = e.run(t, KindCreateInvoice, Input{"installment": "deposit"})
	assert.True(t, apperr.IsActionInput(err), "installment without contract")
}

func TestCreateInvoice_AdHoc(t *testing.T) {
	e := newEnv(t)
	c := e.contact(t, "dana@example.com")

	// contract_id from the event alone does not select the installment path
	res, err := e.run(t, KindCreateInvoice, Input{"contact_id": c.ID, "contract_id": 99, "title": "Stair nosing", "amount": 180, "due_in_days": 14})
	require.NoError(t, err)
	inv := res.Data.(*entity.Invoice)
	assert.Nil(t, inv.ContractID)
	assert.True(t, decimal.RequireFromString("180").Equal(inv.Total))
	assert.NotNil(t, inv.DueDate)

	_, err = e.run(t, KindCreateInvoice, Input{"contact_id": c.ID, "title": "No amount"})
	assert.True(t, apperr.IsActionInput(err))
}
