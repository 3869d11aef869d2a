package emitter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/flooring-crm/internal/application/dispatcher"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/domain/event"
	"github.com/garyjia/flooring-crm/internal/testutil"
)

type captured struct {
	mu     sync.Mutex
	events []*event.Event
}

func (c *captured) handler(_ context.Context, evt *event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *captured) all() []*event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*event.Event(nil), c.events...)
}

type setup struct {
	repos    testutil.Repos
	captured *captured
	emitter  *Emitter
	contact  *entity.Contact
}

func newSetup(t *testing.T, opts ...Option) *setup {
	t.Helper()
	repos := testutil.NewStore().Repos()
	d := dispatcher.NewDispatcher()
	t.Cleanup(func() { _ = d.Close() })

	c := &captured{}
	d.SubscribeAll("capture", c.handler)

	contact := &entity.Contact{FirstName: "Dana", LastName: "Reyes", Email: "dana@example.com", Stage: entity.LeadStageNew}
	require.NoError(t, repos.Contacts.Create(context.Background(), contact))

	return &setup{
		repos:    repos,
		captured: c,
		emitter:  New(d, repos.Estimates, repos.Contracts, repos.Contacts, repos.Appointments, &testutil.Logger{}, opts...),
		contact:  contact,
	}
}

func TestEmitter_EstimateApproved(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	est := &entity.Estimate{ContactID: s.contact.ID, EstimateNumber: "EST-2025-0001", Title: "Hardwood", Status: entity.EstimateStatusApproved, Total: decimal.RequireFromString("1234.5")}
	require.NoError(t, s.repos.Estimates.Create(ctx, est))

	require.NoError(t, s.emitter.EstimateApproved(ctx, est.ID))

	events := s.captured.all()
	require.Len(t, events, 1)
	evt := events[0]
	assert.Equal(t, event.TypeEstimateApproved, evt.Type)
	assert.Equal(t, est.ID, evt.EntityID)
	assert.Equal(t, s.contact.ID, evt.GetPayloadInt("contact_id"))
	assert.Equal(t, "dana@example.com", evt.GetPayloadString("email"))
	assert.Equal(t, "1234.50", evt.GetPayloadString("total"))
	v, present := evt.Payload["customer_id"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.Empty(t, evt.Condition)
}

func TestEmitter_ContractSigned(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	userID, projectID := int64(31), int64(41)
	c := &entity.Contract{ContactID: s.contact.ID, ContractNumber: "CTR-2025-0001", CustomerUserID: &userID, ProjectID: &projectID, Status: entity.ContractStatusSigned}
	require.NoError(t, s.repos.Contracts.Create(ctx, c))

	require.NoError(t, s.emitter.ContractSigned(ctx, c.ID))

	events := s.captured.all()
	require.Len(t, events, 1)
	assert.Equal(t, int64(31), events[0].GetPayloadInt("customer_id"))
	assert.Equal(t, int64(41), events[0].GetPayloadInt("project_id"))
	assert.Equal(t, "CTR-2025-0001", events[0].GetPayloadString("contract_number"))
}

func TestEmitter_LeadStageChangedCarriesCondition(t *testing.T) {
	s := newSetup(t)

	require.NoError(t, s.emitter.LeadStageChanged(context.Background(), s.contact.ID, entity.LeadStageQualified))

	events := s.captured.all()
	require.Len(t, events, 1)
	assert.Equal(t, entity.LeadStageQualified, events[0].Condition)
	assert.Equal(t, entity.LeadStageQualified, events[0].GetPayloadString("stage"))
}

func TestEmitter_FormSubmittedKeepsContactFields(t *testing.T) {
	s := newSetup(t)
	form := map[string]interface{}{"email": "spoof@example.com", "room_size": "300 sqft"}

	require.NoError(t, s.emitter.FormSubmitted(context.Background(), s.contact.ID, form))

	evt := s.captured.all()[0]
	assert.Equal(t, "dana@example.com", evt.GetPayloadString("email"))
	assert.Equal(t, "300 sqft", evt.GetPayloadString("room_size"))
	assert.Equal(t, form, evt.Payload["form"])
}

func TestEmitter_AppointmentScheduled(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	appt := &entity.Appointment{ContactID: s.contact.ID, Title: "Measure", ScheduledAt: time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, s.repos.Appointments.Create(ctx, appt))

	require.NoError(t, s.emitter.AppointmentScheduled(ctx, appt.ID))

	evt := s.captured.all()[0]
	assert.Equal(t, event.TypeAppointmentScheduled, evt.Type)
	assert.Equal(t, appt.ID, evt.GetPayloadInt("appointment_id"))
	assert.Equal(t, "Dana Reyes", evt.GetPayloadString("name"))
}

func TestEmitter_MissingEntityIsNoop(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()

	assert.NoError(t, s.emitter.EstimateApproved(ctx, 404))
	assert.NoError(t, s.emitter.ContractSigned(ctx, 404))
	assert.NoError(t, s.emitter.FormSubmitted(ctx, 404, nil))
	assert.NoError(t, s.emitter.LeadStageChanged(ctx, 404, "won"))
	assert.NoError(t, s.emitter.AppointmentScheduled(ctx, 404))
	assert.Empty(t, s.captured.all())
}

func TestEmitter_HandlerErrorsSurfaceWhenSynchronous(t *testing.T) {
	repos := testutil.NewStore().Repos()
	d := dispatcher.NewDispatcher()
	defer d.Close()
	d.Subscribe(event.TypeLeadStageChanged, "failing", func(context.Context, *event.Event) error {
		return errors.New("workflow blew up")
	})
	contact := &entity.Contact{FirstName: "Dana"}
	require.NoError(t, repos.Contacts.Create(context.Background(), contact))
	e := New(d, repos.Estimates, repos.Contracts, repos.Contacts, repos.Appointments, &testutil.Logger{})

	err := e.LeadStageChanged(context.Background(), contact.ID, "won")
	assert.ErrorContains(t, err, "workflow blew up")
}

func TestEmitter_Async(t *testing.T) {
	repos := testutil.NewStore().Repos()
	d := dispatcher.NewDispatcher()
	c := &captured{}
	d.SubscribeAll("capture", c.handler)
	contact := &entity.Contact{FirstName: "Dana"}
	require.NoError(t, repos.Contacts.Create(context.Background(), contact))
	e := New(d, repos.Estimates, repos.Contracts, repos.Contacts, repos.Appointments, &testutil.Logger{}, WithAsync())

	require.NoError(t, e.LeadStageChanged(context.Background(), contact.ID, "won"))
	require.NoError(t, d.Close())

	assert.Len(t, c.all(), 1)
}
