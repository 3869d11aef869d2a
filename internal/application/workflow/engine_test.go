package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/flooring-crm/internal/application/action"
	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/domain/event"
	"github.com/garyjia/flooring-crm/internal/testutil"
)

// Mock implementations

type recordingHandler struct {
	kind    action.Kind
	exports map[string]interface{}
	err     error

	mu     sync.Mutex
	inputs []action.Input
}

func (h *recordingHandler) Kind() action.Kind { return h.kind }

func (h *recordingHandler) Describe() action.Descriptor {
	return action.Descriptor{Kind: h.kind, Label: string(h.kind)}
}

func (h *recordingHandler) Execute(ctx context.Context, in action.Input) (*action.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inputs = append(h.inputs, in)
	if h.err != nil {
		return nil, h.err
	}
	return &action.Result{Kind: h.kind, Success: true, Exports: h.exports}, nil
}

func (h *recordingHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inputs)
}

func (h *recordingHandler) input(i int) action.Input {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inputs[i]
}

type handlerMap map[string]action.Handler

func (m handlerMap) Lookup(kind string) (action.Handler, bool) {
	h, ok := m[kind]
	return h, ok
}

type recordingMetrics struct {
	mu      sync.Mutex
	runs    []string
	actions []string
}

func (m *recordingMetrics) WorkflowRun(trigger, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, trigger+":"+outcome)
}

func (m *recordingMetrics) ActionExecuted(kind string, success bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, kind)
}

type harness struct {
	store    *testutil.Store
	repos    testutil.Repos
	defs     Store
	email    *recordingHandler
	task     *recordingHandler
	handlers handlerMap
	logger   *testutil.Logger
}

func newHarness() *harness {
	s := testutil.NewStore()
	repos := s.Repos()
	logger := &testutil.Logger{}
	email := &recordingHandler{kind: action.KindSendEmail}
	task := &recordingHandler{kind: action.KindCreateTask, exports: map[string]interface{}{"task_id": int64(99)}}
	return &harness{
		store:    s,
		repos:    repos,
		defs:     NewStore(repos.Workflows, logger),
		email:    email,
		task:     task,
		handlers: handlerMap{string(action.KindSendEmail): email, string(action.KindCreateTask): task},
		logger:   logger,
	}
}

func (h *harness) engine(opts ...EngineOption) WorkflowEngine {
	return NewEngine(h.repos.Workflows, h.handlers, append([]EngineOption{WithLogger(h.logger)}, opts...)...)
}

func (h *harness) workflow(t *testing.T, wf *entity.Workflow) *entity.Workflow {
	t.Helper()
	if wf.Name == "" {
		wf.Name = "test workflow"
	}
	created, err := h.defs.Create(context.Background(), wf)
	require.NoError(t, err)
	return created
}

func strPtr(s string) *string { return &s }

func TestEngine_EstimateApprovalScenario(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore()
	repos := s.Repos()
	sink := testutil.NewSink()
	logger := &testutil.Logger{}

	var contact *entity.Contact
	for i := 0; i < 7; i++ {
		contact = &entity.Contact{FirstName: "Dana", LastName: "Reyes", Email: "dana@example.com"}
		if i < 6 {
			contact.Email = ""
		}
		require.NoError(t, repos.Contacts.Create(ctx, contact))
	}
	require.Equal(t, int64(7), contact.ID)

	registry, err := action.NewDefaultRegistry(action.Deps{
		Templates: service.NewTemplateService(repos.Templates, logger),
		Customers: service.NewCustomerService(repos.Users, repos.Contacts, sink, logger),
		Projects:  service.NewProjectService(repos.Projects, repos.Users, sink, logger),
		Tasks:     repos.Tasks,
		Sink:      sink,
		Logger:    logger,
	})
	require.NoError(t, err)

	defs := NewStore(repos.Workflows, logger)
	_, err = defs.Create(ctx, &entity.Workflow{
		Name:        "Onboard approved customer",
		TriggerType: string(TriggerEstimateApproval),
		IsActive:    true,
		Actions: []entity.WorkflowAction{
			{Type: "create_customer_account", Data: map[string]interface{}{"sendWelcomeEmail": false}},
			{Type: "create_project", Data: map[string]interface{}{"title": "Install"}},
		},
	})
	require.NoError(t, err)

	engine := NewEngine(repos.Workflows, registry, WithLogger(logger))
	outcomes, err := engine.RunWorkflowsByTrigger(ctx, TriggerEstimateApproval, map[string]interface{}{
		"contact_id":  int64(7),
		"customer_id": nil,
	}, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	require.Len(t, outcomes[0].Report.Results, 2)

	require.Equal(t, 1, s.Count("users"))
	user, err := repos.Users.GetByContactID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Empty(t, sink.Of("welcome"))

	require.Equal(t, 1, s.Count("projects"))
	projects, err := repos.Projects.ListByCustomer(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Install", projects[0].Title)
	assert.Equal(t, entity.ProjectStatusPending, projects[0].Status)
}

func TestEngine_RunWorkflow_InactiveHasNoEffect(t *testing.T) {
	h := newHarness()
	metrics := &recordingMetrics{}
	wf := h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerManual),
		IsActive:    false,
		Actions:     []entity.WorkflowAction{{Type: "send_email"}},
	})

	report, err := h.engine(WithMetrics(metrics)).RunWorkflow(context.Background(), wf.ID, map[string]interface{}{"email": "a@example.com"})
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Zero(t, h.email.calls())
	assert.Equal(t, []string{"manual:inactive"}, metrics.runs)
}

func TestEngine_RunWorkflow_NotFound(t *testing.T) {
	h := newHarness()
	_, err := h.engine().RunWorkflow(context.Background(), 404, nil)
	assert.True(t, apperr.IsNotFound(err))
}

func TestEngine_RunWorkflow_MergesDataInOrder(t *testing.T) {
	h := newHarness()
	wf := h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerManual),
		IsActive:    true,
		Actions: []entity.WorkflowAction{
			{Type: "create_task", Data: map[string]interface{}{"title": "Call back", "priority": "high"}},
			{Type: "send_email", Data: map[string]interface{}{"email": "override@example.com"}},
		},
	})

	eventData := map[string]interface{}{"email": "dana@example.com", "priority": "low", "contact_id": int64(3)}
	report, err := h.engine().RunWorkflow(context.Background(), wf.ID, eventData)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, wf.ID, report.WorkflowID)

	first := h.task.input(0)
	assert.Equal(t, "high", first["priority"], "action data wins over event data")
	assert.Equal(t, int64(3), first["contact_id"])

	second := h.email.input(0)
	assert.Equal(t, "override@example.com", second["email"])
	assert.Equal(t, int64(99), second["task_id"], "exports of earlier actions flow forward")
	assert.Equal(t, "low", second["priority"], "static data does not leak between actions")

	assert.NotContains(t, eventData, "task_id")
	assert.Equal(t, "dana@example.com", eventData["email"])
}

func TestEngine_RunWorkflow_UnknownActionSkipped(t *testing.T) {
	h := newHarness()
	wf := &entity.Workflow{
		Name:        "legacy",
		TriggerType: string(TriggerManual),
		IsActive:    true,
		Actions:     []entity.WorkflowAction{{Type: "send_fax"}, {Type: "send_email"}},
	}
	require.NoError(t, h.repos.Workflows.Create(context.Background(), wf))

	report, err := h.engine().RunWorkflow(context.Background(), wf.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"send_fax"}, report.Skipped)
	assert.Len(t, report.Results, 1)
	assert.Equal(t, 1, h.email.calls())
	assert.True(t, h.logger.Has("warn", "Unknown action type"))
}

func TestEngine_RunWorkflow_StopsAtFailingAction(t *testing.T) {
	h := newHarness()
	h.task.err = apperr.NewActionInputError("create_task", "title", "task title is required")
	wf := h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerManual),
		IsActive:    true,
		Actions: []entity.WorkflowAction{
			{Type: "send_email"},
			{Type: "create_task"},
			{Type: "send_email"},
		},
	})

	report, err := h.engine().RunWorkflow(context.Background(), wf.ID, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsActionInput(err))
	require.NotNil(t, report)
	assert.Len(t, report.Results, 1, "earlier actions are kept")
	assert.Equal(t, 1, h.email.calls())
}

func TestEngine_RunWorkflowsByTrigger_IsolatesFailures(t *testing.T) {
	h := newHarness()
	h.task.err = errors.New("boom")
	failing := h.workflow(t, &entity.Workflow{
		Name:        "failing",
		TriggerType: string(TriggerContractSigned),
		IsActive:    true,
		Actions:     []entity.WorkflowAction{{Type: "create_task"}},
	})
	ok := h.workflow(t, &entity.Workflow{
		Name:        "ok",
		TriggerType: string(TriggerContractSigned),
		IsActive:    true,
		Actions:     []entity.WorkflowAction{{Type: "send_email"}},
	})
	h.workflow(t, &entity.Workflow{
		Name:        "other trigger",
		TriggerType: string(TriggerFormSubmission),
		IsActive:    true,
		Actions:     []entity.WorkflowAction{{Type: "send_email"}},
	})

	outcomes, err := h.engine().RunWorkflowsByTrigger(context.Background(), TriggerContractSigned, map[string]interface{}{"contract_id": int64(1)}, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byID := map[int64]Outcome{}
	for _, o := range outcomes {
		byID[o.WorkflowID] = o
	}
	assert.Error(t, byID[failing.ID].Err)
	assert.NoError(t, byID[ok.ID].Err)
	assert.Equal(t, 1, h.email.calls())
}

func TestEngine_RunWorkflowsByTrigger_ListFailure(t *testing.T) {
	h := newHarness()
	h.store.FailOn("workflows.ListActiveByTrigger", errors.New("db locked"))

	_, err := h.engine().RunWorkflowsByTrigger(context.Background(), TriggerManual, nil, nil)
	var pe *apperr.PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestEngine_HandleEvent_MatchesConditionExactly(t *testing.T) {
	h := newHarness()
	won := h.workflow(t, &entity.Workflow{
		Name:             "won",
		TriggerType:      string(TriggerLeadStageChange),
		TriggerCondition: strPtr("won"),
		IsActive:         true,
		Actions:          []entity.WorkflowAction{{Type: "send_email", Data: map[string]interface{}{"tag": "won"}}},
	})
	h.workflow(t, &entity.Workflow{
		Name:             "lost",
		TriggerType:      string(TriggerLeadStageChange),
		TriggerCondition: strPtr("lost"),
		IsActive:         true,
		Actions:          []entity.WorkflowAction{{Type: "send_email", Data: map[string]interface{}{"tag": "lost"}}},
	})
	h.workflow(t, &entity.Workflow{
		Name:        "any stage",
		TriggerType: string(TriggerLeadStageChange),
		IsActive:    true,
		Actions:     []entity.WorkflowAction{{Type: "send_email", Data: map[string]interface{}{"tag": "any"}}},
	})
	require.NotZero(t, won.ID)

	evt := event.NewEvent(event.TypeLeadStageChanged, 5, map[string]interface{}{"contact_id": int64(5), "stage": "won"}).WithCondition("won")
	require.NoError(t, h.engine().HandleEvent(context.Background(), evt))

	require.Equal(t, 1, h.email.calls())
	assert.Equal(t, "won", h.email.input(0)["tag"])
	assert.Equal(t, int64(5), h.email.input(0)["contact_id"])
}

func TestEngine_HandleEvent_WithoutConditionRunsAll(t *testing.T) {
	h := newHarness()
	for _, cond := range []*string{nil, strPtr("kitchen")} {
		h.workflow(t, &entity.Workflow{
			TriggerType:      string(TriggerFormSubmission),
			TriggerCondition: cond,
			IsActive:         true,
			Actions:          []entity.WorkflowAction{{Type: "send_email"}},
		})
	}

	evt := event.NewEvent(event.TypeFormSubmitted, 1, map[string]interface{}{"contact_id": int64(1)})
	require.NoError(t, h.engine().HandleEvent(context.Background(), evt))
	assert.Equal(t, 2, h.email.calls())
}

func TestEngine_HandleEvent_SwallowsWorkflowErrors(t *testing.T) {
	h := newHarness()
	h.task.err = errors.New("boom")
	h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerAppointment),
		IsActive:    true,
		Actions:     []entity.WorkflowAction{{Type: "create_task"}},
	})

	evt := event.NewEvent(event.TypeAppointmentScheduled, 1, map[string]interface{}{})
	assert.NoError(t, h.engine().HandleEvent(context.Background(), evt))
	assert.True(t, h.logger.Has("error", "Workflow action failed"))

	assert.Error(t, h.engine().HandleEvent(context.Background(), nil))
}

func TestEngine_DelayedRun_InMemory(t *testing.T) {
	h := newHarness()
	h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerEstimateApproval),
		IsActive:    true,
		DelayHours:  2,
		Actions:     []entity.WorkflowAction{{Type: "send_email"}},
	})

	engine := h.engine(WithDelayUnit(5 * time.Millisecond))
	outcomes, err := engine.RunWorkflowsByTrigger(context.Background(), TriggerEstimateApproval, map[string]interface{}{"estimate_id": int64(4)}, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Scheduled)
	assert.NotNil(t, outcomes[0].RunAt)
	assert.Nil(t, outcomes[0].Report)

	require.Eventually(t, func() bool { return h.email.calls() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(4), h.email.input(0)["estimate_id"])
}

func TestEngine_DelayedRun_SkippedWhenDeactivated(t *testing.T) {
	h := newHarness()
	wf := h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerEstimateApproval),
		IsActive:    true,
		DelayHours:  1,
		Actions:     []entity.WorkflowAction{{Type: "send_email"}},
	})

	sched := &captureScheduler{}
	engine := h.engine(WithScheduler(sched))
	_, err := engine.RunWorkflowsByTrigger(context.Background(), TriggerEstimateApproval, nil, nil)
	require.NoError(t, err)
	require.Len(t, sched.workflows, 1)

	wf.IsActive = false
	_, err = h.defs.Update(context.Background(), wf.ID, wf)
	require.NoError(t, err)

	report, err := engine.RunWorkflow(context.Background(), sched.workflows[0], nil)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Zero(t, h.email.calls())
}

type captureScheduler struct {
	workflows []int64
	runAt     []time.Time
}

func (c *captureScheduler) Schedule(ctx context.Context, wf *entity.Workflow, data map[string]interface{}, runAt time.Time) error {
	c.workflows = append(c.workflows, wf.ID)
	c.runAt = append(c.runAt, runAt)
	return nil
}

func TestEngine_DelayedRun_Persistent(t *testing.T) {
	h := newHarness()
	h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerContractSigned),
		IsActive:    true,
		DelayHours:  24,
		Actions:     []entity.WorkflowAction{{Type: "send_email"}},
	})

	sched := NewPersistentScheduler(h.repos.ScheduledRuns, h.logger)
	engine := h.engine(WithScheduler(sched))

	before := time.Now()
	outcomes, err := engine.RunWorkflowsByTrigger(context.Background(), TriggerContractSigned, map[string]interface{}{"contract_id": int64(8)}, nil)
	require.NoError(t, err)
	require.True(t, outcomes[0].Scheduled)
	assert.WithinDuration(t, before.Add(24*time.Hour), *outcomes[0].RunAt, time.Minute)
	assert.Equal(t, 1, h.store.Count("scheduled_runs"))

	processed, err := sched.ProcessDue(context.Background(), engine, 10)
	require.NoError(t, err)
	assert.Zero(t, processed, "not due yet")

	sched.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	processed, err = sched.ProcessDue(context.Background(), engine, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.Equal(t, 1, h.email.calls())
	assert.Equal(t, int64(8), h.email.input(0)["contract_id"])
}

func TestPersistentScheduler_MarksFailures(t *testing.T) {
	h := newHarness()
	h.task.err = errors.New("boom")
	wf := h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerManual),
		IsActive:    true,
		DelayHours:  1,
		Actions:     []entity.WorkflowAction{{Type: "create_task"}},
	})

	sched := NewPersistentScheduler(h.repos.ScheduledRuns, h.logger)
	require.NoError(t, sched.Schedule(context.Background(), wf, nil, time.Now().Add(-time.Minute)))

	processed, err := sched.ProcessDue(context.Background(), h.engine(WithScheduler(sched)), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	runs, err := h.repos.ScheduledRuns.ClaimDue(context.Background(), time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs, "failed runs are not retried")
}

func TestPersistentScheduler_ReclaimsExpiredLease(t *testing.T) {
	h := newHarness()
	wf := h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerManual),
		IsActive:    true,
		DelayHours:  1,
		Actions:     []entity.WorkflowAction{{Type: "create_task"}},
	})
	now := time.Now()
	require.NoError(t, h.repos.ScheduledRuns.Create(context.Background(), &entity.ScheduledRun{
		ID:         "crashed",
		WorkflowID: wf.ID,
		RunAt:      now.Add(-time.Hour),
		Status:     entity.ScheduledRunStatusRunning,
		Attempts:   1,
		CreatedAt:  now.Add(-2 * time.Hour),
		UpdatedAt:  now.Add(-time.Hour),
	}))

	sched := NewPersistentScheduler(h.repos.ScheduledRuns, h.logger)
	processed, err := sched.ProcessDue(context.Background(), h.engine(WithScheduler(sched)), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, h.task.calls())

	run := h.store.ScheduledRun("crashed")
	require.NotNil(t, run)
	assert.Equal(t, entity.ScheduledRunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.Attempts)
}

func TestMemoryScheduler_Close(t *testing.T) {
	h := newHarness()
	wf := h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerManual),
		IsActive:    true,
		Actions:     []entity.WorkflowAction{{Type: "send_email"}},
	})

	sched := NewMemoryScheduler(h.engine(), h.logger)
	require.NoError(t, sched.Schedule(context.Background(), wf, nil, time.Now().Add(time.Hour)))
	assert.Equal(t, 1, sched.Pending())

	require.NoError(t, sched.Close())
	assert.Zero(t, sched.Pending())
	assert.Error(t, sched.Schedule(context.Background(), wf, nil, time.Now()))
}

func TestEngine_Metrics(t *testing.T) {
	h := newHarness()
	metrics := &recordingMetrics{}
	wf := h.workflow(t, &entity.Workflow{
		TriggerType: string(TriggerManual),
		IsActive:    true,
		Actions:     []entity.WorkflowAction{{Type: "create_task"}, {Type: "send_email"}},
	})

	_, err := h.engine(WithMetrics(metrics)).RunWorkflow(context.Background(), wf.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"create_task", "send_email"}, metrics.actions)
	assert.Equal(t, []string{"manual:completed"}, metrics.runs)
}
