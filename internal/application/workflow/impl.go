package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/flooring-crm/internal/application/action"
	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/domain/event"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	workflows port.WorkflowRepository
	handlers  HandlerLookup
	scheduler Scheduler
	metrics   Metrics
	logger    Logger
	now       func() time.Time

	// delayUnit is the length of one delay_hour; tests shrink it
	delayUnit time.Duration
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithLogger sets the engine logger
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithScheduler replaces the default in-memory scheduler
func WithScheduler(s Scheduler) EngineOption {
	return func(e *engineImpl) {
		e.scheduler = s
	}
}

// WithDelayUnit sets how long one delay hour lasts
func WithDelayUnit(d time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.delayUnit = d
	}
}

// WithClock sets the time source used for run timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine. Without WithScheduler delayed
// runs are kept on in-memory timers and are lost on restart.
func NewEngine(workflows port.WorkflowRepository, handlers HandlerLookup, opts ...EngineOption) WorkflowEngine {
	e := &engineImpl{
		workflows: workflows,
		handlers:  handlers,
		metrics:   noopMetrics{},
		logger:    noopLogger{},
		now:       time.Now,
		delayUnit: time.Hour,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.scheduler == nil {
		e.scheduler = NewMemoryScheduler(e, e.logger)
	}

	return e
}

func (e *engineImpl) RunWorkflow(ctx context.Context, workflowID int64, eventData map[string]interface{}) (*RunReport, error) {
	wf, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, apperr.NewPersistenceError("get workflow", err)
	}
	if wf == nil {
		return nil, apperr.NewEntityNotFoundError("workflow", workflowID)
	}
	if !wf.IsActive {
		e.logger.Info("Workflow inactive, not running", "workflow_id", wf.ID)
		e.metrics.WorkflowRun(wf.TriggerType, OutcomeInactive)
		return nil, nil
	}
	return e.execute(ctx, wf, eventData)
}

func (e *engineImpl) RunWorkflowsByTrigger(ctx context.Context, trigger TriggerType, eventData map[string]interface{}, condition *string) ([]Outcome, error) {
	matched, err := e.workflows.ListActiveByTrigger(ctx, trigger.String(), condition)
	if err != nil {
		return nil, apperr.NewPersistenceError("list workflows by trigger", err)
	}

	e.logger.Info("Workflows matched",
		"trigger", trigger,
		"condition", conditionString(condition),
		"count", len(matched),
	)

	outcomes := make([]Outcome, 0, len(matched))
	for _, wf := range matched {
		out := Outcome{WorkflowID: wf.ID, Name: wf.Name}

		if wf.DelayHours > 0 {
			runAt := e.now().Add(time.Duration(wf.DelayHours) * e.delayUnit)
			if err := e.scheduler.Schedule(ctx, wf, eventData, runAt); err != nil {
				e.logger.Error("Failed to schedule workflow", "workflow_id", wf.ID, "error", err)
				out.Err = err
			} else {
				e.logger.Info("Workflow scheduled", "workflow_id", wf.ID, "run_at", runAt)
				e.metrics.WorkflowRun(wf.TriggerType, OutcomeScheduled)
				out.Scheduled = true
				out.RunAt = &runAt
			}
			outcomes = append(outcomes, out)
			continue
		}

		out.Report, out.Err = e.execute(ctx, wf, eventData)
		outcomes = append(outcomes, out)
	}

	return outcomes, nil
}

func (e *engineImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}

	trigger, ok := TriggerForEvent(evt.Type)
	if !ok {
		return nil
	}

	var condition *string
	if evt.Condition != "" {
		c := evt.Condition
		condition = &c
	}

	// Workflow failures are logged inside; only a failed lookup is returned
	_, err := e.RunWorkflowsByTrigger(ctx, trigger, evt.Payload, condition)
	return err
}

// execute runs the actions of wf in order. Each action sees the event data,
// the exports of earlier actions and its own static data, which wins on
// key collisions. The first failing action stops the run; actions that
// already ran are not undone.
func (e *engineImpl) execute(ctx context.Context, wf *entity.Workflow, eventData map[string]interface{}) (*RunReport, error) {
	report := &RunReport{
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Results:      []*action.Result{},
		StartedAt:    e.now(),
	}

	runData := make(map[string]interface{}, len(eventData))
	for k, v := range eventData {
		runData[k] = v
	}

	e.logger.Info("Running workflow", "workflow_id", wf.ID, "name", wf.Name, "actions", len(wf.Actions))

	for i, step := range wf.Actions {
		h, ok := e.handlers.Lookup(step.Type)
		if !ok {
			e.logger.Warn("Unknown action type, skipping", "workflow_id", wf.ID, "index", i, "type", step.Type)
			report.Skipped = append(report.Skipped, step.Type)
			continue
		}

		input := make(action.Input, len(runData)+len(step.Data))
		for k, v := range runData {
			input[k] = v
		}
		for k, v := range step.Data {
			input[k] = v
		}

		start := time.Now()
		res, err := h.Execute(ctx, input)
		e.metrics.ActionExecuted(step.Type, err == nil && res != nil && res.Success, time.Since(start))
		if err != nil {
			report.FinishedAt = e.now()
			e.logger.Error("Workflow action failed",
				"workflow_id", wf.ID,
				"index", i,
				"type", step.Type,
				"error", err,
			)
			e.metrics.WorkflowRun(wf.TriggerType, OutcomeFailed)
			return report, fmt.Errorf("workflow %d action %d (%s): %w", wf.ID, i, step.Type, err)
		}

		if res != nil {
			report.Results = append(report.Results, res)
			for k, v := range res.Exports {
				runData[k] = v
			}
		}
	}

	report.FinishedAt = e.now()
	e.metrics.WorkflowRun(wf.TriggerType, OutcomeCompleted)
	e.logger.Info("Workflow completed",
		"workflow_id", wf.ID,
		"executed", len(report.Results),
		"skipped", len(report.Skipped),
	)
	return report, nil
}

func conditionString(c *string) string {
	if c == nil {
		return ""
	}
	return *c
}
