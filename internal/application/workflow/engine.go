// Package workflow runs automation rules: it resolves the workflows bound to
// a trigger, merges event data with each action's static configuration and
// executes the actions in order, now or after the workflow's delay.
package workflow

import (
	"context"
	"time"

	"github.com/garyjia/flooring-crm/internal/application/action"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/domain/event"
)

// WorkflowEngine executes workflow definitions
type WorkflowEngine interface {
	// RunWorkflow runs one workflow with the given event data. It returns
	// (nil, nil) when the workflow is inactive.
	RunWorkflow(ctx context.Context, workflowID int64, eventData map[string]interface{}) (*RunReport, error)

	// RunWorkflowsByTrigger runs or schedules every active workflow bound to
	// trigger. A non-nil condition keeps only workflows whose condition
	// equals it. One workflow failing does not stop the others.
	RunWorkflowsByTrigger(ctx context.Context, trigger TriggerType, eventData map[string]interface{}, condition *string) ([]Outcome, error)

	// HandleEvent is the dispatcher subscription for business events
	HandleEvent(ctx context.Context, evt *event.Event) error
}

// Runner runs a workflow by id. Schedulers call back into it.
type Runner interface {
	RunWorkflow(ctx context.Context, workflowID int64, eventData map[string]interface{}) (*RunReport, error)
}

// HandlerLookup resolves action handlers by kind
type HandlerLookup interface {
	Lookup(kind string) (action.Handler, bool)
}

// Scheduler defers a workflow run until runAt
type Scheduler interface {
	Schedule(ctx context.Context, wf *entity.Workflow, eventData map[string]interface{}, runAt time.Time) error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Metrics receives engine measurements
type Metrics interface {
	WorkflowRun(trigger, outcome string)
	ActionExecuted(kind string, success bool, elapsed time.Duration)
}

// Workflow run outcomes reported to Metrics
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeScheduled = "scheduled"
	OutcomeInactive  = "inactive"
)

// RunReport collects the results of the actions that executed
type RunReport struct {
	WorkflowID   int64            `json:"workflow_id"`
	WorkflowName string           `json:"workflow_name"`
	Results      []*action.Result `json:"results"`
	Skipped      []string         `json:"skipped,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// Outcome is what happened to one matched workflow
type Outcome struct {
	WorkflowID int64      `json:"workflow_id"`
	Name       string     `json:"name"`
	Scheduled  bool       `json:"scheduled"`
	RunAt      *time.Time `json:"run_at,omitempty"`
	Report     *RunReport `json:"report,omitempty"`
	Err        error      `json:"-"`
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

type noopMetrics struct{}

func (noopMetrics) WorkflowRun(string, string)                 {}
func (noopMetrics) ActionExecuted(string, bool, time.Duration) {}
