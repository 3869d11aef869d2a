package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

// MemoryScheduler runs delayed workflows on process timers. Pending runs
// cannot be cancelled individually and are dropped when the process exits.
type MemoryScheduler struct {
	runner Runner
	logger Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewMemoryScheduler creates a scheduler that calls runner when a delay expires
func NewMemoryScheduler(runner Runner, logger Logger) *MemoryScheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MemoryScheduler{
		runner: runner,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

func (s *MemoryScheduler) Schedule(ctx context.Context, wf *entity.Workflow, eventData map[string]interface{}, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperr.NewConflictError("scheduler", "scheduler is closed")
	}

	id := uuid.NewString()
	workflowID := wf.ID
	data := copyData(eventData)
	bg := context.WithoutCancel(ctx)

	s.timers[id] = time.AfterFunc(time.Until(runAt), func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		report, err := s.runner.RunWorkflow(bg, workflowID, data)
		if err != nil {
			s.logger.Error("Delayed workflow failed", "workflow_id", workflowID, "run_id", id, "error", err)
			return
		}
		if report != nil {
			s.logger.Info("Delayed workflow finished", "workflow_id", workflowID, "run_id", id, "executed", len(report.Results))
		}
	})
	return nil
}

// Pending returns the number of runs waiting on a timer
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops all pending timers
func (s *MemoryScheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	dropped := 0
	for id, t := range s.timers {
		if t.Stop() {
			dropped++
		}
		delete(s.timers, id)
	}
	if dropped > 0 {
		s.logger.Warn("Dropped pending delayed workflows", "count", dropped)
	}
	return nil
}

// PersistentScheduler stores delayed runs so they survive a restart. A
// worker drains them with ProcessDue.
type PersistentScheduler struct {
	runs   port.ScheduledRunRepository
	logger Logger
	now    func() time.Time
}

// NewPersistentScheduler creates a scheduler backed by the scheduled run repository
func NewPersistentScheduler(runs port.ScheduledRunRepository, logger Logger) *PersistentScheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &PersistentScheduler{runs: runs, logger: logger, now: time.Now}
}

func (s *PersistentScheduler) Schedule(ctx context.Context, wf *entity.Workflow, eventData map[string]interface{}, runAt time.Time) error {
	now := s.now()
	run := &entity.ScheduledRun{
		ID:         uuid.NewString(),
		WorkflowID: wf.ID,
		EventData:  copyData(eventData),
		RunAt:      runAt,
		Status:     entity.ScheduledRunStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return apperr.NewPersistenceError("create scheduled run", err)
	}
	s.logger.Info("Scheduled run stored", "run_id", run.ID, "workflow_id", wf.ID, "run_at", runAt)
	return nil
}

// ProcessDue claims up to limit runs that are due and executes them with
// runner. It returns how many runs were claimed.
func (s *PersistentScheduler) ProcessDue(ctx context.Context, runner Runner, limit int) (int, error) {
	due, err := s.runs.ClaimDue(ctx, s.now(), limit)
	if err != nil {
		return 0, apperr.NewPersistenceError("claim scheduled runs", err)
	}

	for _, run := range due {
		if _, err := runner.RunWorkflow(ctx, run.WorkflowID, run.EventData); err != nil {
			s.logger.Error("Scheduled run failed", "run_id", run.ID, "workflow_id", run.WorkflowID, "error", err)
			if markErr := s.runs.MarkFailed(ctx, run.ID, err.Error()); markErr != nil {
				s.logger.Error("Failed to mark scheduled run failed", "run_id", run.ID, "error", markErr)
			}
			continue
		}
		if err := s.runs.MarkCompleted(ctx, run.ID); err != nil {
			s.logger.Error("Failed to mark scheduled run completed", "run_id", run.ID, "error", err)
		}
	}
	return len(due), nil
}

func copyData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
