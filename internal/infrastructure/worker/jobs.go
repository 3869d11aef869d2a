package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/workflow"
)

// Worker names
const (
	ScheduledRunWorkerName = "ScheduledRunWorker"
	OverdueSweeperName     = "OverdueInvoiceSweeper"
)

// DueRunProcessor drains persisted delayed runs
type DueRunProcessor interface {
	ProcessDue(ctx context.Context, runner workflow.Runner, limit int) (int, error)
}

// OverdueSweeper marks past-due invoices overdue
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

// OverdueRecorder counts invoices moved to overdue
type OverdueRecorder interface {
	InvoicesMarkedOverdue(n int)
}

// NewScheduledRunWorker polls for due delayed workflow runs and executes them
func NewScheduledRunWorker(processor DueRunProcessor, runner workflow.Runner, interval time.Duration, batchSize int, logger *zap.Logger) *Poller {
	tick := func(ctx context.Context) (int, error) {
		return processor.ProcessDue(ctx, runner, batchSize)
	}
	return NewPoller(ScheduledRunWorkerName, PollerConfig{Interval: interval, RunOnStart: true}, tick, logger)
}

// NewOverdueSweeper periodically marks unpaid invoices past their due date overdue.
// recorder may be nil.
func NewOverdueSweeper(sweeper OverdueSweeper, recorder OverdueRecorder, interval time.Duration, batchSize int, logger *zap.Logger) *Poller {
	tick := func(ctx context.Context) (int, error) {
		n, err := sweeper.SweepOverdue(ctx, time.Now(), batchSize)
		if recorder != nil {
			recorder.InvoicesMarkedOverdue(n)
		}
		return n, err
	}
	return NewPoller(OverdueSweeperName, PollerConfig{Interval: interval, RunOnStart: true}, tick, logger)
}
