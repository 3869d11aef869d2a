package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TickFunc performs one polling pass and returns how many items it handled
type TickFunc func(ctx context.Context) (int, error)

// PollerConfig holds configuration for a polling worker
type PollerConfig struct {
	Interval time.Duration
	// RunOnStart performs one pass immediately instead of waiting a full interval
	RunOnStart bool
}

// Stats is a snapshot of a poller's counters
type Stats struct {
	Ticks     int
	Processed int
	Failed    int
	LastRun   time.Time
	LastError error
}

// Poller calls tick every interval until stopped
type Poller struct {
	name   string
	config PollerConfig
	tick   TickFunc
	logger *zap.Logger

	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	stats     Stats
}

// NewPoller creates a new polling worker
func NewPoller(name string, config PollerConfig, tick TickFunc, logger *zap.Logger) *Poller {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	return &Poller{
		name:   name,
		config: config,
		tick:   tick,
		logger: logger,
	}
}

// Start begins the polling loop
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("%s already running", p.name)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.isRunning = true

	p.logger.Info("Poller started",
		zap.String("worker_name", p.name),
		zap.Duration("interval", p.config.Interval))

	go p.loop(loopCtx, p.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight pass to finish
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done

	stats := p.Stats()
	p.logger.Info("Poller stopped",
		zap.String("worker_name", p.name),
		zap.Int("processed_count", stats.Processed),
		zap.Int("failed_count", stats.Failed))
	return nil
}

// Name returns the worker name for identification
func (p *Poller) Name() string {
	return p.name
}

// Stats returns a copy of the counters
func (p *Poller) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	if p.config.RunOnStart {
		p.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Poll loop context cancelled", zap.String("worker_name", p.name))
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	n, err := p.safeTick(ctx)

	p.mu.Lock()
	p.stats.Ticks++
	p.stats.Processed += n
	p.stats.LastRun = time.Now()
	p.stats.LastError = err
	if err != nil {
		p.stats.Failed++
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("Poll pass failed", zap.String("worker_name", p.name), zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("Poll pass completed", zap.String("worker_name", p.name), zap.Int("processed", n))
	}
}

func (p *Poller) safeTick(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", p.name, r)
		}
	}()
	return p.tick(ctx)
}
