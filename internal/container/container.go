package container

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/dispatcher"
	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/application/workflow"
	"github.com/garyjia/flooring-crm/internal/infrastructure/metrics"
	"github.com/garyjia/flooring-crm/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/flooring-crm/internal/infrastructure/seed"
	"github.com/garyjia/flooring-crm/internal/infrastructure/storage"
	"github.com/garyjia/flooring-crm/internal/infrastructure/worker"
	httpapi "github.com/garyjia/flooring-crm/internal/interfaces/http"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	notifications *NotificationBundle
	metrics       *metrics.Metrics
	documents     *storage.LocalDocumentStore

	// Application
	dispatcher    dispatcher.Dispatcher
	services      *ServiceBundle
	engine        *EngineBundle
	workflowStore workflow.Store

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Contacts      port.ContactRepository
	Appointments  port.AppointmentRepository
	Users         port.CustomerUserRepository
	Projects      port.ProjectRepository
	Estimates     port.EstimateRepository
	Contracts     port.ContractRepository
	Invoices      port.InvoiceRepository
	Payments      port.PaymentRepository
	Templates     port.TemplateRepository
	Workflows     port.WorkflowRepository
	Tasks         port.TaskRepository
	ScheduledRuns port.ScheduledRunRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Contacts  service.ContactService
	Customers service.CustomerService
	Projects  service.ProjectService
	Estimates service.EstimateService
	Contracts service.ContractService
	Invoices  service.InvoiceService
	Payments  service.PaymentService
	Templates service.TemplateService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing:
// 1. Database and repositories
// 2. Metrics and notification sink
// 3. Event dispatcher, application services and document storage
// 4. Action registry and workflow engine
// 5. Workflow seed
// 6. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initNotification(); err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}
	c.logger.Info("Notification sink initialized", zap.String("provider", c.config.Notification.Provider))

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if c.config.Storage.DocumentsDir != "" {
		c.documents = ProvideDocumentStore(c.config.Storage, c.logger)
		c.logger.Info("Document storage initialized", zap.String("dir", c.config.Storage.DocumentsDir))
	}

	if err := c.initWorkflow(); err != nil {
		return fmt.Errorf("failed to initialize workflow engine: %w", err)
	}
	c.logger.Info("Workflow engine initialized", zap.String("delay_mode", c.config.Workflow.DelayMode))

	if c.config.Workflow.SeedFile != "" {
		n, err := seed.LoadFile(c.ctx, c.config.Workflow.SeedFile, c.workflowStore, c.logger)
		if err != nil {
			return fmt.Errorf("failed to seed workflows: %w", err)
		}
		c.logger.Info("Workflow seed applied", zap.Int("inserted", n))
	}

	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started", zap.Int("count", c.workers.Count()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	if c.engine != nil && c.engine.Memory != nil {
		if err := c.engine.Memory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close scheduler: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	mark := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.sqlDB == nil:
		mark("database", false, "not initialized")
	default:
		if err := c.sqlDB.Ping(); err != nil {
			mark("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			mark("database", true, "")
		}
	}

	if c.workers != nil {
		// a container with no enabled jobs is still healthy
		healthy := c.workers.Count() == 0 || c.workers.IsRunning()
		mark("workers", healthy, fmt.Sprintf("worker count: %d", c.workers.Count()))
		for _, st := range c.workers.Statuses() {
			mark("worker."+st.Name, st.Running, st.Error)
		}
	} else {
		mark("workers", false, "not initialized")
	}

	mark("dispatcher", c.dispatcher != nil, "")
	mark("workflow_engine", c.engine != nil, "")

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		c.sqlDB.Close()
		return err
	}

	c.repositories = repos
	return nil
}

func (c *Container) initNotification() error {
	c.metrics = metrics.New()

	bundle, err := ProvideNotification(c.config, c.metrics, c.logger)
	if err != nil {
		return err
	}
	c.notifications = bundle
	return nil
}

func (c *Container) initServices() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	services, err := ProvideServices(&ServiceDeps{
		Repos:     c.repositories,
		TxManager: c.db,
		Sink:      c.notifications.Sink,
		Emitter:   ProvideEmitter(c.dispatcher, c.repositories, c.config.Workflow, c.logger),
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

func (c *Container) initWorkflow() error {
	bundle, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		Services:   c.services,
		Sink:       c.notifications.Sink,
		Messenger:  c.notifications.Messenger,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Config:     &c.config.Workflow,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	c.engine = bundle
	c.workflowStore = workflow.NewStore(c.repositories.Workflows, NewLoggerAdapter(c.logger))
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Engine:   c.engine,
		Invoices: c.services.Invoices,
		Metrics:  c.metrics,
		Workflow: &c.config.Workflow,
		Invoice:  &c.config.Invoice,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// HTTPServer builds the HTTP server over the started container.
func (c *Container) HTTPServer() (*httpapi.Server, error) {
	if !c.ready.Load() {
		return nil, fmt.Errorf("container not started")
	}

	cfg := httpapi.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
		CORSOrigins:  c.config.Server.CORSOrigins,
		FormSecret:   c.config.Server.FormSecret,
	}
	services := httpapi.Services{
		Workflows: c.workflowStore,
		Engine:    c.engine.Engine,
		Actions:   c.engine.Registry,
		Contacts:  c.services.Contacts,
		Customers: c.services.Customers,
		Estimates: c.services.Estimates,
		Contracts: c.services.Contracts,
		Invoices:  c.services.Invoices,
		Payments:  c.services.Payments,
		Projects:  c.services.Projects,
		Templates: c.services.Templates,
		Metrics:   c.metrics.Handler(),
	}
	if c.documents != nil {
		services.Documents = c.documents
	}
	services.Health = func() (bool, interface{}) {
		h := c.Health()
		return h.Overall, h.Components
	}
	return httpapi.NewServer(cfg, services, NewLoggerAdapter(c.logger)), nil
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	if c.engine == nil {
		return nil
	}
	return c.engine.Engine
}

// WorkflowStore returns the workflow definition store.
func (c *Container) WorkflowStore() workflow.Store {
	return c.workflowStore
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Metrics returns the prometheus collectors.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// LoggerAdapter adapts zap.Logger to the key/value Logger interfaces used by
// the application and interface layers.
type LoggerAdapter struct {
	logger *zap.Logger
}

// NewLoggerAdapter wraps logger
func NewLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (a *LoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *LoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *LoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
