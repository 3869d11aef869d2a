package container

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/action"
	"github.com/garyjia/flooring-crm/internal/application/dispatcher"
	"github.com/garyjia/flooring-crm/internal/application/emitter"
	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/application/workflow"
	infraLark "github.com/garyjia/flooring-crm/internal/infrastructure/external/lark"
	"github.com/garyjia/flooring-crm/internal/infrastructure/metrics"
	"github.com/garyjia/flooring-crm/internal/infrastructure/notification"
	"github.com/garyjia/flooring-crm/internal/infrastructure/persistence/repository"
	"github.com/garyjia/flooring-crm/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/flooring-crm/internal/infrastructure/storage"
	"github.com/garyjia/flooring-crm/internal/infrastructure/worker"
	"github.com/garyjia/flooring-crm/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// NotificationBundle holds the customer-facing sink and the staff channel.
type NotificationBundle struct {
	Sink port.NotificationSink
	// Messenger is nil when no staff channel is configured
	Messenger port.StaffMessenger
}

// EngineBundle holds the workflow engine and the scheduler it was built with.
type EngineBundle struct {
	Engine   workflow.WorkflowEngine
	Registry *action.Registry
	Memory   *workflow.MemoryScheduler
	Durable  *workflow.PersistentScheduler
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if _, err := RunMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// RunMigrations applies every pending embedded migration and returns the
// ones it ran.
func RunMigrations(ctx context.Context, db *database.DB, logger *zap.Logger) ([]database.Migration, error) {
	migrations, err := EmbeddedMigrations()
	if err != nil {
		return nil, err
	}
	ran, err := database.NewMigrator(db, logger).Up(ctx, migrations)
	if err != nil {
		return ran, fmt.Errorf("failed to run migrations: %w", err)
	}
	return ran, nil
}

// EmbeddedMigrations returns the schema files compiled into the binary.
func EmbeddedMigrations() (fs.FS, error) {
	migrations, err := fs.Sub(sqlite.Migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return migrations, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Contacts:      repository.NewContactRepository(sqlDB, logger),
		Appointments:  repository.NewAppointmentRepository(sqlDB, logger),
		Users:         repository.NewCustomerUserRepository(sqlDB, logger),
		Projects:      repository.NewProjectRepository(sqlDB, logger),
		Estimates:     repository.NewEstimateRepository(sqlDB, logger),
		Contracts:     repository.NewContractRepository(sqlDB, logger),
		Invoices:      repository.NewInvoiceRepository(sqlDB, logger),
		Payments:      repository.NewPaymentRepository(sqlDB, logger),
		Templates:     repository.NewTemplateRepository(sqlDB, logger),
		Workflows:     repository.NewWorkflowRepository(sqlDB, logger),
		Tasks:         repository.NewTaskRepository(sqlDB, logger),
		ScheduledRuns: repository.NewScheduledRunRepository(sqlDB, logger),
	}, nil
}

// ProvideNotification builds the notification sink for the configured
// provider. Lark has no SMS route, so texts fall back to the log transport.
func ProvideNotification(cfg *Config, recorder notification.Recorder, logger *zap.Logger) (*NotificationBundle, error) {
	renderer := notification.NewRenderer(notification.Config{
		FromName:    cfg.Notification.FromName,
		CompanyName: cfg.Notification.CompanyName,
		PortalURL:   cfg.Notification.PortalURL,
	})
	logTransport := notification.NewLogTransport(logger)

	switch cfg.Notification.Provider {
	case NotificationProviderLog, "":
		return &NotificationBundle{
			Sink: notification.NewSink(logTransport, renderer, recorder, logger),
		}, nil

	case NotificationProviderLark:
		sdk := infraLark.NewSDKClient(infraLark.Config{
			AppID:       cfg.Lark.AppID,
			AppSecret:   cfg.Lark.AppSecret,
			StaffChatID: cfg.Lark.StaffChatID,
		}, logger)
		messenger := infraLark.NewMessenger(infraLark.NewClient(sdk, logger), sdk.StaffChatID(), logger)

		bundle := &NotificationBundle{
			Sink: notification.NewSink(notification.NewLarkTransport(messenger, logTransport), renderer, recorder, logger),
		}
		if cfg.Lark.StaffChatID != "" {
			bundle.Messenger = messenger
		} else {
			logger.Warn("lark.staff_chat_id not set, staff alerts disabled")
		}
		return bundle, nil
	}

	return nil, fmt.Errorf("unknown notification provider %q", cfg.Notification.Provider)
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Sink      port.NotificationSink
	Emitter   service.EventEmitter
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	r := deps.Repos
	logger := NewLoggerAdapter(deps.Logger)

	return &ServiceBundle{
		Contacts:  service.NewContactService(r.Contacts, r.Appointments, deps.Emitter, logger),
		Customers: service.NewCustomerService(r.Users, r.Contacts, deps.Sink, logger),
		Projects:  service.NewProjectService(r.Projects, r.Users, deps.Sink, logger),
		Estimates: service.NewEstimateService(r.Estimates, r.Contacts, r.Users, deps.Sink, deps.Emitter, logger),
		Contracts: service.NewContractService(service.ContractDeps{
			Contracts: r.Contracts,
			Estimates: r.Estimates,
			Projects:  r.Projects,
			Contacts:  r.Contacts,
			Users:     r.Users,
			TxManager: deps.TxManager,
			Sink:      deps.Sink,
			Emitter:   deps.Emitter,
			Logger:    logger,
		}),
		Invoices:  service.NewInvoiceService(r.Invoices, r.Contracts, r.Contacts, r.Users, deps.TxManager, deps.Sink, logger),
		Payments:  service.NewPaymentService(r.Payments, r.Invoices, r.Contracts, r.Contacts, r.Users, deps.TxManager, deps.Sink, logger),
		Templates: service.NewTemplateService(r.Templates, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(NewLoggerAdapter(logger))), nil
}

// ProvideEmitter creates the business event emitter publishing on d.
func ProvideEmitter(d dispatcher.Dispatcher, repos *RepositoryBundle, cfg WorkflowConfig, logger *zap.Logger) *emitter.Emitter {
	var opts []emitter.Option
	if cfg.AsyncEvents {
		opts = append(opts, emitter.WithAsync())
	}
	return emitter.New(d, repos.Estimates, repos.Contracts, repos.Contacts, repos.Appointments, NewLoggerAdapter(logger), opts...)
}

// WorkflowDeps holds dependencies for the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	Services   *ServiceBundle
	Sink       port.NotificationSink
	Messenger  port.StaffMessenger
	Dispatcher dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	Config     *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideWorkflowEngine builds the action registry and the engine and
// subscribes the engine to every business event.
func ProvideWorkflowEngine(deps *WorkflowDeps) (*EngineBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Services == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	logger := NewLoggerAdapter(deps.Logger)

	registry, err := action.NewDefaultRegistry(action.Deps{
		Templates: deps.Services.Templates,
		Customers: deps.Services.Customers,
		Projects:  deps.Services.Projects,
		Contracts: deps.Services.Contracts,
		Invoices:  deps.Services.Invoices,
		Tasks:     deps.Repos.Tasks,
		Sink:      deps.Sink,
		Messenger: deps.Messenger,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build action registry: %w", err)
	}

	bundle := &EngineBundle{Registry: registry}
	runner := &deferredRunner{}

	var scheduler workflow.Scheduler
	if deps.Config.DelayMode == DelayModePersistent {
		bundle.Durable = workflow.NewPersistentScheduler(deps.Repos.ScheduledRuns, logger)
		scheduler = bundle.Durable
	} else {
		bundle.Memory = workflow.NewMemoryScheduler(runner, logger)
		scheduler = bundle.Memory
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(logger),
		workflow.WithScheduler(scheduler),
		workflow.WithDelayUnit(deps.Config.DelayUnit),
	}
	if deps.Metrics != nil {
		opts = append(opts, workflow.WithMetrics(deps.Metrics))
	}
	bundle.Engine = workflow.NewEngine(deps.Repos.Workflows, registry, opts...)
	runner.engine = bundle.Engine

	if deps.Dispatcher != nil {
		deps.Dispatcher.SubscribeAll("workflow-engine", bundle.Engine.HandleEvent)
	}

	return bundle, nil
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Engine   *EngineBundle
	Invoices service.InvoiceService
	Metrics  *metrics.Metrics
	Workflow *WorkflowConfig
	Invoice  *InvoiceConfig
	Logger   *zap.Logger
}

// ProvideWorkers registers the background jobs the configuration enables.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil || deps.Logger == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	manager := worker.NewManager(deps.Logger)

	if deps.Engine != nil && deps.Engine.Durable != nil {
		manager.Register(worker.NewScheduledRunWorker(
			deps.Engine.Durable,
			deps.Engine.Engine,
			deps.Workflow.PollInterval,
			deps.Workflow.BatchSize,
			deps.Logger,
		))
	}

	if deps.Invoices != nil && deps.Invoice.OverdueSweepInterval > 0 {
		var recorder worker.OverdueRecorder
		if deps.Metrics != nil {
			recorder = deps.Metrics
		}
		manager.Register(worker.NewOverdueSweeper(
			deps.Invoices,
			recorder,
			deps.Invoice.OverdueSweepInterval,
			deps.Invoice.OverdueBatchSize,
			deps.Logger,
		))
	}

	return manager, nil
}

// deferredRunner lets the memory scheduler call back into an engine that
// is built after it.
type deferredRunner struct {
	engine workflow.Runner
}

func (r *deferredRunner) RunWorkflow(ctx context.Context, workflowID int64, eventData map[string]interface{}) (*workflow.RunReport, error) {
	if r.engine == nil {
		return nil, fmt.Errorf("workflow engine not initialized")
	}
	return r.engine.RunWorkflow(ctx, workflowID, eventData)
}

// ProvideDocumentStore creates the local store for project uploads.
func ProvideDocumentStore(cfg StorageConfig, logger *zap.Logger) *storage.LocalDocumentStore {
	return storage.NewLocalDocumentStore(cfg.DocumentsDir, logger.Named("documents"))
}
