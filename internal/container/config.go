// Package container provides dependency injection and lifecycle management
// for the flooring CRM: database, repositories, services, the event bus,
// the workflow engine, background workers and the HTTP server.
package container

import (
	"fmt"
	"time"
)

// Notification providers
const (
	NotificationProviderLog  = "log"
	NotificationProviderLark = "lark"
)

// Delayed workflow modes
const (
	DelayModeMemory     = "memory"
	DelayModePersistent = "persistent"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Notification NotificationConfig
	Lark         LarkConfig
	Workflow     WorkflowConfig
	Invoice      InvoiceConfig
	Storage      StorageConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// CORSOrigins lists allowed origins; empty or "*" allows all
	CORSOrigins []string

	// FormSecret signs public contact form submissions
	FormSecret string
}

// NotificationConfig selects and configures the notification sink.
type NotificationConfig struct {
	// Provider is "log" or "lark"
	Provider    string
	FromName    string
	CompanyName string
	PortalURL   string
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID     string
	AppSecret string

	// StaffChatID receives staff alerts from create_task
	StaffChatID string
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	// DelayMode is "memory" or "persistent"
	DelayMode string

	// DelayUnit is the length of one delay hour. Only shortened in tests.
	DelayUnit time.Duration

	// PollInterval and BatchSize drive the scheduled run worker
	PollInterval time.Duration
	BatchSize    int

	// SeedFile is a YAML file of workflows inserted into an empty store
	SeedFile string

	// AsyncEvents returns from business operations before their workflows
	// finish. Workflow failures are then only logged.
	AsyncEvents bool
}

// InvoiceConfig holds invoice background job settings.
type InvoiceConfig struct {
	// OverdueSweepInterval of zero disables the sweeper
	OverdueSweepInterval time.Duration
	OverdueBatchSize     int
}

// StorageConfig holds the uploaded document location.
type StorageConfig struct {
	// DocumentsDir of "" disables project document uploads
	DocumentsDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/floorcrm.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Notification: NotificationConfig{
			Provider:    NotificationProviderLog,
			FromName:    "Flooring CRM",
			CompanyName: "Our Flooring Team",
		},
		Workflow: WorkflowConfig{
			DelayMode:    DelayModeMemory,
			DelayUnit:    time.Hour,
			PollInterval: 30 * time.Second,
			BatchSize:    20,
		},
		Invoice: InvoiceConfig{
			OverdueSweepInterval: time.Hour,
			OverdueBatchSize:     100,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Notification.Provider {
	case NotificationProviderLog:
	case NotificationProviderLark:
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when notification.provider is lark")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when notification.provider is lark")
		}
	default:
		return fmt.Errorf("unknown notification.provider %q", c.Notification.Provider)
	}

	switch c.Workflow.DelayMode {
	case DelayModeMemory:
	case DelayModePersistent:
		if c.Workflow.PollInterval <= 0 {
			return fmt.Errorf("workflow.poll_interval must be positive in persistent mode")
		}
	default:
		return fmt.Errorf("unknown workflow.delay_mode %q", c.Workflow.DelayMode)
	}

	if c.Workflow.DelayUnit <= 0 {
		return fmt.Errorf("workflow.delay_unit must be positive")
	}

	return nil
}
