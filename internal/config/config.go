// Package config loads the service configuration from a YAML file, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix namespaces environment overrides, e.g. FLOORCRM_SERVER_PORT
const EnvPrefix = "FLOORCRM"

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Notification NotificationConfig `mapstructure:"notification"`
	Lark         LarkConfig         `mapstructure:"lark"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Invoice      InvoiceConfig      `mapstructure:"invoice"`
	Storage      StorageConfig      `mapstructure:"storage"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	FormSecret   string        `mapstructure:"form_secret"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// NotificationConfig selects the outbound channel for customer messages
type NotificationConfig struct {
	Provider    string `mapstructure:"provider"`
	FromName    string `mapstructure:"from_name"`
	CompanyName string `mapstructure:"company_name"`
	PortalURL   string `mapstructure:"portal_url"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID       string `mapstructure:"app_id"`
	AppSecret   string `mapstructure:"app_secret"`
	StaffChatID string `mapstructure:"staff_chat_id"`
}

// WorkflowConfig holds workflow engine configuration
type WorkflowConfig struct {
	DelayMode    string        `mapstructure:"delay_mode"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	SeedFile     string        `mapstructure:"seed_file"`
	AsyncEvents  bool          `mapstructure:"async_events"`
}

// InvoiceConfig holds invoice job configuration
type InvoiceConfig struct {
	OverdueSweepInterval time.Duration `mapstructure:"overdue_sweep_interval"`
	OverdueBatchSize     int           `mapstructure:"overdue_batch_size"`
}

// StorageConfig holds the location of uploaded project documents. An empty
// DocumentsDir disables uploads.
type StorageConfig struct {
	DocumentsDir string `mapstructure:"documents_dir"`
}

// Load loads configuration from file and environment variables. An empty
// configPath uses defaults and the environment only. A .env file next to
// the working directory is applied first when present.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv applies path to the process environment without overriding
// variables that are already set
func loadDotEnv(path string) error {
	err := gotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.path", "data/floorcrm.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("notification.provider", "log")
	v.SetDefault("notification.from_name", "Flooring CRM")
	v.SetDefault("notification.company_name", "Our Flooring Team")

	v.SetDefault("workflow.delay_mode", "memory")
	v.SetDefault("workflow.poll_interval", 30*time.Second)
	v.SetDefault("workflow.batch_size", 20)
	v.SetDefault("workflow.async_events", false)

	v.SetDefault("invoice.overdue_sweep_interval", time.Hour)
	v.SetDefault("invoice.overdue_batch_size", 100)

	v.SetDefault("storage.documents_dir", "data/documents")
}

// bindEnvVars binds the unprefixed variables used for secrets
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", "FLOORCRM_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "FLOORCRM_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.staff_chat_id", "FLOORCRM_LARK_STAFF_CHAT_ID", "LARK_STAFF_CHAT_ID")
	_ = v.BindEnv("server.form_secret", "FLOORCRM_SERVER_FORM_SECRET", "FORM_WEBHOOK_SECRET")
	_ = v.BindEnv("database.path", "FLOORCRM_DATABASE_PATH", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	switch c.Notification.Provider {
	case "log":
	case "lark":
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
	case "memory", "persistent":
	default:
		return fmt.Errorf("unknown workflow.delay_mode %q", c.Workflow.DelayMode)
	}

	return nil
}
