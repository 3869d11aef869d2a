package config

import (
	"time"

	"github.com/garyjia/flooring-crm/internal/container"
	"github.com/garyjia/flooring-crm/pkg/utils"
)

// ToContainerConfig converts the application Config to a container.Config.
// This bridges the file-based config loaded by viper and the container's
// configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
			CORSOrigins:  c.Server.CORSOrigins,
			FormSecret:   c.Server.FormSecret,
		},
		Notification: container.NotificationConfig{
			Provider:    c.Notification.Provider,
			FromName:    c.Notification.FromName,
			CompanyName: c.Notification.CompanyName,
			PortalURL:   c.Notification.PortalURL,
		},
		Lark: container.LarkConfig{
			AppID:       c.Lark.AppID,
			AppSecret:   c.Lark.AppSecret,
			StaffChatID: c.Lark.StaffChatID,
		},
		Workflow: container.WorkflowConfig{
			DelayMode:    c.Workflow.DelayMode,
			DelayUnit:    time.Hour,
			PollInterval: c.Workflow.PollInterval,
			BatchSize:    c.Workflow.BatchSize,
			SeedFile:     c.Workflow.SeedFile,
			AsyncEvents:  c.Workflow.AsyncEvents,
		},
		Invoice: container.InvoiceConfig{
			OverdueSweepInterval: c.Invoice.OverdueSweepInterval,
			OverdueBatchSize:     c.Invoice.OverdueBatchSize,
		},
		Storage: container.StorageConfig{
			DocumentsDir: c.Storage.DocumentsDir,
		},
	}
}

// ToLoggerConfig converts the logger section for utils.NewLogger
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
	}
}
