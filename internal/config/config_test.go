package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "log", cfg.Notification.Provider)
	assert.Equal(t, "memory", cfg.Workflow.DelayMode)
	assert.False(t, cfg.Workflow.AsyncEvents)
	assert.Equal(t, time.Hour, cfg.Invoice.OverdueSweepInterval)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  cors_origins: ["https://admin.example.com"]
workflow:
  delay_mode: persistent
  poll_interval: 15s
  seed_file: configs/workflows.yaml
logger:
  format: console
`)
	t.Setenv("FLOORCRM_SERVER_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "persistent", cfg.Workflow.DelayMode)
	assert.Equal(t, 15*time.Second, cfg.Workflow.PollInterval)
	assert.Equal(t, "console", cfg.Logger.Format)
}

func TestLoad_LarkSecretsFromEnv(t *testing.T) {
	path := writeConfig(t, "notification:\n  provider: lark\n")
	t.Setenv("LARK_APP_ID", "cli_123")
	t.Setenv("LARK_APP_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cli_123", cfg.Lark.AppID)
	assert.Equal(t, "s3cret", cfg.Lark.AppSecret)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"lark without credentials", "notification:\n  provider: lark\n"},
		{"unknown provider", "notification:\n  provider: fax\n"},
		{"unknown delay mode", "workflow:\n  delay_mode: cron\n"},
		{"bad log format", "logger:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FLOORCRM_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("FLOORCRM_TEST_DOTENV", "")
	os.Unsetenv("FLOORCRM_TEST_DOTENV")

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("FLOORCRM_TEST_DOTENV"))

	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestToContainerConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Workflow.AsyncEvents = true

	cc := cfg.ToContainerConfig()
	require.NoError(t, cc.Validate())
	assert.Equal(t, time.Hour, cc.Workflow.DelayUnit)
	assert.True(t, cc.Workflow.AsyncEvents)
	assert.Equal(t, cfg.Database.Path, cc.Database.Path)
	assert.Equal(t, "data/documents", cc.Storage.DocumentsDir)
	assert.Equal(t, "json", cfg.ToLoggerConfig().Format)
}
