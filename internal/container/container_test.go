package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/pkg/database"
)

const seedYAML = `workflows:
  - name: Approved estimate to contract
    trigger_type: estimate_approval
    actions:
      - type: convert_to_contract
  - name: Qualified lead follow up
    trigger_type: lead_stage_change
    trigger_condition: qualified
    delay_hours: 2
    actions:
      - type: create_task
        data:
          title: "Call {{first_name}}"
`

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database.Path = database.MemoryPath
	cfg.Invoice.OverdueSweepInterval = 0

	seedPath := filepath.Join(t.TempDir(), "workflows.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedYAML), 0o644))
	cfg.Workflow.SeedFile = seedPath
	return cfg
}

func startContainer(t *testing.T, cfg *Config) *Container {
	t.Helper()
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		if !c.closed.Load() {
			_ = c.Close()
		}
	})
	return c
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Notification.Provider = "pigeon" }, "notification.provider"},
		{"lark without credentials", func(c *Config) { c.Notification.Provider = NotificationProviderLark }, "lark.app_id"},
		{"lark with credentials", func(c *Config) {
			c.Notification.Provider = NotificationProviderLark
			c.Lark.AppID = "cli_a"
			c.Lark.AppSecret = "secret"
		}, ""},
		{"unknown delay mode", func(c *Config) { c.Workflow.DelayMode = "cron" }, "workflow.delay_mode"},
		{"persistent without interval", func(c *Config) {
			c.Workflow.DelayMode = DelayModePersistent
			c.Workflow.PollInterval = 0
		}, "poll_interval"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewContainer_RequiresConfigAndLogger(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestContainer_StartSeedsAndCloses(t *testing.T) {
	c := startContainer(t, testConfig(t))

	assert.True(t, c.Ready())
	health := c.Health()
	assert.True(t, health.Overall, "%+v", health.Components)

	list, err := c.WorkflowStore().List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsActive)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(context.Background()))
}

func TestContainer_EstimateApprovalRunsSeededWorkflow(t *testing.T) {
	c := startContainer(t, testConfig(t))
	ctx := context.Background()
	svc := c.Services()

	contact, err := svc.Contacts.Create(ctx, service.CreateContactInput{
		FirstName: "Dana",
		LastName:  "Reyes",
		Email:     "dana@example.com",
	})
	require.NoError(t, err)

	est, err := svc.Estimates.Create(ctx, service.CreateEstimateInput{
		ContactID: contact.ID,
		Title:     "Hallway vinyl",
		LineItems: []entity.LineItem{{Description: "LVP", Quantity: dec("80"), Unit: "sqft", UnitPrice: dec("6.25")}},
	})
	require.NoError(t, err)
	_, err = svc.Estimates.Send(ctx, est.ID)
	require.NoError(t, err)
	_, err = svc.Estimates.Respond(ctx, est.ID, true, "")
	require.NoError(t, err)

	contract, err := c.Repositories().Contracts.GetByEstimateID(ctx, est.ID)
	require.NoError(t, err)
	require.NotNil(t, contract)
	assert.Equal(t, entity.ContractStatusDraft, contract.Status)
}

func TestContainer_AsyncEventsRunWorkflowsInBackground(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.AsyncEvents = true
	c := startContainer(t, cfg)
	ctx := context.Background()
	svc := c.Services()

	contact, err := svc.Contacts.Create(ctx, service.CreateContactInput{FirstName: "Dana", Email: "dana@example.com"})
	require.NoError(t, err)
	est, err := svc.Estimates.Create(ctx, service.CreateEstimateInput{
		ContactID: contact.ID,
		Title:     "Hallway vinyl",
		LineItems: []entity.LineItem{{Description: "LVP", Quantity: dec("80"), Unit: "sqft", UnitPrice: dec("6.25")}},
	})
	require.NoError(t, err)
	_, err = svc.Estimates.Send(ctx, est.ID)
	require.NoError(t, err)
	_, err = svc.Estimates.Respond(ctx, est.ID, true, "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		contract, err := c.Repositories().Contracts.GetByEstimateID(ctx, est.ID)
		return err == nil && contract != nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestContainer_PersistentModeStoresDelayedRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.DelayMode = DelayModePersistent
	cfg.Workflow.PollInterval = time.Hour
	c := startContainer(t, cfg)
	ctx := context.Background()

	assert.Equal(t, 1, c.Workers().Count())

	contact, err := c.Services().Contacts.Create(ctx, service.CreateContactInput{FirstName: "Lee", Email: "lee@example.com"})
	require.NoError(t, err)
	_, err = c.Services().Contacts.UpdateStage(ctx, contact.ID, entity.LeadStageQualified)
	require.NoError(t, err)

	due, err := c.Repositories().ScheduledRuns.ClaimDue(ctx, time.Now().Add(3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Lee", due[0].EventData["first_name"])
}

func TestContainer_HTTPServer(t *testing.T) {
	c := startContainer(t, testConfig(t))

	srv, err := c.HTTPServer()
	require.NoError(t, err)

	for _, path := range []string{"/health", "/metrics", "/api/workflows"} {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

func TestContainer_ServesStoredDocuments(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.DocumentsDir = t.TempDir()
	c := startContainer(t, cfg)
	require.NotNil(t, c.documents)

	rel, err := c.documents.Save(context.Background(), 3, "sample.txt", strings.NewReader("oak sample"))
	require.NoError(t, err)

	srv, err := c.HTTPServer()
	require.NoError(t, err)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/"+rel, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "oak sample", w.Body.String())
}

func TestHTTPServer_RequiresStart(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	_, err = c.HTTPServer()
	assert.Error(t, err)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
