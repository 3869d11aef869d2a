package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/action"
	"github.com/garyjia/flooring-crm/internal/application/dispatcher"
	"github.com/garyjia/flooring-crm/internal/application/emitter"
	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/application/workflow"
	"github.com/garyjia/flooring-crm/internal/infrastructure/storage"
	"github.com/garyjia/flooring-crm/internal/testutil"
)

type testEnv struct {
	store  *testutil.Store
	sink   *testutil.Sink
	server *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := testutil.NewStore()
	repos := store.Repos()
	sink := testutil.NewSink()
	logger := &testutil.Logger{}

	d := dispatcher.NewDispatcher(dispatcher.WithLogger(logger))
	em := emitter.New(d, repos.Estimates, repos.Contracts, repos.Contacts, repos.Appointments, logger)

	customers := service.NewCustomerService(repos.Users, repos.Contacts, sink, logger)
	projects := service.NewProjectService(repos.Projects, repos.Users, sink, logger)
	estimates := service.NewEstimateService(repos.Estimates, repos.Contacts, repos.Users, sink, em, logger)
	contracts := service.NewContractService(service.ContractDeps{
		Contracts: repos.Contracts,
		Estimates: repos.Estimates,
		Projects:  repos.Projects,
		Contacts:  repos.Contacts,
		Users:     repos.Users,
		TxManager: repos.TxManager,
		Sink:      sink,
		Emitter:   em,
		Logger:    logger,
	})
	invoices := service.NewInvoiceService(repos.Invoices, repos.Contracts, repos.Contacts, repos.Users, repos.TxManager, sink, logger)
	payments := service.NewPaymentService(repos.Payments, repos.Invoices, repos.Contracts, repos.Contacts, repos.Users, repos.TxManager, sink, logger)
	templates := service.NewTemplateService(repos.Templates, logger)

	registry, err := action.NewDefaultRegistry(action.Deps{
		Templates: templates,
		Customers: customers,
		Projects:  projects,
		Contracts: contracts,
		Invoices:  invoices,
		Tasks:     repos.Tasks,
		Sink:      sink,
		Messenger: &testutil.Messenger{},
		Logger:    logger,
	})
	require.NoError(t, err)

	engine := workflow.NewEngine(repos.Workflows, registry, workflow.WithLogger(logger))
	d.SubscribeAll("workflow-engine", engine.HandleEvent)

	services := Services{
		Workflows: workflow.NewStore(repos.Workflows, logger),
		Engine:    engine,
		Actions:   registry,
		Contacts:  service.NewContactService(repos.Contacts, repos.Appointments, em, logger),
		Customers: customers,
		Estimates: estimates,
		Contracts: contracts,
		Invoices:  invoices,
		Payments:  payments,
		Projects:  projects,
		Templates: templates,
		Documents: storage.NewLocalDocumentStore(t.TempDir(), zap.NewNop()),
	}
	return &testEnv{
		store:  store,
		sink:   sink,
		server: NewServer(DefaultServerConfig(), services, logger),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func dataMap(t *testing.T, resp Response) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func idOf(t *testing.T, resp Response) int64 {
	t.Helper()
	return int64(dataMap(t, resp)["id"].(float64))
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", dataMap(t, resp)["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	env := newTestEnv(t)
	services := env.server.services
	services.Health = func() (bool, interface{}) {
		return false, map[string]interface{}{"database": map[string]interface{}{"healthy": false}}
	}
	env.server = NewServer(DefaultServerConfig(), services, &testutil.Logger{})

	status, resp := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "degraded", dataMap(t, resp)["status"])
}

func TestWorkflowCRUD(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodPost, "/api/workflows", map[string]interface{}{
		"name":         "Welcome new leads",
		"trigger_type": "form_submission",
		"is_active":    true,
		"actions": []map[string]interface{}{
			{"type": "send_email", "data": map[string]interface{}{"custom_subject": "Thanks", "custom_body": "We will call you"}},
		},
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	id := idOf(t, resp)

	status, resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/workflows/%d", id), nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Welcome new leads", dataMap(t, resp)["name"])

	status, resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/workflows/%d", id), map[string]interface{}{
		"name":         "Welcome new leads",
		"trigger_type": "form_submission",
		"is_active":    false,
		"actions":      []map[string]interface{}{{"type": "send_sms"}},
	})
	assert.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, false, dataMap(t, resp)["is_active"])

	status, resp = env.do(t, http.MethodGet, "/api/workflows", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, resp.Data, 1)

	status, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/workflows/%d", id), nil)
	assert.Equal(t, http.StatusOK, status)

	status, resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/workflows/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestCreateWorkflow_Validation(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodPost, "/api/workflows", map[string]interface{}{
		"name":         "Bad",
		"trigger_type": "whenever",
		"actions":      []map[string]interface{}{{"type": "send_email"}},
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, 0, env.store.Count("workflows"))
}

func TestInvalidPathID(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodGet, "/api/estimates/abc", nil)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestCatalogs(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodGet, "/api/workflows/catalog/actions", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, resp.Data, 7)

	status, resp = env.do(t, http.MethodGet, "/api/workflows/catalog/triggers", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, resp.Data, len(workflow.TriggerCatalog()))
}

func TestRunWorkflow_Manual(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.do(t, http.MethodPost, "/api/workflows", map[string]interface{}{
		"name":         "Follow up",
		"trigger_type": "manual",
		"is_active":    true,
		"actions":      []map[string]interface{}{{"type": "create_task", "data": map[string]interface{}{"title": "Call back"}}},
	})
	id := idOf(t, resp)

	status, resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/workflows/%d/run", id), map[string]interface{}{"contact_id": 7})

	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, true, dataMap(t, resp)["ran"])
	assert.Equal(t, 1, env.store.Count("tasks"))
}

func TestRunWorkflow_UnknownID(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodPost, "/api/workflows/42/run", nil)

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestEstimateApproval_TriggersWorkflow(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.do(t, http.MethodPost, "/api/workflows", map[string]interface{}{
		"name":         "Approved estimate to contract",
		"trigger_type": "estimate_approval",
		"is_active":    true,
		"actions":      []map[string]interface{}{{"type": "convert_to_contract"}},
	})
	require.True(t, resp.Success, resp.Error)

	status, resp := env.do(t, http.MethodPost, "/api/contacts", map[string]interface{}{
		"first_name": "Dana",
		"last_name":  "Reyes",
		"email":      "dana@example.com",
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	contactID := idOf(t, resp)

	status, resp = env.do(t, http.MethodPost, "/api/estimates", map[string]interface{}{
		"contact_id": contactID,
		"title":      "Kitchen tile",
		"line_items": []map[string]interface{}{
			{"description": "Porcelain tile", "quantity": "120", "unit": "sqft", "unit_price": "9.50"},
		},
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	estimateID := idOf(t, resp)

	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/estimates/%d/send", estimateID), nil)
	require.Equal(t, http.StatusOK, status)

	status, resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/estimates/%d/respond", estimateID), map[string]interface{}{
		"approve": true,
	})
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, "approved", dataMap(t, resp)["status"])

	assert.Equal(t, 1, env.store.Count("contracts"))

	// converting twice is a conflict
	status, resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/estimates/%d/convert", estimateID), nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, resp.Success)
}

func TestRespondEstimate_RequiresDecision(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodPost, "/api/estimates/1/respond", map[string]interface{}{"notes": "hmm"})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestTemplates(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodPost, "/api/templates/sms", map[string]interface{}{
		"name": "Reminder",
		"body": "Hi {{first_name}}, see you tomorrow",
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)

	status, resp = env.do(t, http.MethodGet, "/api/templates/sms", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, resp.Data, 1)
}

func TestCreateCustomer_ThenGet(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]interface{}{
		"email":              "sam@example.com",
		"name":               "Sam Ortiz",
		"send_welcome_email": false,
	}
	status, resp := env.do(t, http.MethodPost, "/api/customers", body)
	require.Equal(t, http.StatusCreated, status, resp.Error)
	id := idOf(t, resp)
	assert.Empty(t, env.sink.Of("email"))

	status, resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/customers/%d", id), nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sam@example.com", dataMap(t, resp)["email"])
	_, leaked := dataMap(t, resp)["password_hash"]
	assert.False(t, leaked)
}

func (e *testEnv) upload(t *testing.T, path, filename, content string, fields map[string]string) (int, Response) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (e *testEnv) newProject(t *testing.T) int64 {
	t.Helper()
	status, resp := e.do(t, http.MethodPost, "/api/customers", map[string]interface{}{
		"email":              "ana@example.com",
		"name":               "Ana Reyes",
		"send_welcome_email": false,
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)

	status, resp = e.do(t, http.MethodPost, "/api/projects", map[string]interface{}{
		"customer_id": idOf(t, resp),
		"title":       "Kitchen LVP",
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	return idOf(t, resp)
}

func TestUploadProjectDocument(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t)

	status, resp := env.upload(t, fmt.Sprintf("/api/projects/%d/documents/upload", id),
		"floor plan.pdf", "%PDF-1.4 plan", map[string]string{"name": "Floor plan"})
	require.Equal(t, http.StatusCreated, status, resp.Error)

	docs := dataMap(t, resp)["documents"].([]interface{})
	require.Len(t, docs, 1)
	doc := docs[0].(map[string]interface{})
	assert.Equal(t, "Floor plan", doc["name"])
	assert.Equal(t, "pdf", doc["type"])
	url := doc["url"].(string)
	assert.True(t, strings.HasPrefix(url, fmt.Sprintf("/files/project-%d/", id)), url)

	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 plan", w.Body.String())
}

func TestUploadProjectDocument_Errors(t *testing.T) {
	env := newTestEnv(t)
	id := env.newProject(t)

	status, _ := env.upload(t, "/api/projects/999/documents/upload", "a.jpg", "x", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, resp := env.upload(t, fmt.Sprintf("/api/projects/%d/documents/upload", id), "", "", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	status, _ = env.upload(t, fmt.Sprintf("/api/projects/%d/documents/upload", id), "../", "x", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
