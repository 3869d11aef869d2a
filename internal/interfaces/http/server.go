// Package http provides the gin HTTP adapter for the application layer.
// Handlers translate requests into service and engine calls and wrap every
// reply in the {success, data, error} envelope.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/garyjia/flooring-crm/internal/application/action"
	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	// FormSecret signs submissions to /api/forms/contact; empty disables the check
	FormSecret   string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// ActionCatalog lists the registered action kinds
type ActionCatalog interface {
	Catalog() []action.Descriptor
}

// Services bundles everything the handlers call into
type Services struct {
	Workflows workflow.Store
	Engine    workflow.WorkflowEngine
	Actions   ActionCatalog
	Contacts  service.ContactService
	Customers service.CustomerService
	Estimates service.EstimateService
	Contracts service.ContractService
	Invoices  service.InvoiceService
	Payments  service.PaymentService
	Projects  service.ProjectService
	Templates service.TemplateService
	// Documents backs project file uploads and /files when set
	Documents DocumentStore
	// Metrics serves /metrics when set
	Metrics http.Handler
	// Health adds component status to /health when set
	Health func() (healthy bool, components interface{})
}

// DocumentStore stores uploaded project files and serves them back
type DocumentStore interface {
	port.DocumentStorage
	FileSystem() http.FileSystem
}

// maxUploadMemory bounds the multipart form kept in memory per request
const maxUploadMemory = 16 << 20

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}

	server.router.MaxMultipartMemory = maxUploadMemory
	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(s.recoveryHandler))
	s.router.Use(s.loggingMiddleware())
	s.router.Use(cors.New(corsConfig(s.config.CORSOrigins)))
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func (s *Server) recoveryHandler(c *gin.Context, recovered interface{}) {
	s.logger.Error("Panic while handling request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"panic", fmt.Sprint(recovered),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   "internal server error",
		Code:    "INTERNAL_ERROR",
	})
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		kv := []interface{}{
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("HTTP request", kv...)
			return
		}
		s.logger.Info("HTTP request", kv...)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.services.Documents != nil {
		s.router.StaticFS(filesPrefix, s.services.Documents.FileSystem())
	}
	if s.services.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.services.Metrics))
	}

	api := s.router.Group("/api")
	{
		wf := api.Group("/workflows")
		wf.GET("", h.ListWorkflows)
		wf.POST("", h.CreateWorkflow)
		wf.GET("/catalog/actions", h.ActionCatalog)
		wf.GET("/catalog/triggers", h.TriggerCatalog)
		wf.GET("/:id", h.GetWorkflow)
		wf.PUT("/:id", h.UpdateWorkflow)
		wf.DELETE("/:id", h.DeleteWorkflow)
		wf.POST("/:id/run", h.RunWorkflow)

		api.POST("/contacts", h.CreateContact)
		api.GET("/contacts", h.ListContacts)
		api.GET("/contacts/:id", h.GetContact)
		api.PUT("/contacts/:id/stage", h.UpdateContactStage)
		api.POST("/contacts/:id/appointments", h.ScheduleAppointment)
		api.POST("/forms/contact", s.formSignatureMiddleware(s.config.FormSecret, time.Now), h.SubmitContactForm)

		api.POST("/customers", h.CreateCustomer)
		api.GET("/customers/:id", h.GetCustomer)
		api.GET("/customers/:id/projects", h.ListCustomerProjects)
		api.POST("/customers/:id/credentials", h.ResendCredentials)

		api.POST("/estimates", h.CreateEstimate)
		api.GET("/estimates/:id", h.GetEstimate)
		api.POST("/estimates/:id/send", h.SendEstimate)
		api.POST("/estimates/:id/view", h.ViewEstimate)
		api.POST("/estimates/:id/respond", h.RespondEstimate)
		api.POST("/estimates/:id/convert", h.ConvertEstimate)

		api.GET("/contracts/:id", h.GetContract)
		api.POST("/contracts/:id/send", h.SendContract)
		api.POST("/contracts/:id/view", h.ViewContract)
		api.POST("/contracts/:id/sign", h.SignContract)
		api.POST("/contracts/:id/cancel", h.CancelContract)
		api.POST("/contracts/:id/invoices", h.InvoiceContract)

		api.POST("/invoices", h.CreateInvoice)
		api.GET("/invoices/:id", h.GetInvoice)
		api.POST("/invoices/:id/send", h.SendInvoice)
		api.POST("/invoices/:id/view", h.ViewInvoice)
		api.POST("/invoices/:id/cancel", h.CancelInvoice)
		api.POST("/invoices/:id/payments", h.RecordPayment)
		api.GET("/invoices/:id/payments", h.ListPayments)

		api.POST("/projects", h.CreateProject)
		api.GET("/projects/:id", h.GetProject)
		api.PUT("/projects/:id/status", h.UpdateProjectStatus)
		api.POST("/projects/:id/progress", h.AddProgressUpdate)
		api.POST("/projects/:id/documents", h.AddProjectDocument)
		if s.services.Documents != nil {
			api.POST("/projects/:id/documents/upload", h.UploadProjectDocument)
		}

		api.POST("/templates/email", h.CreateEmailTemplate)
		api.GET("/templates/email", h.ListEmailTemplates)
		api.POST("/templates/sms", h.CreateSmsTemplate)
		api.GET("/templates/sms", h.ListSmsTemplates)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
