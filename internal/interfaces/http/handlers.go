package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/flooring-crm/internal/apperr"
)

// Version is reported by the health check
var Version = "dev"

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Handlers contains HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// HealthCheck handles GET /health. It answers 503 when a component reports
// unhealthy.
func (h *Handlers) HealthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	}
	status := http.StatusOK

	if h.services.Health != nil {
		healthy, components := h.services.Health()
		data["components"] = components
		if !healthy {
			data["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: data})
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// fail writes err using the application error mapping
func (h *Handlers) fail(c *gin.Context, err error) {
	status, body := apperr.ToHTTP(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	msg, _ := body["message"].(string)
	code, _ := body["code"].(string)
	c.JSON(status, Response{Success: false, Error: msg, Code: code})
}

// bind decodes the JSON body into dst. An empty body is accepted when
// optional is set.
func (h *Handlers) bind(c *gin.Context, dst interface{}, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, apperr.NewValidationError("body", "invalid request body: "+err.Error()))
		return false
	}
	return true
}

// pathID parses the :id parameter
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, apperr.NewValidationError("id", "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
