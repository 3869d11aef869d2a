package http

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

type projectRequest struct {
	CustomerID     int64               `json:"customer_id" binding:"required"`
	ContactID      *int64              `json:"contact_id"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Status         string              `json:"status"`
	FlooringType   string              `json:"flooring_type"`
	SquareFootage  decimal.NullDecimal `json:"square_footage"`
	EstimatedCost  decimal.NullDecimal `json:"estimated_cost"`
	StartDate      *time.Time          `json:"start_date"`
	NotifyCustomer bool                `json:"notify_customer"`
}

type progressRequest struct {
	Date   *time.Time `json:"date"`
	Status string     `json:"status"`
	Note   string     `json:"note"`
	Images []string   `json:"images"`
	Notify bool       `json:"notify"`
}

type documentRequest struct {
	Name   string `json:"name" binding:"required"`
	URL    string `json:"url" binding:"required"`
	Type   string `json:"type"`
	Notify bool   `json:"notify"`
}

// CreateProject handles POST /api/projects
func (h *Handlers) CreateProject(c *gin.Context) {
	var req projectRequest
	if !h.bind(c, &req, false) {
		return
	}
	project, err := h.services.Projects.Create(c.Request.Context(), service.CreateProjectInput{
		CustomerID:     req.CustomerID,
		ContactID:      req.ContactID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		FlooringType:   req.FlooringType,
		SquareFootage:  req.SquareFootage,
		EstimatedCost:  req.EstimatedCost,
		StartDate:      req.StartDate,
		NotifyCustomer: req.NotifyCustomer,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, project)
}

// GetProject handles GET /api/projects/:id
func (h *Handlers) GetProject(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	project, err := h.services.Projects.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, project)
}

// ListCustomerProjects handles GET /api/customers/:id/projects
func (h *Handlers) ListCustomerProjects(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	list, err := h.services.Projects.ListByCustomer(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

// UpdateProjectStatus handles PUT /api/projects/:id/status
func (h *Handlers) UpdateProjectStatus(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if !h.bind(c, &req, false) {
		return
	}
	project, err := h.services.Projects.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, project)
}

// AddProgressUpdate handles POST /api/projects/:id/progress
func (h *Handlers) AddProgressUpdate(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req progressRequest
	if !h.bind(c, &req, false) {
		return
	}
	update := entity.ProgressUpdate{
		Date:   time.Now().UTC(),
		Status: req.Status,
		Note:   req.Note,
		Images: req.Images,
	}
	if req.Date != nil {
		update.Date = *req.Date
	}
	project, err := h.services.Projects.AddProgressUpdate(c.Request.Context(), id, update, req.Notify)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, project)
}

// AddProjectDocument handles POST /api/projects/:id/documents
func (h *Handlers) AddProjectDocument(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req documentRequest
	if !h.bind(c, &req, false) {
		return
	}
	doc := entity.ProjectDocument{
		Name:       req.Name,
		URL:        req.URL,
		Type:       req.Type,
		UploadDate: time.Now().UTC(),
	}
	project, err := h.services.Projects.AddDocument(c.Request.Context(), id, doc, req.Notify)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, project)
}

// filesPrefix is where stored project documents are served from
const filesPrefix = "/files"

// UploadProjectDocument handles POST /api/projects/:id/documents/upload.
// The multipart form carries the file under "file" plus optional "name",
// "type" and "notify" fields.
func (h *Handlers) UploadProjectDocument(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.services.Projects.Get(ctx, id); err != nil {
		h.fail(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.fail(c, apperr.NewValidationError("file", "a file upload is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	stored, err := h.services.Documents.Save(ctx, id, header.Filename, file)
	if err != nil {
		h.fail(c, apperr.NewValidationError("file", err.Error()))
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = header.Filename
	}
	docType := c.PostForm("type")
	if docType == "" {
		docType = strings.TrimPrefix(strings.ToLower(path.Ext(header.Filename)), ".")
	}
	notify, _ := strconv.ParseBool(c.PostForm("notify"))

	doc := entity.ProjectDocument{
		Name:       name,
		URL:        filesPrefix + "/" + stored,
		Type:       docType,
		UploadDate: time.Now().UTC(),
	}
	project, err := h.services.Projects.AddDocument(ctx, id, doc, notify)
	if err != nil {
		if delErr := h.services.Documents.Delete(ctx, stored); delErr != nil {
			h.logger.Warn("Failed to remove orphaned upload", "path", stored, "error", delErr)
		}
		h.fail(c, err)
		return
	}
	created(c, project)
}
