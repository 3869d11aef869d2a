package http

import (
	"github.com/gin-gonic/gin"

	"github.com/garyjia/flooring-crm/internal/application/workflow"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

// ListWorkflows handles GET /api/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	list, err := h.services.Workflows.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

// CreateWorkflow handles POST /api/workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var wf entity.Workflow
	if !h.bind(c, &wf, false) {
		return
	}
	saved, err := h.services.Workflows.Create(c.Request.Context(), &wf)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, saved)
}

// GetWorkflow handles GET /api/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	wf, err := h.services.Workflows.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, wf)
}

// UpdateWorkflow handles PUT /api/workflows/:id
func (h *Handlers) UpdateWorkflow(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var wf entity.Workflow
	if !h.bind(c, &wf, false) {
		return
	}
	saved, err := h.services.Workflows.Update(c.Request.Context(), id, &wf)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, saved)
}

// DeleteWorkflow handles DELETE /api/workflows/:id
func (h *Handlers) DeleteWorkflow(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	if err := h.services.Workflows.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"deleted": id})
}

// RunWorkflow handles POST /api/workflows/:id/run. The body is used as the
// event data and may be empty.
func (h *Handlers) RunWorkflow(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	data := map[string]interface{}{}
	if !h.bind(c, &data, true) {
		return
	}

	report, err := h.services.Engine.RunWorkflow(c.Request.Context(), id, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	if report == nil {
		ok(c, gin.H{"ran": false, "reason": "workflow is inactive"})
		return
	}
	ok(c, gin.H{"ran": true, "report": report})
}

// ActionCatalog handles GET /api/workflows/catalog/actions
func (h *Handlers) ActionCatalog(c *gin.Context) {
	ok(c, h.services.Actions.Catalog())
}

// TriggerCatalog handles GET /api/workflows/catalog/triggers
func (h *Handlers) TriggerCatalog(c *gin.Context) {
	ok(c, workflow.TriggerCatalog())
}
