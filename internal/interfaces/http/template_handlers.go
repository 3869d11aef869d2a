package http

import (
	"github.com/gin-gonic/gin"

	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

// CreateEmailTemplate handles POST /api/templates/email
func (h *Handlers) CreateEmailTemplate(c *gin.Context) {
	var tpl entity.EmailTemplate
	if !h.bind(c, &tpl, false) {
		return
	}
	saved, err := h.services.Templates.CreateEmail(c.Request.Context(), &tpl)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, saved)
}

// ListEmailTemplates handles GET /api/templates/email
func (h *Handlers) ListEmailTemplates(c *gin.Context) {
	list, err := h.services.Templates.ListEmail(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

// CreateSmsTemplate handles POST /api/templates/sms
func (h *Handlers) CreateSmsTemplate(c *gin.Context) {
	var tpl entity.SmsTemplate
	if !h.bind(c, &tpl, false) {
		return
	}
	saved, err := h.services.Templates.CreateSms(c.Request.Context(), &tpl)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, saved)
}

// ListSmsTemplates handles GET /api/templates/sms
func (h *Handlers) ListSmsTemplates(c *gin.Context) {
	list, err := h.services.Templates.ListSms(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}
