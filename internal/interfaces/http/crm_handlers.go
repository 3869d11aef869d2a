package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/flooring-crm/internal/application/service"
)

// CreateContact handles POST /api/contacts
func (h *Handlers) CreateContact(c *gin.Context) {
	var in service.CreateContactInput
	if !h.bind(c, &in, false) {
		return
	}
	contact, err := h.services.Contacts.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, contact)
}

// ListContacts handles GET /api/contacts
func (h *Handlers) ListContacts(c *gin.Context) {
	list, err := h.services.Contacts.List(c.Request.Context(), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

// GetContact handles GET /api/contacts/:id
func (h *Handlers) GetContact(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	contact, err := h.services.Contacts.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, contact)
}

type stageRequest struct {
	Stage string `json:"stage" binding:"required"`
}

// UpdateContactStage handles PUT /api/contacts/:id/stage
func (h *Handlers) UpdateContactStage(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req stageRequest
	if !h.bind(c, &req, false) {
		return
	}
	contact, err := h.services.Contacts.UpdateStage(c.Request.Context(), id, req.Stage)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, contact)
}

// ScheduleAppointment handles POST /api/contacts/:id/appointments
func (h *Handlers) ScheduleAppointment(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var in service.AppointmentInput
	if !h.bind(c, &in, false) {
		return
	}
	appt, err := h.services.Contacts.ScheduleAppointment(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, appt)
}

// SubmitContactForm handles POST /api/forms/contact
func (h *Handlers) SubmitContactForm(c *gin.Context) {
	var in service.ContactFormInput
	if !h.bind(c, &in, false) {
		return
	}
	contact, err := h.services.Contacts.SubmitForm(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, Response{Success: true, Data: contact})
}

type customerRequest struct {
	ContactID        *int64 `json:"contact_id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	SendWelcomeEmail *bool  `json:"send_welcome_email"`
}

// CreateCustomer handles POST /api/customers. An existing account linked to
// the contact is returned with 200 instead of 201.
func (h *Handlers) CreateCustomer(c *gin.Context) {
	var req customerRequest
	if !h.bind(c, &req, false) {
		return
	}
	in := service.EnsureAccountInput{
		ContactID:        req.ContactID,
		Email:            req.Email,
		Name:             req.Name,
		Phone:            req.Phone,
		SendWelcomeEmail: req.SendWelcomeEmail == nil || *req.SendWelcomeEmail,
	}
	user, isNew, err := h.services.Customers.EnsureAccount(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	if isNew {
		created(c, user)
		return
	}
	ok(c, user)
}

// GetCustomer handles GET /api/customers/:id
func (h *Handlers) GetCustomer(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	user, err := h.services.Customers.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, user)
}

// ResendCredentials handles POST /api/customers/:id/credentials
func (h *Handlers) ResendCredentials(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	if err := h.services.Customers.ResendCredentials(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"customer_id": id, "sent": true})
}
