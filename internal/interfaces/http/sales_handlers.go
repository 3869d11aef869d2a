package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

type estimateRequest struct {
	ContactID   int64             `json:"contact_id" binding:"required"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	LineItems   []entity.LineItem `json:"line_items"`
	TaxRate     decimal.Decimal   `json:"tax_rate"`
	Terms       string            `json:"terms"`
	ValidUntil  *time.Time        `json:"valid_until"`
}

type respondRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Notes   string `json:"notes"`
}

type signRequest struct {
	Signature string `json:"signature" binding:"required"`
}

type contractInvoiceRequest struct {
	ScheduleItemID string `json:"schedule_item_id" binding:"required"`
}

type invoiceRequest struct {
	ContactID      *int64            `json:"contact_id"`
	CustomerUserID *int64            `json:"customer_user_id"`
	ProjectID      *int64            `json:"project_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	LineItems      []entity.LineItem `json:"line_items"`
	Total          decimal.Decimal   `json:"total"`
	DueDate        *time.Time        `json:"due_date"`
}

type paymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	TransactionRef string          `json:"transaction_ref"`
}

// CreateEstimate handles POST /api/estimates
func (h *Handlers) CreateEstimate(c *gin.Context) {
	var req estimateRequest
	if !h.bind(c, &req, false) {
		return
	}
	est, err := h.services.Estimates.Create(c.Request.Context(), service.CreateEstimateInput{
		ContactID:   req.ContactID,
		Title:       req.Title,
		Description: req.Description,
		LineItems:   req.LineItems,
		TaxRate:     req.TaxRate,
		Terms:       req.Terms,
		ValidUntil:  req.ValidUntil,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, est)
}

// GetEstimate handles GET /api/estimates/:id
func (h *Handlers) GetEstimate(c *gin.Context) {
	h.estimateOp(c, h.services.Estimates.Get)
}

// SendEstimate handles POST /api/estimates/:id/send
func (h *Handlers) SendEstimate(c *gin.Context) {
	h.estimateOp(c, h.services.Estimates.Send)
}

// ViewEstimate handles POST /api/estimates/:id/view
func (h *Handlers) ViewEstimate(c *gin.Context) {
	h.estimateOp(c, h.services.Estimates.MarkViewed)
}

// RespondEstimate handles POST /api/estimates/:id/respond
func (h *Handlers) RespondEstimate(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req respondRequest
	if !h.bind(c, &req, false) {
		return
	}
	est, err := h.services.Estimates.Respond(c.Request.Context(), id, *req.Approve, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, est)
}

// ConvertEstimate handles POST /api/estimates/:id/convert
func (h *Handlers) ConvertEstimate(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	contract, err := h.services.Contracts.CreateFromEstimate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, contract)
}

// GetContract handles GET /api/contracts/:id
func (h *Handlers) GetContract(c *gin.Context) {
	h.contractOp(c, h.services.Contracts.Get)
}

// SendContract handles POST /api/contracts/:id/send
func (h *Handlers) SendContract(c *gin.Context) {
	h.contractOp(c, h.services.Contracts.Send)
}

// ViewContract handles POST /api/contracts/:id/view
func (h *Handlers) ViewContract(c *gin.Context) {
	h.contractOp(c, h.services.Contracts.MarkViewed)
}

// CancelContract handles POST /api/contracts/:id/cancel
func (h *Handlers) CancelContract(c *gin.Context) {
	h.contractOp(c, h.services.Contracts.Cancel)
}

// SignContract handles POST /api/contracts/:id/sign
func (h *Handlers) SignContract(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req signRequest
	if !h.bind(c, &req, false) {
		return
	}
	contract, err := h.services.Contracts.Sign(c.Request.Context(), id, req.Signature)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, contract)
}

// InvoiceContract handles POST /api/contracts/:id/invoices
func (h *Handlers) InvoiceContract(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req contractInvoiceRequest
	if !h.bind(c, &req, false) {
		return
	}
	inv, err := h.services.Invoices.CreateFromContract(c.Request.Context(), id, req.ScheduleItemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, inv)
}

// CreateInvoice handles POST /api/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var req invoiceRequest
	if !h.bind(c, &req, false) {
		return
	}
	inv, err := h.services.Invoices.Create(c.Request.Context(), service.CreateInvoiceInput{
		ContactID:      req.ContactID,
		CustomerUserID: req.CustomerUserID,
		ProjectID:      req.ProjectID,
		Title:          req.Title,
		Description:    req.Description,
		LineItems:      req.LineItems,
		Total:          req.Total,
		DueDate:        req.DueDate,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, inv)
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	h.invoiceOp(c, h.services.Invoices.Get)
}

// SendInvoice handles POST /api/invoices/:id/send
func (h *Handlers) SendInvoice(c *gin.Context) {
	h.invoiceOp(c, h.services.Invoices.Send)
}

// ViewInvoice handles POST /api/invoices/:id/view
func (h *Handlers) ViewInvoice(c *gin.Context) {
	h.invoiceOp(c, h.services.Invoices.MarkViewed)
}

// CancelInvoice handles POST /api/invoices/:id/cancel
func (h *Handlers) CancelInvoice(c *gin.Context) {
	h.invoiceOp(c, h.services.Invoices.Cancel)
}

// RecordPayment handles POST /api/invoices/:id/payments
func (h *Handlers) RecordPayment(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req paymentRequest
	if !h.bind(c, &req, false) {
		return
	}
	payment, inv, err := h.services.Payments.Record(c.Request.Context(), id, service.RecordPaymentInput{
		Amount:         req.Amount,
		Method:         req.Method,
		TransactionRef: req.TransactionRef,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, gin.H{"payment": payment, "invoice": inv})
}

// ListPayments handles GET /api/invoices/:id/payments
func (h *Handlers) ListPayments(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	list, err := h.services.Payments.ListByInvoice(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

func (h *Handlers) estimateOp(c *gin.Context, op func(ctx context.Context, id int64) (*entity.Estimate, error)) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	est, err := op(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, est)
}

func (h *Handlers) contractOp(c *gin.Context, op func(ctx context.Context, id int64) (*entity.Contract, error)) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	contract, err := op(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, contract)
}

func (h *Handlers) invoiceOp(c *gin.Context, op func(ctx context.Context, id int64) (*entity.Invoice, error)) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	inv, err := op(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, inv)
}
