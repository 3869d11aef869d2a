package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estimate is a priced quote sent to a contact
type Estimate struct {
	ID             int64           `json:"id"`
	EstimateNumber string          `json:"estimate_number"`
	ContactID      int64           `json:"contact_id"`
	CustomerUserID *int64          `json:"customer_user_id,omitempty"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Status         string          `json:"status"`
	LineItems      []LineItem      `json:"line_items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	Terms          string          `json:"terms,omitempty"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
	CustomerNotes  string          `json:"customer_notes,omitempty"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`
	ViewedAt       *time.Time      `json:"viewed_at,omitempty"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty"`
	RejectedAt     *time.Time      `json:"rejected_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LineItem is one priced row of an estimate or invoice
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Category    string          `json:"category,omitempty"`
}

// RecalculateTotals derives line totals, subtotal, tax and total from the
// line items. Amounts are rounded to cents.
func (e *Estimate) RecalculateTotals() {
	subtotal := decimal.Zero
	for i := range e.LineItems {
		li := &e.LineItems[i]
		li.TotalPrice = li.Quantity.Mul(li.UnitPrice).Round(2)
		subtotal = subtotal.Add(li.TotalPrice)
	}
	e.Subtotal = subtotal
	e.TaxAmount = subtotal.Mul(e.TaxRate).Round(2)
	e.Total = subtotal.Add(e.TaxAmount)
}
