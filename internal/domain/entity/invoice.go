package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice bills a customer, usually for one contract installment
type Invoice struct {
	ID             int64           `json:"id"`
	InvoiceNumber  string          `json:"invoice_number"`
	ContractID     *int64          `json:"contract_id,omitempty"`
	ScheduleItemID string          `json:"schedule_item_id,omitempty"`
	ContactID      *int64          `json:"contact_id,omitempty"`
	CustomerUserID *int64          `json:"customer_user_id,omitempty"`
	ProjectID      *int64          `json:"project_id,omitempty"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	LineItems      []LineItem      `json:"line_items"`
	Status         string          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`
	ViewedAt       *time.Time      `json:"viewed_at,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ApplyPayment adds amount to AmountPaid and recomputes AmountDue from the
// total. It reports whether the invoice is now settled.
func (i *Invoice) ApplyPayment(amount decimal.Decimal) bool {
	i.AmountPaid = i.AmountPaid.Add(amount)
	i.AmountDue = i.Total.Sub(i.AmountPaid)
	return !i.AmountDue.IsPositive()
}

// IsOverdue reports whether the due date has passed with money outstanding
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.DueDate != nil && i.DueDate.Before(now) && i.AmountDue.IsPositive()
}
