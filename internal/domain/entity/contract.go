package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contract is the signed agreement derived from an approved estimate
type Contract struct {
	ID                int64                 `json:"id"`
	ContractNumber    string                `json:"contract_number"`
	EstimateID        *int64                `json:"estimate_id,omitempty"`
	ContactID         int64                 `json:"contact_id"`
	CustomerUserID    *int64                `json:"customer_user_id,omitempty"`
	ProjectID         *int64                `json:"project_id,omitempty"`
	Title             string                `json:"title"`
	Description       string                `json:"description,omitempty"`
	Body              string                `json:"body"`
	Status            string                `json:"status"`
	Amount            decimal.Decimal       `json:"amount"`
	PaymentSchedule   []PaymentScheduleItem `json:"payment_schedule"`
	StartDate         *time.Time            `json:"start_date,omitempty"`
	CustomerSignature string                `json:"customer_signature,omitempty"`
	CustomerSignedAt  *time.Time            `json:"customer_signed_at,omitempty"`
	SentAt            *time.Time            `json:"sent_at,omitempty"`
	ViewedAt          *time.Time            `json:"viewed_at,omitempty"`
	CancelledAt       *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// PaymentScheduleItem is one installment of a contract
type PaymentScheduleItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Status      string          `json:"status"`
}

// ScheduleItem returns the installment with the given id
func (c *Contract) ScheduleItem(id string) (*PaymentScheduleItem, bool) {
	for i := range c.PaymentSchedule {
		if c.PaymentSchedule[i].ID == id {
			return &c.PaymentSchedule[i], true
		}
	}
	return nil, false
}

// ScheduleItemByAmount returns the first invoiced installment whose amount
// equals the given amount. Only used for invoices that predate schedule item
// references.
func (c *Contract) ScheduleItemByAmount(amount decimal.Decimal) (*PaymentScheduleItem, bool) {
	for i := range c.PaymentSchedule {
		item := &c.PaymentSchedule[i]
		if item.Status == ScheduleItemStatusInvoiced && item.Amount.Equal(amount) {
			return item, true
		}
	}
	return nil, false
}

// ScheduleTotal sums all installments
func (c *Contract) ScheduleTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.PaymentSchedule {
		total = total.Add(item.Amount)
	}
	return total
}
