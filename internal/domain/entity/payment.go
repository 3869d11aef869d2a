package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is money received against one invoice
type Payment struct {
	ID             int64           `json:"id"`
	InvoiceID      int64           `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method,omitempty"`
	Status         string          `json:"status"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	ReceiptSent    bool            `json:"receipt_sent"`
	PaidAt         time.Time       `json:"paid_at"`
	CreatedAt      time.Time       `json:"created_at"`
}
