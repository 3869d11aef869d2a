package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerProject is an installation job visible in the customer portal
type CustomerProject struct {
	ID              int64               `json:"id"`
	CustomerID      int64               `json:"customer_id"`
	ContactID       *int64              `json:"contact_id,omitempty"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	Status          string              `json:"status"`
	FlooringType    string              `json:"flooring_type,omitempty"`
	SquareFootage   decimal.NullDecimal `json:"square_footage"`
	EstimatedCost   decimal.NullDecimal `json:"estimated_cost"`
	StartDate       *time.Time          `json:"start_date,omitempty"`
	ProgressUpdates []ProgressUpdate    `json:"progress_updates"`
	Documents       []ProjectDocument   `json:"documents"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// ProgressUpdate is one entry in a project's timeline
type ProgressUpdate struct {
	Date   time.Time `json:"date"`
	Status string    `json:"status"`
	Note   string    `json:"note"`
	Images []string  `json:"images"`
}

// ProjectDocument is a file shared with the customer
type ProjectDocument struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	UploadDate time.Time `json:"upload_date"`
}

// AddProgressUpdate appends to the timeline and moves the project status
// to the update's status. Existing entries are left untouched.
func (p *CustomerProject) AddProgressUpdate(u ProgressUpdate) {
	if u.Images == nil {
		u.Images = []string{}
	}
	p.ProgressUpdates = append(p.ProgressUpdates, u)
	if u.Status != "" {
		p.Status = u.Status
	}
}

// AddDocument appends a document
func (p *CustomerProject) AddDocument(d ProjectDocument) {
	p.Documents = append(p.Documents, d)
}
