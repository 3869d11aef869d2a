package entity

import "time"

// Task is an internal follow-up for staff
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ContactID   *int64     `json:"contact_id,omitempty"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
