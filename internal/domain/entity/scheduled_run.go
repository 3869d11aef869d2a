package entity

import "time"

// ScheduledRunLease is how long a claimed run may stay running before
// another claim hands it out again. Covers a process that died mid-run.
const ScheduledRunLease = 10 * time.Minute

// ScheduledRun is a delayed workflow execution persisted so that it
// survives a restart
type ScheduledRun struct {
	ID         string                 `json:"id"`
	WorkflowID int64                  `json:"workflow_id"`
	EventData  map[string]interface{} `json:"event_data"`
	RunAt      time.Time              `json:"run_at"`
	Status     string                 `json:"status"`
	Attempts   int                    `json:"attempts"`
	LastError  string                 `json:"last_error,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}
