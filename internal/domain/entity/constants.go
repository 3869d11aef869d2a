package entity

// Estimate statuses
const (
	EstimateStatusDraft     = "draft"
	EstimateStatusSent      = "sent"
	EstimateStatusViewed    = "viewed"
	EstimateStatusApproved  = "approved"
	EstimateStatusRejected  = "rejected"
	EstimateStatusConverted = "converted"
)

// Contract statuses
const (
	ContractStatusDraft     = "draft"
	ContractStatusSent      = "sent"
	ContractStatusViewed    = "viewed"
	ContractStatusSigned    = "signed"
	ContractStatusCancelled = "cancelled"
)

// Payment schedule item statuses
const (
	ScheduleItemStatusScheduled = "scheduled"
	ScheduleItemStatusInvoiced  = "invoiced"
	ScheduleItemStatusPaid      = "paid"
)

// Invoice statuses
const (
	InvoiceStatusDraft         = "draft"
	InvoiceStatusSent          = "sent"
	InvoiceStatusViewed        = "viewed"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusOverdue       = "overdue"
	InvoiceStatusCancelled     = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Project statuses set by the pipeline. Admins may use any other label.
const (
	ProjectStatusPending    = "pending"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
)

// Task statuses
const (
	TaskStatusOpen = "open"
	TaskStatusDone = "done"
)

// Scheduled run statuses
const (
	ScheduledRunStatusPending   = "pending"
	ScheduledRunStatusRunning   = "running"
	ScheduledRunStatusCompleted = "completed"
	ScheduledRunStatusFailed    = "failed"
)

// Lead stages used by the CRM board
const (
	LeadStageNew        = "new"
	LeadStageContacted  = "contacted"
	LeadStageQualified  = "qualified"
	LeadStageProposal   = "proposal"
	LeadStageWon        = "won"
	LeadStageLost       = "lost"
)

// Document number prefixes
const (
	EstimateNumberPrefix = "EST"
	ContractNumberPrefix = "CTR"
	InvoiceNumberPrefix  = "INV"
)
