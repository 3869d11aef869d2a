package workflow

import "github.com/garyjia/flooring-crm/internal/domain/event"

// TriggerType is what makes a workflow run
type TriggerType string

const (
	TriggerLeadStageChange  TriggerType = "lead_stage_change"
	TriggerEstimateApproval TriggerType = "estimate_approval"
	TriggerContractSigned   TriggerType = "contract_signed"
	TriggerFormSubmission   TriggerType = "form_submission"
	TriggerAppointment      TriggerType = "appointment"
	// TriggerSchedule is accepted on definitions but nothing fires it yet
	TriggerSchedule TriggerType = "schedule"
	TriggerManual   TriggerType = "manual"
)

// String returns the string representation of the trigger
func (t TriggerType) String() string {
	return string(t)
}

// IsValid checks if the trigger is one of the defined constants
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerLeadStageChange,
		TriggerEstimateApproval,
		TriggerContractSigned,
		TriggerFormSubmission,
		TriggerAppointment,
		TriggerSchedule,
		TriggerManual:
		return true
	default:
		return false
	}
}

// TriggerInfo describes a trigger for the admin UI picker
type TriggerInfo struct {
	Type          TriggerType `json:"type"`
	Label         string      `json:"label"`
	Description   string      `json:"description"`
	UsesCondition bool        `json:"uses_condition"`
}

var triggerCatalog = []TriggerInfo{
	{TriggerLeadStageChange, "Lead Stage Change", "When a contact moves to the stage named in the condition", true},
	{TriggerEstimateApproval, "Estimate Approved", "When a customer approves an estimate", false},
	{TriggerContractSigned, "Contract Signed", "When a customer signs a contract", false},
	{TriggerFormSubmission, "Form Submission", "When the website contact form is submitted", false},
	{TriggerAppointment, "Appointment Scheduled", "When an appointment is booked for a contact", false},
	{TriggerSchedule, "Schedule", "Time based reminders", false},
	{TriggerManual, "Manual", "Only when run by hand", false},
}

// TriggerCatalog lists every trigger in a stable order
func TriggerCatalog() []TriggerInfo {
	return append([]TriggerInfo(nil), triggerCatalog...)
}

// TriggerForEvent maps a business event to the trigger it fires
func TriggerForEvent(t event.Type) (TriggerType, bool) {
	switch t {
	case event.TypeEstimateApproved:
		return TriggerEstimateApproval, true
	case event.TypeContractSigned:
		return TriggerContractSigned, true
	case event.TypeFormSubmitted:
		return TriggerFormSubmission, true
	case event.TypeLeadStageChanged:
		return TriggerLeadStageChange, true
	case event.TypeAppointmentScheduled:
		return TriggerAppointment, true
	default:
		return "", false
	}
}
