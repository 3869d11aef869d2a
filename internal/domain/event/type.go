package event

// Type identifies the type of domain event
type Type string

const (
	TypeEstimateApproved     Type = "estimate.approved"
	TypeContractSigned       Type = "contract.signed"
	TypeFormSubmitted        Type = "form.submitted"
	TypeLeadStageChanged     Type = "lead.stage_changed"
	TypeAppointmentScheduled Type = "appointment.scheduled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeEstimateApproved,
		TypeContractSigned,
		TypeFormSubmitted,
		TypeLeadStageChanged,
		TypeAppointmentScheduled:
		return true
	default:
		return false
	}
}

// AllTypes lists every business event in a stable order
func AllTypes() []Type {
	return []Type{
		TypeEstimateApproved,
		TypeContractSigned,
		TypeFormSubmitted,
		TypeLeadStageChanged,
		TypeAppointmentScheduled,
	}
}
