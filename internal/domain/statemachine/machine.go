package statemachine

import "context"

// State is a document status
type State string

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// Trigger is an event that can move a document to another status
type Trigger string

const (
	TriggerSend        Trigger = "send"
	TriggerView        Trigger = "view"
	TriggerApprove     Trigger = "approve"
	TriggerReject      Trigger = "reject"
	TriggerConvert     Trigger = "convert"
	TriggerSign        Trigger = "sign"
	TriggerCancel      Trigger = "cancel"
	TriggerPay         Trigger = "pay"
	TriggerMarkOverdue Trigger = "mark_overdue"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// StateMachine tracks the current state of one document and validates
// transitions against its lifecycle
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger

	// IsTerminal reports whether no trigger leaves the current state
	IsTerminal() bool
}
