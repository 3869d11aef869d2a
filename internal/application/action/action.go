// Package action holds the catalog of workflow steps. Each handler takes
// the merged event data and step configuration as input, acts against the
// application services, and reports a Result.
package action

import (
	"context"
)

// Kind identifies an action handler
type Kind string

const (
	KindSendEmail             Kind = "send_email"
	KindSendSMS               Kind = "send_sms"
	KindCreateTask            Kind = "create_task"
	KindCreateCustomerAccount Kind = "create_customer_account"
	KindCreateProject         Kind = "create_project"
	KindConvertToContract     Kind = "convert_to_contract"
	KindCreateInvoice         Kind = "create_invoice"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is one of the defined constants
func (k Kind) IsValid() bool {
	switch k {
	case KindSendEmail,
		KindSendSMS,
		KindCreateTask,
		KindCreateCustomerAccount,
		KindCreateProject,
		KindConvertToContract,
		KindCreateInvoice:
		return true
	default:
		return false
	}
}

// AllKinds lists every action kind in catalog order
func AllKinds() []Kind {
	return []Kind{
		KindSendEmail,
		KindSendSMS,
		KindCreateTask,
		KindCreateCustomerAccount,
		KindCreateProject,
		KindConvertToContract,
		KindCreateInvoice,
	}
}

// Field documents one input of an action for the admin UI
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Descriptor is the catalog entry of an action
type Descriptor struct {
	Kind        Kind    `json:"type"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
}

// Result is what an action reports back to the engine. Exports are merged
// into the run's event data so later actions can use them, e.g. the
// customer_id of an account created earlier in the same workflow.
type Result struct {
	Kind    Kind                   `json:"type"`
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
	Exports map[string]interface{} `json:"exports,omitempty"`
}

// Handler executes one kind of action
type Handler interface {
	Kind() Kind
	Describe() Descriptor
	Execute(ctx context.Context, in Input) (*Result, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
