package entity

import "time"

// Workflow is an automation rule: when TriggerType fires (and the optional
// condition matches) run Actions in order.
type Workflow struct {
	ID               int64            `json:"id" yaml:"-"`
	Name             string           `json:"name" yaml:"name"`
	Description      string           `json:"description,omitempty" yaml:"description"`
	TriggerType      string           `json:"trigger_type" yaml:"trigger_type"`
	TriggerCondition *string          `json:"trigger_condition,omitempty" yaml:"trigger_condition"`
	Actions          []WorkflowAction `json:"actions" yaml:"actions"`
	IsActive         bool             `json:"is_active" yaml:"is_active"`
	DelayHours       int              `json:"delay_hours" yaml:"delay_hours"`
	CreatedAt        time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt        time.Time        `json:"updated_at" yaml:"-"`
}

// WorkflowAction is one step of a workflow with its static configuration
type WorkflowAction struct {
	Type string                 `json:"type" yaml:"type"`
	Data map[string]interface{} `json:"data,omitempty" yaml:"data"`
}

// Condition returns the trigger condition or an empty string
func (w *Workflow) Condition() string {
	if w.TriggerCondition == nil {
		return ""
	}
	return *w.TriggerCondition
}
