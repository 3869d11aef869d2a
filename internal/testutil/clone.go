package testutil

import (
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneLineItems(items []entity.LineItem) []entity.LineItem {
	if items == nil {
		return nil
	}
	return append([]entity.LineItem(nil), items...)
}

func cloneEstimate(e *entity.Estimate) *entity.Estimate {
	c := *e
	c.LineItems = cloneLineItems(e.LineItems)
	return &c
}

func cloneContract(e *entity.Contract) *entity.Contract {
	c := *e
	if e.PaymentSchedule != nil {
		c.PaymentSchedule = append([]entity.PaymentScheduleItem(nil), e.PaymentSchedule...)
	}
	return &c
}

func cloneInvoice(e *entity.Invoice) *entity.Invoice {
	c := *e
	c.LineItems = cloneLineItems(e.LineItems)
	return &c
}

func cloneProject(e *entity.CustomerProject) *entity.CustomerProject {
	c := *e
	c.ProgressUpdates = make([]entity.ProgressUpdate, len(e.ProgressUpdates))
	for i, u := range e.ProgressUpdates {
		if u.Images != nil {
			u.Images = append([]string{}, u.Images...)
		}
		c.ProgressUpdates[i] = u
	}
	c.Documents = append([]entity.ProjectDocument{}, e.Documents...)
	return &c
}

func cloneWorkflow(e *entity.Workflow) *entity.Workflow {
	c := *e
	if e.TriggerCondition != nil {
		cond := *e.TriggerCondition
		c.TriggerCondition = &cond
	}
	c.Actions = make([]entity.WorkflowAction, len(e.Actions))
	for i, a := range e.Actions {
		c.Actions[i] = entity.WorkflowAction{Type: a.Type, Data: cloneMap(a.Data)}
	}
	return &c
}

func cloneScheduledRun(e *entity.ScheduledRun) *entity.ScheduledRun {
	c := *e
	c.EventData = cloneMap(e.EventData)
	return &c
}

func clonePtr[T any](v *T) *T {
	c := *v
	return &c
}
