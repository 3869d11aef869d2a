package action

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

// CreateTask records a follow-up for staff and alerts them
type CreateTask struct {
	tasks     port.TaskRepository
	messenger port.StaffMessenger
	logger    Logger
	now       func() time.Time
}

// NewCreateTask creates the create_task handler. messenger may be nil.
func NewCreateTask(tasks port.TaskRepository, messenger port.StaffMessenger, logger Logger) *CreateTask {
	return &CreateTask{tasks: tasks, messenger: messenger, logger: logger, now: time.Now}
}

func (h *CreateTask) Kind() Kind { return KindCreateTask }

func (h *CreateTask) Describe() Descriptor {
	return Descriptor{
		Kind:        KindCreateTask,
		Label:       "Create Task",
		Description: "Create a follow-up task for staff",
		Fields: []Field{
			{Name: "title", Type: "string", Required: true},
			{Name: "description", Type: "string"},
			{Name: "assigned_to", Type: "string"},
			{Name: "priority", Type: "string", Description: "low, normal or high"},
			{Name: "due_in_hours", Type: "number"},
		},
	}
}

func (h *CreateTask) Execute(ctx context.Context, in Input) (*Result, error) {
	vars := in.Vars()
	title := service.RenderTemplate(in.String("task_title", "title"), vars)
	if title == "" {
		return nil, apperr.NewActionInputError(string(KindCreateTask), "title", "task title is required")
	}

	priority := in.String("priority")
	if priority == "" {
		priority = "normal"
	}
	now := h.now()
	task := &entity.Task{
		Title:       title,
		Description: service.RenderTemplate(in.String("task_description", "description"), vars),
		ContactID:   in.Int64Ptr("contact_id"),
		AssignedTo:  in.String("assigned_to"),
		Priority:    priority,
		Status:      entity.TaskStatusOpen,
		CreatedAt:   now,
	}
	if hours := in.Int("due_in_hours", 0); hours > 0 {
		due := now.Add(time.Duration(hours) * time.Hour)
		task.DueDate = &due
	}

	if err := h.tasks.Create(ctx, task); err != nil {
		return nil, apperr.NewPersistenceError("create task", err)
	}

	if h.messenger != nil {
		body := task.Description
		if task.AssignedTo != "" {
			body = fmt.Sprintf("%s\nAssigned to: %s", body, task.AssignedTo)
		}
		if err := h.messenger.NotifyStaff(ctx, "New task: "+task.Title, body); err != nil {
			h.logger.Warn("Staff alert for task failed", "task_id", task.ID, "error", err)
		}
	}

	return &Result{
		Kind:    KindCreateTask,
		Success: true,
		Data:    task,
		Exports: map[string]interface{}{"task_id": task.ID},
	}, nil
}
