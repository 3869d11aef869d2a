package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/flooring-crm/internal/application/action"
	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

// Store is the workflow definition store. It validates definitions before
// they reach the repository.
type Store interface {
	Create(ctx context.Context, wf *entity.Workflow) (*entity.Workflow, error)
	Get(ctx context.Context, id int64) (*entity.Workflow, error)
	Update(ctx context.Context, id int64, wf *entity.Workflow) (*entity.Workflow, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*entity.Workflow, error)
	// Seed inserts defs only when no workflow exists yet and reports how
	// many were inserted
	Seed(ctx context.Context, defs []*entity.Workflow) (int, error)
}

type storeImpl struct {
	workflows port.WorkflowRepository
	logger    Logger
	now       func() time.Time
}

// NewStore creates a new workflow definition Store
func NewStore(workflows port.WorkflowRepository, logger Logger) Store {
	return &storeImpl{
		workflows: workflows,
		logger:    logger,
		now:       time.Now,
	}
}

// Validate checks a definition. Empty conditions are normalized to nil.
func Validate(wf *entity.Workflow) error {
	wf.Name = strings.TrimSpace(wf.Name)
	if wf.Name == "" {
		return apperr.NewValidationError("name", "name is required")
	}
	if !TriggerType(wf.TriggerType).IsValid() {
		return apperr.NewValidationError("trigger_type", fmt.Sprintf("unknown trigger type %q", wf.TriggerType))
	}
	if wf.TriggerCondition != nil && strings.TrimSpace(*wf.TriggerCondition) == "" {
		wf.TriggerCondition = nil
	}
	if wf.DelayHours < 0 {
		return apperr.NewValidationError("delay_hours", "delay_hours cannot be negative")
	}
	if len(wf.Actions) == 0 {
		return apperr.NewValidationError("actions", "at least one action is required")
	}
	for i, a := range wf.Actions {
		if !action.Kind(a.Type).IsValid() {
			return apperr.NewValidationError("actions", fmt.Sprintf("action %d: unknown type %q", i, a.Type))
		}
		if a.Data == nil {
			wf.Actions[i].Data = map[string]interface{}{}
		}
	}
	return nil
}

func (s *storeImpl) Create(ctx context.Context, wf *entity.Workflow) (*entity.Workflow, error) {
	if err := Validate(wf); err != nil {
		return nil, err
	}
	now := s.now()
	wf.ID = 0
	wf.CreatedAt = now
	wf.UpdatedAt = now
	if err := s.workflows.Create(ctx, wf); err != nil {
		return nil, apperr.NewPersistenceError("create workflow", err)
	}
	s.logger.Info("Workflow created", "workflow_id", wf.ID, "name", wf.Name, "trigger", wf.TriggerType)
	return wf, nil
}

func (s *storeImpl) Get(ctx context.Context, id int64) (*entity.Workflow, error) {
	wf, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NewPersistenceError("get workflow", err)
	}
	if wf == nil {
		return nil, apperr.NewEntityNotFoundError("workflow", id)
	}
	return wf, nil
}

func (s *storeImpl) Update(ctx context.Context, id int64, wf *entity.Workflow) (*entity.Workflow, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Validate(wf); err != nil {
		return nil, err
	}
	wf.ID = existing.ID
	wf.CreatedAt = existing.CreatedAt
	wf.UpdatedAt = s.now()
	if err := s.workflows.Update(ctx, wf); err != nil {
		return nil, apperr.NewPersistenceError("update workflow", err)
	}
	s.logger.Info("Workflow updated", "workflow_id", wf.ID, "active", wf.IsActive)
	return wf, nil
}

func (s *storeImpl) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.workflows.Delete(ctx, id); err != nil {
		return apperr.NewPersistenceError("delete workflow", err)
	}
	s.logger.Info("Workflow deleted", "workflow_id", id)
	return nil
}

func (s *storeImpl) List(ctx context.Context) ([]*entity.Workflow, error) {
	list, err := s.workflows.List(ctx)
	if err != nil {
		return nil, apperr.NewPersistenceError("list workflows", err)
	}
	return list, nil
}

func (s *storeImpl) Seed(ctx context.Context, defs []*entity.Workflow) (int, error) {
	count, err := s.workflows.Count(ctx)
	if err != nil {
		return 0, apperr.NewPersistenceError("count workflows", err)
	}
	if count > 0 {
		s.logger.Info("Workflow store not empty, skipping seed", "existing", count)
		return 0, nil
	}

	for i, def := range defs {
		if err := Validate(def); err != nil {
			return i, fmt.Errorf("seed workflow %q: %w", def.Name, err)
		}
	}
	for i, def := range defs {
		if _, err := s.Create(ctx, def); err != nil {
			return i, err
		}
	}
	return len(defs), nil
}
