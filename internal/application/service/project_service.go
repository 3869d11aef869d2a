package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

// CreateProjectInput describes a new customer project
type CreateProjectInput struct {
	CustomerID     int64
	ContactID      *int64
	Title          string
	Description    string
	Status         string
	FlooringType   string
	SquareFootage  decimal.NullDecimal
	EstimatedCost  decimal.NullDecimal
	StartDate      *time.Time
	NotifyCustomer bool
}

// ProjectService manages customer projects and their append-only timelines
type ProjectService interface {
	Create(ctx context.Context, in CreateProjectInput) (*entity.CustomerProject, error)
	Get(ctx context.Context, id int64) (*entity.CustomerProject, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]*entity.CustomerProject, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*entity.CustomerProject, error)
	AddProgressUpdate(ctx context.Context, id int64, update entity.ProgressUpdate, notify bool) (*entity.CustomerProject, error)
	AddDocument(ctx context.Context, id int64, doc entity.ProjectDocument, notify bool) (*entity.CustomerProject, error)
}

type projectServiceImpl struct {
	projects port.ProjectRepository
	users    port.CustomerUserRepository
	sink     port.NotificationSink
	logger   Logger
	now      Clock
}

// NewProjectService creates a new ProjectService
func NewProjectService(
	projects port.ProjectRepository,
	users port.CustomerUserRepository,
	sink port.NotificationSink,
	logger Logger,
) ProjectService {
	return &projectServiceImpl{
		projects: projects,
		users:    users,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *projectServiceImpl) Create(ctx context.Context, in CreateProjectInput) (*entity.CustomerProject, error) {
	if in.CustomerID == 0 {
		return nil, apperr.NewValidationError("customer_id", "customer_id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.NewValidationError("title", "title is required")
	}

	status := in.Status
	if status == "" {
		status = entity.ProjectStatusPending
	}

	now := s.now()
	project := &entity.CustomerProject{
		CustomerID:      in.CustomerID,
		ContactID:       in.ContactID,
		Title:           in.Title,
		Description:     in.Description,
		Status:          status,
		FlooringType:    in.FlooringType,
		SquareFootage:   in.SquareFootage,
		EstimatedCost:   in.EstimatedCost,
		StartDate:       in.StartDate,
		ProgressUpdates: []entity.ProgressUpdate{},
		Documents:       []entity.ProjectDocument{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, persistErr("create project", err)
	}

	s.logger.Info("Project created", "project_id", project.ID, "customer_id", project.CustomerID, "status", status)

	if in.NotifyCustomer {
		s.notifyUpdate(ctx, project, "Your project has been created.")
	}

	return project, nil
}

func (s *projectServiceImpl) Get(ctx context.Context, id int64) (*entity.CustomerProject, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, persistErr("get project", err)
	}
	if project == nil {
		return nil, apperr.NewEntityNotFoundError("project", id)
	}
	return project, nil
}

func (s *projectServiceImpl) ListByCustomer(ctx context.Context, customerID int64) ([]*entity.CustomerProject, error) {
	projects, err := s.projects.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, persistErr("list projects", err)
	}
	return projects, nil
}

func (s *projectServiceImpl) UpdateStatus(ctx context.Context, id int64, status string) (*entity.CustomerProject, error) {
	if strings.TrimSpace(status) == "" {
		return nil, apperr.NewValidationError("status", "status is required")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.projects.UpdateStatus(ctx, id, status); err != nil {
		return nil, persistErr("update project status", err)
	}
	return s.Get(ctx, id)
}

func (s *projectServiceImpl) AddProgressUpdate(ctx context.Context, id int64, update entity.ProgressUpdate, notify bool) (*entity.CustomerProject, error) {
	if strings.TrimSpace(update.Status) == "" {
		return nil, apperr.NewValidationError("status", "progress update status is required")
	}
	if update.Date.IsZero() {
		update.Date = s.now()
	}
	if update.Images == nil {
		update.Images = []string{}
	}

	project, err := s.projects.AddProgressUpdate(ctx, id, update)
	if err != nil {
		return nil, persistErr("add progress update", err)
	}
	if project == nil {
		return nil, apperr.NewEntityNotFoundError("project", id)
	}

	if notify {
		s.notifyUpdate(ctx, project, update.Note)
	}
	return project, nil
}

func (s *projectServiceImpl) AddDocument(ctx context.Context, id int64, doc entity.ProjectDocument, notify bool) (*entity.CustomerProject, error) {
	if doc.Name == "" || doc.URL == "" {
		return nil, apperr.NewValidationError("document", "document name and url are required")
	}
	if doc.UploadDate.IsZero() {
		doc.UploadDate = s.now()
	}

	project, err := s.projects.AddDocument(ctx, id, doc)
	if err != nil {
		return nil, persistErr("add project document", err)
	}
	if project == nil {
		return nil, apperr.NewEntityNotFoundError("project", id)
	}

	if notify {
		if user, err := s.users.GetByID(ctx, project.CustomerID); err == nil && user != nil {
			res := s.sink.SendNewDocumentNotification(ctx, port.NewDocumentNotice{
				To:           user.Email,
				Name:         user.Name,
				DocumentType: doc.Type,
				DocumentName: doc.Name,
			})
			logDelivery(s.logger, "Document notification", res, "project_id", id)
		}
	}
	return project, nil
}

// notifyUpdate emails the project owner if the owner has a portal account
func (s *projectServiceImpl) notifyUpdate(ctx context.Context, project *entity.CustomerProject, note string) {
	user, err := s.users.GetByID(ctx, project.CustomerID)
	if err != nil {
		s.logger.Warn("Could not load project owner", "project_id", project.ID, "error", err)
		return
	}
	if user == nil {
		return
	}
	res := s.sink.SendProjectUpdate(ctx, port.ProjectUpdateNotice{
		To:           user.Email,
		Name:         user.Name,
		ProjectTitle: project.Title,
		Status:       project.Status,
		Note:         note,
	})
	logDelivery(s.logger, "Project update", res, "project_id", project.ID)
}
