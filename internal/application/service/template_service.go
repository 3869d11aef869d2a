package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// RenderTemplate replaces {{name}} tokens with values from vars. Tokens
// without a matching key are left as they are.
func RenderTemplate(text string, vars map[string]interface{}) string {
	if len(vars) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := placeholderPattern.FindStringSubmatch(token)[1]
		v, ok := vars[key]
		if !ok {
			return token
		}
		return cast.ToString(v)
	})
}

// TemplateService manages reusable email and SMS templates
type TemplateService interface {
	CreateEmail(ctx context.Context, tpl *entity.EmailTemplate) (*entity.EmailTemplate, error)
	GetEmail(ctx context.Context, id int64) (*entity.EmailTemplate, error)
	ListEmail(ctx context.Context) ([]*entity.EmailTemplate, error)
	CreateSms(ctx context.Context, tpl *entity.SmsTemplate) (*entity.SmsTemplate, error)
	GetSms(ctx context.Context, id int64) (*entity.SmsTemplate, error)
	ListSms(ctx context.Context) ([]*entity.SmsTemplate, error)
}

type templateServiceImpl struct {
	templates port.TemplateRepository
	logger    Logger
	now       Clock
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(templates port.TemplateRepository, logger Logger) TemplateService {
	return &templateServiceImpl{
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *templateServiceImpl) CreateEmail(ctx context.Context, tpl *entity.EmailTemplate) (*entity.EmailTemplate, error) {
	if strings.TrimSpace(tpl.Name) == "" {
		return nil, apperr.NewValidationError("name", "name is required")
	}
	if tpl.Subject == "" || tpl.HTMLBody == "" {
		return nil, apperr.NewValidationError("subject", "subject and html_body are required")
	}
	now := s.now()
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	if err := s.templates.CreateEmail(ctx, tpl); err != nil {
		return nil, persistErr("create email template", err)
	}
	s.logger.Info("Email template created", "template_id", tpl.ID, "name", tpl.Name)
	return tpl, nil
}

func (s *templateServiceImpl) GetEmail(ctx context.Context, id int64) (*entity.EmailTemplate, error) {
	tpl, err := s.templates.GetEmail(ctx, id)
	if err != nil {
		return nil, persistErr("get email template", err)
	}
	if tpl == nil {
		return nil, apperr.NewEntityNotFoundError("email_template", id)
	}
	return tpl, nil
}

func (s *templateServiceImpl) ListEmail(ctx context.Context) ([]*entity.EmailTemplate, error) {
	list, err := s.templates.ListEmail(ctx)
	if err != nil {
		return nil, persistErr("list email templates", err)
	}
	return list, nil
}

func (s *templateServiceImpl) CreateSms(ctx context.Context, tpl *entity.SmsTemplate) (*entity.SmsTemplate, error) {
	if strings.TrimSpace(tpl.Name) == "" {
		return nil, apperr.NewValidationError("name", "name is required")
	}
	if tpl.Body == "" {
		return nil, apperr.NewValidationError("body", "body is required")
	}
	now := s.now()
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	if err := s.templates.CreateSms(ctx, tpl); err != nil {
		return nil, persistErr("create sms template", err)
	}
	s.logger.Info("SMS template created", "template_id", tpl.ID, "name", tpl.Name)
	return tpl, nil
}

func (s *templateServiceImpl) GetSms(ctx context.Context, id int64) (*entity.SmsTemplate, error) {
	tpl, err := s.templates.GetSms(ctx, id)
	if err != nil {
		return nil, persistErr("get sms template", err)
	}
	if tpl == nil {
		return nil, apperr.NewEntityNotFoundError("sms_template", id)
	}
	return tpl, nil
}

func (s *templateServiceImpl) ListSms(ctx context.Context) ([]*entity.SmsTemplate, error) {
	list, err := s.templates.ListSms(ctx)
	if err != nil {
		return nil, persistErr("list sms templates", err)
	}
	return list, nil
}
