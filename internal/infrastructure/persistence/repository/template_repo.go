package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/infrastructure/persistence/sqlite"
)

// TemplateRepository implements port.TemplateRepository for both
// email and SMS templates
type TemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// CreateEmail inserts an email template and sets its ID
func (r *TemplateRepository) CreateEmail(ctx context.Context, tpl *entity.EmailTemplate) error {
	query := `
		INSERT INTO email_templates (name, subject, html_body, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		tpl.Name, tpl.Subject, tpl.HTMLBody, tpl.Category, utc(tpl.CreatedAt), utc(tpl.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create email template", zap.String("name", tpl.Name), zap.Error(err))
		return fmt.Errorf("failed to create email template: %w", err)
	}

	tpl.ID, err = insertID(result)
	return err
}

// GetEmail retrieves an email template by ID
func (r *TemplateRepository) GetEmail(ctx context.Context, id int64) (*entity.EmailTemplate, error) {
	query := `SELECT id, name, subject, html_body, category, created_at, updated_at FROM email_templates WHERE id = ?`

	var tpl entity.EmailTemplate
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&tpl.ID, &tpl.Name, &tpl.Subject, &tpl.HTMLBody, &tpl.Category, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get email template", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get email template: %w", err)
	}
	return &tpl, nil
}

// ListEmail retrieves all email templates ordered by name
func (r *TemplateRepository) ListEmail(ctx context.Context) ([]*entity.EmailTemplate, error) {
	query := `SELECT id, name, subject, html_body, category, created_at, updated_at FROM email_templates ORDER BY name, id`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list email templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list email templates: %w", err)
	}
	defer rows.Close()

	templates := []*entity.EmailTemplate{}
	for rows.Next() {
		var tpl entity.EmailTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Subject, &tpl.HTMLBody, &tpl.Category, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan email template: %w", err)
		}
		templates = append(templates, &tpl)
	}
	return templates, rows.Err()
}

// CreateSms inserts an SMS template and sets its ID
func (r *TemplateRepository) CreateSms(ctx context.Context, tpl *entity.SmsTemplate) error {
	query := `INSERT INTO sms_templates (name, body, created_at, updated_at) VALUES (?, ?, ?, ?)`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, tpl.Name, tpl.Body, utc(tpl.CreatedAt), utc(tpl.UpdatedAt))
	if err != nil {
		r.logger.Error("Failed to create sms template", zap.String("name", tpl.Name), zap.Error(err))
		return fmt.Errorf("failed to create sms template: %w", err)
	}

	tpl.ID, err = insertID(result)
	return err
}

// GetSms retrieves an SMS template by ID
func (r *TemplateRepository) GetSms(ctx context.Context, id int64) (*entity.SmsTemplate, error) {
	query := `SELECT id, name, body, created_at, updated_at FROM sms_templates WHERE id = ?`

	var tpl entity.SmsTemplate
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&tpl.ID, &tpl.Name, &tpl.Body, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get sms template", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get sms template: %w", err)
	}
	return &tpl, nil
}

// ListSms retrieves all SMS templates ordered by name
func (r *TemplateRepository) ListSms(ctx context.Context) ([]*entity.SmsTemplate, error) {
	query := `SELECT id, name, body, created_at, updated_at FROM sms_templates ORDER BY name, id`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list sms templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list sms templates: %w", err)
	}
	defer rows.Close()

	templates := []*entity.SmsTemplate{}
	for rows.Next() {
		var tpl entity.SmsTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Body, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sms template: %w", err)
		}
		templates = append(templates, &tpl)
	}
	return templates, rows.Err()
}

// Verify interface compliance
var _ port.TemplateRepository = (*TemplateRepository)(nil)
