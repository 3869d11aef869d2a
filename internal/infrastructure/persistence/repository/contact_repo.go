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

const contactColumns = `id, first_name, last_name, email, phone, address, stage, source, notes, created_at, updated_at`

// ContactRepository implements port.ContactRepository
type ContactRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *sql.DB, logger *zap.Logger) port.ContactRepository {
	return &ContactRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a contact and sets its ID
func (r *ContactRepository) Create(ctx context.Context, c *entity.Contact) error {
	query := `
		INSERT INTO contacts (
			first_name, last_name, email, phone, address, stage, source, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Address, c.Stage, c.Source, c.Notes,
		utc(c.CreatedAt), utc(c.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create contact", zap.Error(err))
		return fmt.Errorf("failed to create contact: %w", err)
	}

	c.ID, err = insertID(result)
	return err
}

// GetByID retrieves a contact by ID
func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*entity.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = ?`
	c, err := scanContact(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get contact", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

// GetByEmail retrieves the oldest contact with the given email
func (r *ContactRepository) GetByEmail(ctx context.Context, email string) (*entity.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE email = ? AND email != '' ORDER BY id LIMIT 1`
	c, err := scanContact(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get contact by email", zap.Error(err))
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

// Update writes all mutable contact fields
func (r *ContactRepository) Update(ctx context.Context, c *entity.Contact) error {
	query := `
		UPDATE contacts SET
			first_name = ?, last_name = ?, email = ?, phone = ?, address = ?,
			stage = ?, source = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Address,
		c.Stage, c.Source, c.Notes, utc(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update contact", zap.Int64("id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return nil
}

// List retrieves contacts with pagination, newest first
func (r *ContactRepository) List(ctx context.Context, limit, offset int) ([]*entity.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY id DESC LIMIT ? OFFSET ?`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list contacts", zap.Error(err))
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []*entity.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func scanContact(s scanner) (*entity.Contact, error) {
	var c entity.Contact
	err := s.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address,
		&c.Stage, &c.Source, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AppointmentRepository implements port.AppointmentRepository
type AppointmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAppointmentRepository creates a new appointment repository
func NewAppointmentRepository(db *sql.DB, logger *zap.Logger) port.AppointmentRepository {
	return &AppointmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an appointment and sets its ID
func (r *AppointmentRepository) Create(ctx context.Context, a *entity.Appointment) error {
	query := `
		INSERT INTO appointments (contact_id, title, scheduled_at, location, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		a.ContactID, a.Title, utc(a.ScheduledAt), a.Location, a.Notes, utc(a.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create appointment", zap.Int64("contact_id", a.ContactID), zap.Error(err))
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	a.ID, err = insertID(result)
	return err
}

// GetByID retrieves an appointment by ID
func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*entity.Appointment, error) {
	query := `
		SELECT id, contact_id, title, scheduled_at, location, notes, created_at
		FROM appointments WHERE id = ?
	`

	var a entity.Appointment
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.ContactID, &a.Title, &a.ScheduledAt, &a.Location, &a.Notes, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get appointment", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &a, nil
}

// ListByContact retrieves a contact's appointments in date order
func (r *AppointmentRepository) ListByContact(ctx context.Context, contactID int64) ([]*entity.Appointment, error) {
	query := `
		SELECT id, contact_id, title, scheduled_at, location, notes, created_at
		FROM appointments WHERE contact_id = ?
		ORDER BY scheduled_at
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, contactID)
	if err != nil {
		r.logger.Error("Failed to list appointments", zap.Int64("contact_id", contactID), zap.Error(err))
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	appts := []*entity.Appointment{}
	for rows.Next() {
		var a entity.Appointment
		if err := rows.Scan(&a.ID, &a.ContactID, &a.Title, &a.ScheduledAt, &a.Location, &a.Notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, &a)
	}
	return appts, rows.Err()
}

// Verify interface compliance
var (
	_ port.ContactRepository     = (*ContactRepository)(nil)
	_ port.AppointmentRepository = (*AppointmentRepository)(nil)
)
