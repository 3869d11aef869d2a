package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
	"github.com/garyjia/flooring-crm/internal/infrastructure/persistence/sqlite"
)

const customerUserColumns = `id, email, username, password_hash, name, phone, contact_id, created_at, updated_at`

// CustomerUserRepository implements port.CustomerUserRepository
type CustomerUserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCustomerUserRepository creates a new customer user repository
func NewCustomerUserRepository(db *sql.DB, logger *zap.Logger) port.CustomerUserRepository {
	return &CustomerUserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a portal account and sets its ID
func (r *CustomerUserRepository) Create(ctx context.Context, u *entity.CustomerUser) error {
	query := `
		INSERT INTO customer_users (
			email, username, password_hash, name, phone, contact_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		u.Email, u.Username, u.PasswordHash, u.Name, u.Phone, nullInt64(u.ContactID),
		utc(u.CreatedAt), utc(u.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create customer user", zap.String("username", u.Username), zap.Error(err))
		return fmt.Errorf("failed to create customer user: %w", err)
	}

	u.ID, err = insertID(result)
	return err
}

// GetByID retrieves an account by ID
func (r *CustomerUserRepository) GetByID(ctx context.Context, id int64) (*entity.CustomerUser, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByContactID retrieves the account linked to a contact
func (r *CustomerUserRepository) GetByContactID(ctx context.Context, contactID int64) (*entity.CustomerUser, error) {
	return r.getOne(ctx, "contact_id = ?", contactID)
}

// GetByEmail retrieves an account by email
func (r *CustomerUserRepository) GetByEmail(ctx context.Context, email string) (*entity.CustomerUser, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByUsername retrieves an account by username
func (r *CustomerUserRepository) GetByUsername(ctx context.Context, username string) (*entity.CustomerUser, error) {
	return r.getOne(ctx, "username = ?", username)
}

// UpdatePassword replaces the stored password hash
func (r *CustomerUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE customer_users SET password_hash = ?, updated_at = ? WHERE id = ?`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, passwordHash, utc(time.Now()), id)
	if err != nil {
		r.logger.Error("Failed to update password", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (r *CustomerUserRepository) getOne(ctx context.Context, where string, arg interface{}) (*entity.CustomerUser, error) {
	query := `SELECT ` + customerUserColumns + ` FROM customer_users WHERE ` + where + ` ORDER BY id LIMIT 1`

	var u entity.CustomerUser
	var contactID sql.NullInt64
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Name, &u.Phone, &contactID,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get customer user", zap.String("where", where), zap.Error(err))
		return nil, fmt.Errorf("failed to get customer user: %w", err)
	}
	u.ContactID = int64Ptr(contactID)
	return &u, nil
}

// Verify interface compliance
var _ port.CustomerUserRepository = (*CustomerUserRepository)(nil)
