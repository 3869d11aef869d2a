package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

const (
	tempPasswordLength = 12
	passwordAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"
)

// EnsureAccountInput describes the portal account to provision
type EnsureAccountInput struct {
	ContactID        *int64
	Email            string
	Name             string
	Phone            string
	SendWelcomeEmail bool
}

// CustomerService provisions customer portal accounts
type CustomerService interface {
	// EnsureAccount returns the account linked to the contact if there is one,
	// otherwise creates it. created reports which happened.
	EnsureAccount(ctx context.Context, in EnsureAccountInput) (user *entity.CustomerUser, created bool, err error)
	GetAccount(ctx context.Context, id int64) (*entity.CustomerUser, error)
	// ResendCredentials rotates the temporary password and sends it again
	ResendCredentials(ctx context.Context, id int64) error
}

type customerServiceImpl struct {
	users    port.CustomerUserRepository
	contacts port.ContactRepository
	sink     port.NotificationSink
	logger   Logger
	now      Clock
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(
	users port.CustomerUserRepository,
	contacts port.ContactRepository,
	sink port.NotificationSink,
	logger Logger,
) CustomerService {
	return &customerServiceImpl{
		users:    users,
		contacts: contacts,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *customerServiceImpl) EnsureAccount(ctx context.Context, in EnsureAccountInput) (*entity.CustomerUser, bool, error) {
	var contact *entity.Contact
	if in.ContactID != nil {
		existing, err := s.users.GetByContactID(ctx, *in.ContactID)
		if err != nil {
			return nil, false, persistErr("get customer by contact", err)
		}
		if existing != nil {
			s.logger.Info("Customer account already exists", "contact_id", *in.ContactID, "customer_user_id", existing.ID)
			return existing, false, nil
		}

		contact, err = s.contacts.GetByID(ctx, *in.ContactID)
		if err != nil {
			return nil, false, persistErr("get contact", err)
		}
	}

	email := strings.TrimSpace(in.Email)
	name := in.Name
	phone := in.Phone
	if contact != nil {
		if email == "" {
			email = contact.Email
		}
		if name == "" {
			name = contact.FullName()
		}
		if phone == "" {
			phone = contact.Phone
		}
	}
	if email == "" {
		return nil, false, apperr.NewActionInputError("create_customer_account", "email", "no email address for customer account")
	}
	email = strings.ToLower(email)

	if other, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, false, persistErr("get customer by email", err)
	} else if other != nil {
		return nil, false, apperr.NewConflictError("customer_user", fmt.Sprintf("email %s already has a portal account", email))
	}

	username, err := s.uniqueUsername(ctx, email)
	if err != nil {
		return nil, false, err
	}

	password, err := generatePassword(tempPasswordLength)
	if err != nil {
		return nil, false, fmt.Errorf("generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &entity.CustomerUser{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Name:         name,
		Phone:        phone,
		ContactID:    in.ContactID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, persistErr("create customer user", err)
	}

	s.logger.Info("Customer account created", "customer_user_id", user.ID, "username", username)

	if in.SendWelcomeEmail {
		// The temporary password goes out in plaintext on this channel only
		res := s.sink.SendCustomerPortalWelcome(ctx, port.PortalWelcome{
			To:           user.Email,
			Name:         user.Name,
			Username:     user.Username,
			TempPassword: password,
		})
		logDelivery(s.logger, "Portal welcome", res, "customer_user_id", user.ID)
	}

	return user, true, nil
}

func (s *customerServiceImpl) GetAccount(ctx context.Context, id int64) (*entity.CustomerUser, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, persistErr("get customer user", err)
	}
	if user == nil {
		return nil, apperr.NewEntityNotFoundError("customer_user", id)
	}
	return user, nil
}

func (s *customerServiceImpl) ResendCredentials(ctx context.Context, id int64) error {
	user, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	password, err := generatePassword(tempPasswordLength)
	if err != nil {
		return fmt.Errorf("generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, id, string(hash)); err != nil {
		return persistErr("update password", err)
	}

	res := s.sink.SendCustomerPortalCredentials(ctx, port.PortalWelcome{
		To:           user.Email,
		Name:         user.Name,
		Username:     user.Username,
		TempPassword: password,
	})
	if !logDelivery(s.logger, "Portal credentials", res, "customer_user_id", id) {
		// the customer never saw the new password, so keep the old one working
		if err := s.users.UpdatePassword(ctx, id, user.PasswordHash); err != nil {
			s.logger.Error("Failed to restore previous password", "customer_user_id", id, "error", err)
			return persistErr("restore password", err)
		}
		return apperr.NewNotificationDeliveryError("email", user.Email, fmt.Errorf("%s", res.Error))
	}
	return nil
}

func (s *customerServiceImpl) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		base = email[:at]
	}

	candidate := base
	for i := 0; i < 5; i++ {
		existing, err := s.users.GetByUsername(ctx, candidate)
		if err != nil {
			return "", persistErr("get customer by username", err)
		}
		if existing == nil {
			return candidate, nil
		}
		n, err := rand.Int(rand.Reader, big.NewInt(10000))
		if err != nil {
			return "", fmt.Errorf("generate username suffix: %w", err)
		}
		candidate = fmt.Sprintf("%s%04d", base, n.Int64())
	}
	return "", apperr.NewConflictError("customer_user", "could not allocate a unique username")
}

func generatePassword(n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = passwordAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
