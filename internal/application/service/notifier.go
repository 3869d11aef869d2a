package service

import (
	"context"

	"github.com/garyjia/flooring-crm/internal/application/port"
)

// recipient is who a customer-facing notification goes to
type recipient struct {
	Email string
	Phone string
	Name  string
}

// resolveRecipient prefers the portal account and falls back to the contact
func resolveRecipient(ctx context.Context, users port.CustomerUserRepository, contacts port.ContactRepository, customerUserID, contactID *int64) (recipient, bool) {
	var r recipient
	if customerUserID != nil && users != nil {
		if u, err := users.GetByID(ctx, *customerUserID); err == nil && u != nil {
			r.Email, r.Name, r.Phone = u.Email, u.Name, u.Phone
		}
	}
	if contactID != nil && contacts != nil && (r.Email == "" || r.Name == "") {
		if c, err := contacts.GetByID(ctx, *contactID); err == nil && c != nil {
			if r.Email == "" {
				r.Email = c.Email
			}
			if r.Name == "" {
				r.Name = c.FullName()
			}
			if r.Phone == "" {
				r.Phone = c.Phone
			}
		}
	}
	return r, r.Email != ""
}

// logDelivery records the outcome of a best-effort send. Delivery failures
// never fail the caller.
func logDelivery(logger Logger, what string, res port.NotificationResult, kv ...interface{}) bool {
	if res.Success {
		logger.Info(what+" sent", append(kv, "message_id", res.MessageID)...)
		return true
	}
	logger.Warn(what+" not delivered", append(kv, "error", res.Error)...)
	return false
}
