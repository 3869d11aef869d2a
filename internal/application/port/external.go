package port

import (
	"context"
	"io"
)

// NotificationResult is what the sink reports for one send. Sinks never
// return errors past their own boundary; failures come back as Success=false.
type NotificationResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EmailMessage is a rendered outbound email
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
}

// SmsMessage is a rendered outbound text message
type SmsMessage struct {
	To   string
	Body string
}

// PortalWelcome carries the data for a new portal account email.
// TempPassword is plaintext and must only travel on the notification channel.
type PortalWelcome struct {
	To           string
	Name         string
	Username     string
	TempPassword string
}

// ProjectUpdateNotice tells a customer a project moved forward
type ProjectUpdateNotice struct {
	To           string
	Name         string
	ProjectTitle string
	Status       string
	Note         string
}

// NewDocumentNotice tells a customer a document is ready in the portal
type NewDocumentNotice struct {
	To           string
	Name         string
	DocumentType string
	DocumentName string
	Number       string
}

// NotificationSink sends customer-facing email and SMS
type NotificationSink interface {
	SendCustomEmail(ctx context.Context, msg EmailMessage) NotificationResult
	SendSMS(ctx context.Context, msg SmsMessage) NotificationResult
	SendCustomerPortalWelcome(ctx context.Context, n PortalWelcome) NotificationResult
	SendCustomerPortalCredentials(ctx context.Context, n PortalWelcome) NotificationResult
	SendProjectUpdate(ctx context.Context, n ProjectUpdateNotice) NotificationResult
	SendNewDocumentNotification(ctx context.Context, n NewDocumentNotice) NotificationResult
}

// StaffMessenger alerts internal staff, e.g. about new follow-up tasks
type StaffMessenger interface {
	NotifyStaff(ctx context.Context, title, body string) error
}

// DocumentStorage keeps files uploaded for a project. Save returns the
// slash-separated path of the stored file relative to the storage root.
type DocumentStorage interface {
	Save(ctx context.Context, projectID int64, filename string, content io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}
