package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/port"
)

// LogTransport writes messages to the log instead of delivering them.
// Used in development and as the SMS fallback for Lark.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport creates a log transport
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) SendEmail(ctx context.Context, msg port.EmailMessage) (string, error) {
	id := uuid.NewString()
	t.logger.Info("Email (log transport)",
		zap.String("message_id", id),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)))
	return id, nil
}

func (t *LogTransport) SendSMS(ctx context.Context, msg port.SmsMessage) (string, error) {
	id := uuid.NewString()
	t.logger.Info("SMS (log transport)",
		zap.String("message_id", id),
		zap.String("to", msg.To),
		zap.String("body", msg.Body))
	return id, nil
}

// LarkMailer is the part of the Lark messenger the transport needs
type LarkMailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) (string, error)
}

// LarkTransport sends email through Lark. Lark has no SMS route, so text
// messages go to smsFallback when one is set.
type LarkTransport struct {
	mailer      LarkMailer
	smsFallback Transport
}

// NewLarkTransport creates a Lark transport
func NewLarkTransport(mailer LarkMailer, smsFallback Transport) *LarkTransport {
	return &LarkTransport{
		mailer:      mailer,
		smsFallback: smsFallback,
	}
}

func (t *LarkTransport) Name() string { return "lark" }

func (t *LarkTransport) SendEmail(ctx context.Context, msg port.EmailMessage) (string, error) {
	return t.mailer.SendEmail(ctx, msg.To, msg.Subject, msg.HTML)
}

func (t *LarkTransport) SendSMS(ctx context.Context, msg port.SmsMessage) (string, error) {
	if t.smsFallback == nil {
		return "", fmt.Errorf("sms is not supported by the lark transport")
	}
	return t.smsFallback.SendSMS(ctx, msg)
}

var (
	_ Transport = (*LogTransport)(nil)
	_ Transport = (*LarkTransport)(nil)
)
