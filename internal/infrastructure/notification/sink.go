// Package notification implements the customer-facing NotificationSink on
// top of a delivery transport (Lark or the log).
package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/apperr"
)

// Channels reported to the recorder
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Transport delivers rendered messages and returns the provider message id
type Transport interface {
	Name() string
	SendEmail(ctx context.Context, msg port.EmailMessage) (string, error)
	SendSMS(ctx context.Context, msg port.SmsMessage) (string, error)
}

// Recorder counts delivery attempts
type Recorder interface {
	NotificationSent(channel string, success bool)
}

type noopRecorder struct{}

func (noopRecorder) NotificationSent(string, bool) {}

// Sink implements port.NotificationSink. It never returns an error or
// panics past its boundary; failures come back as Success=false.
type Sink struct {
	transport Transport
	renderer  *Renderer
	recorder  Recorder
	logger    *zap.Logger
}

// NewSink creates a notification sink over transport. recorder may be nil.
func NewSink(transport Transport, renderer *Renderer, recorder Recorder, logger *zap.Logger) *Sink {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Sink{
		transport: transport,
		renderer:  renderer,
		recorder:  recorder,
		logger:    logger,
	}
}

// SendCustomEmail implements port.NotificationSink
func (s *Sink) SendCustomEmail(ctx context.Context, msg port.EmailMessage) port.NotificationResult {
	return s.deliver(ChannelEmail, msg.To, func() (string, error) {
		return s.transport.SendEmail(ctx, msg)
	})
}

// SendSMS implements port.NotificationSink
func (s *Sink) SendSMS(ctx context.Context, msg port.SmsMessage) port.NotificationResult {
	return s.deliver(ChannelSMS, msg.To, func() (string, error) {
		return s.transport.SendSMS(ctx, msg)
	})
}

// SendCustomerPortalWelcome implements port.NotificationSink
func (s *Sink) SendCustomerPortalWelcome(ctx context.Context, n port.PortalWelcome) port.NotificationResult {
	return s.SendCustomEmail(ctx, s.renderer.PortalWelcome(n))
}

// SendCustomerPortalCredentials implements port.NotificationSink
func (s *Sink) SendCustomerPortalCredentials(ctx context.Context, n port.PortalWelcome) port.NotificationResult {
	return s.SendCustomEmail(ctx, s.renderer.PortalCredentials(n))
}

// SendProjectUpdate implements port.NotificationSink
func (s *Sink) SendProjectUpdate(ctx context.Context, n port.ProjectUpdateNotice) port.NotificationResult {
	return s.SendCustomEmail(ctx, s.renderer.ProjectUpdate(n))
}

// SendNewDocumentNotification implements port.NotificationSink
func (s *Sink) SendNewDocumentNotification(ctx context.Context, n port.NewDocumentNotice) port.NotificationResult {
	return s.SendCustomEmail(ctx, s.renderer.NewDocument(n))
}

func (s *Sink) deliver(channel, to string, send func() (string, error)) (res port.NotificationResult) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Notification transport panicked",
				zap.String("transport", s.transport.Name()),
				zap.String("channel", channel),
				zap.Any("panic", p))
			res = port.NotificationResult{Success: false, Error: fmt.Sprintf("transport panic: %v", p)}
		}
		s.recorder.NotificationSent(channel, res.Success)
	}()

	if to == "" {
		return port.NotificationResult{Success: false, Error: "recipient is required"}
	}

	messageID, err := send()
	if err != nil {
		derr := apperr.NewNotificationDeliveryError(channel, to, err)
		s.logger.Warn("Notification delivery failed",
			zap.String("transport", s.transport.Name()),
			zap.String("channel", channel),
			zap.String("to", to),
			zap.Error(derr))
		return port.NotificationResult{Success: false, Error: derr.Error()}
	}

	return port.NotificationResult{Success: true, MessageID: messageID}
}

// Verify interface compliance
var _ port.NotificationSink = (*Sink)(nil)
