package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/flooring-crm/internal/application/port"
)

// SentNotification is one call recorded by Sink
type SentNotification struct {
	Kind    string
	To      string
	Subject string
	Body    string
	Payload interface{}
}

// Sink records every notification. Kinds listed in Fail report failure.
type Sink struct {
	mu   sync.Mutex
	Sent []SentNotification
	Fail map[string]bool
}

// NewSink creates a recording sink that accepts everything
func NewSink() *Sink {
	return &Sink{Fail: make(map[string]bool)}
}

func (s *Sink) record(n SentNotification) port.NotificationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail[n.Kind] {
		return port.NotificationResult{Success: false, Error: "delivery refused"}
	}
	s.Sent = append(s.Sent, n)
	return port.NotificationResult{Success: true, MessageID: fmt.Sprintf("msg-%d", len(s.Sent))}
}

// Of returns the recorded notifications of one kind
func (s *Sink) Of(kind string) []SentNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SentNotification
	for _, n := range s.Sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (s *Sink) SendCustomEmail(ctx context.Context, msg port.EmailMessage) port.NotificationResult {
	return s.record(SentNotification{Kind: "email", To: msg.To, Subject: msg.Subject, Body: msg.HTML, Payload: msg})
}

func (s *Sink) SendSMS(ctx context.Context, msg port.SmsMessage) port.NotificationResult {
	return s.record(SentNotification{Kind: "sms", To: msg.To, Body: msg.Body, Payload: msg})
}

func (s *Sink) SendCustomerPortalWelcome(ctx context.Context, n port.PortalWelcome) port.NotificationResult {
	return s.record(SentNotification{Kind: "welcome", To: n.To, Payload: n})
}

func (s *Sink) SendCustomerPortalCredentials(ctx context.Context, n port.PortalWelcome) port.NotificationResult {
	return s.record(SentNotification{Kind: "credentials", To: n.To, Payload: n})
}

func (s *Sink) SendProjectUpdate(ctx context.Context, n port.ProjectUpdateNotice) port.NotificationResult {
	return s.record(SentNotification{Kind: "project_update", To: n.To, Payload: n})
}

func (s *Sink) SendNewDocumentNotification(ctx context.Context, n port.NewDocumentNotice) port.NotificationResult {
	return s.record(SentNotification{Kind: "document", To: n.To, Payload: n})
}

var _ port.NotificationSink = (*Sink)(nil)

// Messenger records staff alerts
type Messenger struct {
	mu       sync.Mutex
	Messages []string
	Err      error
}

func (m *Messenger) NotifyStaff(ctx context.Context, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, title+": "+body)
	return nil
}

var _ port.StaffMessenger = (*Messenger)(nil)
