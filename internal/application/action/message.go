package action

import (
	"context"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/apperr"
)

// SendEmail sends one email rendered from a stored template or from custom
// subject and body
type SendEmail struct {
	templates service.TemplateService
	sink      port.NotificationSink
	logger    Logger
}

// NewSendEmail creates the send_email handler
func NewSendEmail(templates service.TemplateService, sink port.NotificationSink, logger Logger) *SendEmail {
	return &SendEmail{templates: templates, sink: sink, logger: logger}
}

func (h *SendEmail) Kind() Kind { return KindSendEmail }

func (h *SendEmail) Describe() Descriptor {
	return Descriptor{
		Kind:        KindSendEmail,
		Label:       "Send Email",
		Description: "Send an email from a template or custom content",
		Fields: []Field{
			{Name: "recipient_email", Type: "string", Description: "Defaults to the contact email"},
			{Name: "template_id", Type: "number", Description: "Email template to render"},
			{Name: "custom_subject", Type: "string", Description: "Used when no template is given"},
			{Name: "custom_body", Type: "string", Description: "HTML body, used when no template is given"},
			{Name: "variables", Type: "object", Description: "Values for {{var}} placeholders"},
		},
	}
}

func (h *SendEmail) Execute(ctx context.Context, in Input) (*Result, error) {
	to := in.String("recipient_email", "email")
	if to == "" {
		return nil, apperr.NewActionInputError(string(KindSendEmail), "recipient_email", "recipient email is required")
	}

	var subject, body string
	if templateID, ok := in.Int64("template_id"); ok {
		tpl, err := h.templates.GetEmail(ctx, templateID)
		if err != nil {
			return nil, err
		}
		subject, body = tpl.Subject, tpl.HTMLBody
	} else {
		subject, body = in.String("custom_subject"), in.String("custom_body")
		if subject == "" || body == "" {
			return nil, apperr.NewActionInputError(string(KindSendEmail), "template_id", "either template_id or custom_subject and custom_body are required")
		}
	}

	vars := in.Vars()
	res := h.sink.SendCustomEmail(ctx, port.EmailMessage{
		To:      to,
		Subject: service.RenderTemplate(subject, vars),
		HTML:    service.RenderTemplate(body, vars),
	})
	if !res.Success {
		h.logger.Warn("Workflow email not delivered", "to", to, "error", res.Error)
	}
	return &Result{Kind: KindSendEmail, Success: res.Success, Message: res.Error, Data: res}, nil
}

// SendSMS sends one text message rendered from a stored template or from a
// custom body
type SendSMS struct {
	templates service.TemplateService
	sink      port.NotificationSink
	logger    Logger
}

// NewSendSMS creates the send_sms handler
func NewSendSMS(templates service.TemplateService, sink port.NotificationSink, logger Logger) *SendSMS {
	return &SendSMS{templates: templates, sink: sink, logger: logger}
}

func (h *SendSMS) Kind() Kind { return KindSendSMS }

func (h *SendSMS) Describe() Descriptor {
	return Descriptor{
		Kind:        KindSendSMS,
		Label:       "Send SMS",
		Description: "Send a text message from a template or custom content",
		Fields: []Field{
			{Name: "recipient_phone", Type: "string", Description: "Defaults to the contact phone"},
			{Name: "template_id", Type: "number", Description: "SMS template to render"},
			{Name: "custom_body", Type: "string", Description: "Used when no template is given"},
			{Name: "variables", Type: "object", Description: "Values for {{var}} placeholders"},
		},
	}
}

func (h *SendSMS) Execute(ctx context.Context, in Input) (*Result, error) {
	to := in.String("recipient_phone", "phone")
	if to == "" {
		return nil, apperr.NewActionInputError(string(KindSendSMS), "recipient_phone", "recipient phone is required")
	}

	var body string
	if templateID, ok := in.Int64("template_id"); ok {
		tpl, err := h.templates.GetSms(ctx, templateID)
		if err != nil {
			return nil, err
		}
		body = tpl.Body
	} else if body = in.String("custom_body", "message"); body == "" {
		return nil, apperr.NewActionInputError(string(KindSendSMS), "template_id", "either template_id or custom_body is required")
	}

	res := h.sink.SendSMS(ctx, port.SmsMessage{To: to, Body: service.RenderTemplate(body, in.Vars())})
	if !res.Success {
		h.logger.Warn("Workflow SMS not delivered", "to", to, "error", res.Error)
	}
	return &Result{Kind: KindSendSMS, Success: res.Success, Message: res.Error, Data: res}, nil
}
