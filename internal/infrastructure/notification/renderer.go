package notification

import (
	"fmt"
	"html"
	"strings"

	"github.com/garyjia/flooring-crm/internal/application/port"
)

// Config holds the branding used in rendered customer emails
type Config struct {
	FromName    string
	CompanyName string
	PortalURL   string
}

// Renderer turns templated notices into ready-to-send emails
type Renderer struct {
	cfg Config
}

// NewRenderer creates a new renderer
func NewRenderer(cfg Config) *Renderer {
	if cfg.CompanyName == "" {
		cfg.CompanyName = "Our Flooring Team"
	}
	if cfg.FromName == "" {
		cfg.FromName = cfg.CompanyName
	}
	return &Renderer{cfg: cfg}
}

// PortalWelcome renders the first email a new portal account receives
func (r *Renderer) PortalWelcome(n port.PortalWelcome) port.EmailMessage {
	var b strings.Builder
	r.greeting(&b, n.Name)
	b.WriteString(fmt.Sprintf("<p>Your customer portal account with %s is ready.</p>\n", esc(r.cfg.CompanyName)))
	r.credentials(&b, n)
	b.WriteString("<p>Please change your password after your first login.</p>\n")
	r.signature(&b)

	return port.EmailMessage{
		To:      n.To,
		Subject: fmt.Sprintf("Welcome to the %s customer portal", r.cfg.CompanyName),
		HTML:    b.String(),
	}
}

// PortalCredentials renders a resend of login details
func (r *Renderer) PortalCredentials(n port.PortalWelcome) port.EmailMessage {
	var b strings.Builder
	r.greeting(&b, n.Name)
	b.WriteString("<p>Here are your updated customer portal login details.</p>\n")
	r.credentials(&b, n)
	r.signature(&b)

	return port.EmailMessage{
		To:      n.To,
		Subject: fmt.Sprintf("Your %s portal login", r.cfg.CompanyName),
		HTML:    b.String(),
	}
}

// ProjectUpdate renders a project progress notice
func (r *Renderer) ProjectUpdate(n port.ProjectUpdateNotice) port.EmailMessage {
	var b strings.Builder
	r.greeting(&b, n.Name)
	b.WriteString(fmt.Sprintf("<p>Your project <strong>%s</strong> has a new update.</p>\n", esc(n.ProjectTitle)))
	if n.Status != "" {
		b.WriteString(fmt.Sprintf("<p>Status: %s</p>\n", esc(humanize(n.Status))))
	}
	if n.Note != "" {
		b.WriteString(fmt.Sprintf("<p>%s</p>\n", esc(n.Note)))
	}
	r.portalLink(&b)
	r.signature(&b)

	return port.EmailMessage{
		To:      n.To,
		Subject: fmt.Sprintf("Update on your project: %s", n.ProjectTitle),
		HTML:    b.String(),
	}
}

// NewDocument renders a notice that a document is waiting in the portal
func (r *Renderer) NewDocument(n port.NewDocumentNotice) port.EmailMessage {
	label := humanize(n.DocumentType)
	if n.Number != "" {
		label = fmt.Sprintf("%s %s", label, n.Number)
	}

	var b strings.Builder
	r.greeting(&b, n.Name)
	b.WriteString(fmt.Sprintf("<p>A new %s is ready for you: <strong>%s</strong>.</p>\n", esc(label), esc(n.DocumentName)))
	r.portalLink(&b)
	r.signature(&b)

	return port.EmailMessage{
		To:      n.To,
		Subject: fmt.Sprintf("New %s from %s", label, r.cfg.CompanyName),
		HTML:    b.String(),
	}
}

func (r *Renderer) greeting(b *strings.Builder, name string) {
	if name == "" {
		name = "there"
	}
	b.WriteString(fmt.Sprintf("<p>Hi %s,</p>\n", esc(name)))
}

func (r *Renderer) credentials(b *strings.Builder, n port.PortalWelcome) {
	b.WriteString("<ul>\n")
	b.WriteString(fmt.Sprintf("<li>Username: %s</li>\n", esc(n.Username)))
	if n.TempPassword != "" {
		b.WriteString(fmt.Sprintf("<li>Temporary password: %s</li>\n", esc(n.TempPassword)))
	}
	b.WriteString("</ul>\n")
	r.portalLink(b)
}

func (r *Renderer) portalLink(b *strings.Builder) {
	if r.cfg.PortalURL == "" {
		return
	}
	u := esc(r.cfg.PortalURL)
	b.WriteString(fmt.Sprintf("<p><a href=\"%s\">%s</a></p>\n", u, u))
}

func (r *Renderer) signature(b *strings.Builder) {
	b.WriteString(fmt.Sprintf("<p>Thanks,<br>%s</p>\n", esc(r.cfg.FromName)))
}

func esc(s string) string {
	return html.EscapeString(s)
}

// humanize turns "in_progress" into "in progress"
func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}
