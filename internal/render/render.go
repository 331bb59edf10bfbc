// Package render turns a queued notification into the subject and HTML body
// of an email.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/gitjobs/notifier/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is a rendered email.
type Message struct {
	Subject string
	Body    string
}

// Renderer renders notifications with templates parsed once at startup.
// It is safe for concurrent use.
type Renderer struct {
	templates *template.Template
}

func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render decodes the notification's template data and expands the template
// for its kind. Errors wrap domain.ErrTemplateData or domain.ErrRender.
func (r *Renderer) Render(n *domain.Notification) (*Message, error) {
	payload, err := domain.DecodePayload(n.Kind, n.TemplateData)
	if err != nil {
		return nil, err
	}

	var subject, name string
	switch payload.(type) {
	case domain.EmailVerification:
		subject, name = "Verify your email address", "email_verification.html"
	case domain.TeamInvitation:
		subject, name = "You have been invited to join a team", "team_invitation.html"
	default:
		return nil, fmt.Errorf("%w: no template for %s", domain.ErrRender, n.Kind)
	}

	var body bytes.Buffer
	if err := r.templates.ExecuteTemplate(&body, name, payload); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrRender, n.Kind, err)
	}

	return &Message{Subject: subject, Body: body.String()}, nil
}
