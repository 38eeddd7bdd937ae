package mailer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"uk.co.dudmesh.bloggr/internal/boot"
	"uk.co.dudmesh.bloggr/internal/model"
)

const (
	WelcomeSubject       = "Welcome to Bloggr!"
	PasswordResetSubject = "Bloggr: Password Reset Request"
)

var mailTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bloggr_mail_total",
	Help: "Outbound emails by kind and delivery result.",
}, []string{"kind", "result"})

type Renderer interface {
	RenderEmail(name string, data interface{}) (string, error)
}

// Notifier composes the application's emails and hands them to a Sender.
type Notifier struct {
	sender   Sender
	renderer Renderer
	config   *boot.Config
}

func NewNotifier(sender Sender, renderer Renderer, config *boot.Config) *Notifier {
	return &Notifier{sender: sender, renderer: renderer, config: config}
}

func (n *Notifier) Welcome(ctx context.Context, email, username string) error {
	return n.send(ctx, model.MessageKindWelcome, email, WelcomeSubject, "welcome.html", map[string]interface{}{
		"Username": username,
		"LoginURL": n.config.URL("/auth/login"),
	})
}

func (n *Notifier) PasswordReset(ctx context.Context, email, token string) error {
	return n.send(ctx, model.MessageKindPasswordReset, email, PasswordResetSubject, "reset_password.html", map[string]interface{}{
		"ResetURL": n.config.URL("/auth/reset_password/" + url.PathEscape(token)),
	})
}

func (n *Notifier) send(ctx context.Context, kind model.MessageKind, recipient, subject, template string, data interface{}) error {
	html, err := n.renderer.RenderEmail(template, data)
	if err != nil {
		mailTotal.WithLabelValues(string(kind), "error").Inc()
		return fmt.Errorf("rendering %s email: %w", kind, err)
	}

	msg := &model.Message{
		Kind:       kind,
		Recipients: []string{recipient},
		Subject:    subject,
		Sender:     n.config.Mail.DefaultSender,
		HTML:       html,
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		mailTotal.WithLabelValues(string(kind), "error").Inc()
		return fmt.Errorf("sending %s email to %s: %w", kind, recipient, err)
	}

	mailTotal.WithLabelValues(string(kind), "sent").Inc()
	return nil
}
