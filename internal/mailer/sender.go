// Package mailer renders and delivers outbound email.
package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"uk.co.dudmesh.bloggr/internal/boot"
	"uk.co.dudmesh.bloggr/internal/model"
)

type Sender interface {
	Send(ctx context.Context, msg *model.Message) error
}

// SMTPSender delivers each message over a fresh SMTP connection.
type SMTPSender struct {
	host    string
	options []mail.Option
}

func NewSMTPSender(config *boot.Config) *SMTPSender {
	options := []mail.Option{mail.WithPort(config.Mail.Port)}
	switch {
	case config.Mail.UseSSL:
		options = append(options, mail.WithSSL())
	case config.Mail.UseTLS:
		options = append(options, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		options = append(options, mail.WithTLSPolicy(mail.NoTLS))
	}
	if config.Mail.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.Mail.Username),
			mail.WithPassword(config.Mail.Password),
		)
	}
	return &SMTPSender{host: config.Mail.Server, options: options}
}

func (s *SMTPSender) Send(ctx context.Context, msg *model.Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.Sender); err != nil {
		return fmt.Errorf("%w: sender %q: %v", model.ErrorDelivery, msg.Sender, err)
	}
	if err := m.To(msg.Recipients...); err != nil {
		return fmt.Errorf("%w: recipients: %v", model.ErrorDelivery, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	client, err := mail.NewClient(s.host, s.options...)
	if err != nil {
		return fmt.Errorf("%w: creating client: %v", model.ErrorDelivery, err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%w: %v", model.ErrorDelivery, err)
	}
	return nil
}
