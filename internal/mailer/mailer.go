package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/gitjobs/notifier/internal/config"
	"github.com/gitjobs/notifier/internal/domain"
)

// Sender delivers a rendered email to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers HTML emails through an SMTP relay, authenticating
// with PLAIN when a username is configured.
// Each Send opens its own connection, so one sender can be shared by all
// workers.
type SMTPSender struct {
	host        string
	fromName    string
	fromAddress string
	options     []mail.Option
}

func NewSMTPSender(cfg config.EmailConfig) (*SMTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if strings.TrimSpace(cfg.Username) != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	return &SMTPSender{
		host:        strings.TrimSpace(cfg.Host),
		fromName:    cfg.FromName,
		fromAddress: strings.TrimSpace(cfg.FromAddress),
		options:     opts,
	}, nil
}

// Send builds the message and delivers it. Every failure wraps
// domain.ErrTransport.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg, err := s.buildMessage(to, subject, body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	client, err := mail.NewClient(s.host, s.options...)
	if err != nil {
		return fmt.Errorf("%w: create client: %v", domain.ErrTransport, err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(to, subject, body string) (*mail.Msg, error) {
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("recipient address is empty")
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromAddress); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch name {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// compile-time check that SMTPSender implements Sender
var _ Sender = (*SMTPSender)(nil)
