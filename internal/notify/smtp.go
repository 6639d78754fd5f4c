package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/netsync/apiserver/config"
	"github.com/wneessen/go-mail"
)

// SMTPSender delivers rendered messages through an SMTP relay.
type SMTPSender struct {
	renderer *Renderer
	host     string
	opts     []mail.Option
}

func NewSMTPSender(cfg config.SMTPConfig, renderer *Renderer) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("SMTP_HOST is required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	return &SMTPSender{renderer: renderer, host: cfg.Host, opts: opts}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg VerificationEmail) error {
	email, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}
	m, err := newMailMsg(email)
	if err != nil {
		return err
	}

	// One client per delivery; a go-mail client holds a single connection.
	client, err := mail.NewClient(s.host, s.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func newMailMsg(email Email) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(email.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(email.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(email.Subject)
	m.SetBodyString(mail.TypeTextPlain, email.Body)
	return m, nil
}
