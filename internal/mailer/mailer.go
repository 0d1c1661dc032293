// Package mailer renders booking confirmation and new-show mails and hands
// them to an SMTP relay.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends mails through an authenticated relay.  A new connection is made
// per message; confirmation volume is low and the relay may drop idle
// connections.
type SMTP struct {
	cfg Config
}

// NewSMTP validates cfg and returns a sender.
func NewSMTP(cfg Config) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("mailer: SMTP host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mailer: sender address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTP{cfg: cfg}, nil
}

// Send delivers one HTML message.
func (s *SMTP) Send(ctx context.Context, to, subject, html string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("mailer: from %q: %w", s.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mailer: to %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

// SendBookingConfirmation renders and sends the paid-booking mail.
func (s *SMTP) SendBookingConfirmation(ctx context.Context, c Confirmation) error {
	subject, body, err := RenderConfirmation(c)
	if err != nil {
		return err
	}
	return s.Send(ctx, c.To, subject, body)
}

// SendShowAnnouncement renders the new-show mail and sends it to one
// recipient.
func (s *SMTP) SendShowAnnouncement(ctx context.Context, to string, a ShowAnnouncement) error {
	subject, body, err := RenderShowAnnouncement(a)
	if err != nil {
		return err
	}
	return s.Send(ctx, to, subject, body)
}
