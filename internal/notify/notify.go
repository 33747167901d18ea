// Package notify announces published changes. The shipped channel is SMTP
// email through gomail, multipart plain text plus HTML. Notification is
// optional; callers treat send failures as non-fatal.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/fyrsmithlabs/autopr/internal/config"
)

// Event describes one published change worth announcing.
type Event struct {
	TicketKey   string
	Summary     string
	TicketURL   string
	Branch      string
	PullRequest string
	Files       []string
	Validation  string
}

// Notifier announces events.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
}

// Mailer sends event announcements over SMTP.
type Mailer struct {
	cfg    *config.NotifyConfig
	send   func(m ...*gomail.Message) error
	logger *zap.Logger
}

var _ Notifier = (*Mailer)(nil)

// NewMailer builds a mailer from config. The config must name an SMTP host,
// a sender, and at least one recipient.
func NewMailer(cfg *config.NotifyConfig, logger *zap.Logger) (*Mailer, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.SMTPHost == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("sender and recipients are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password.Value())
	return &Mailer{
		cfg:    cfg,
		send:   dialer.DialAndSend,
		logger: logger.Named("notify"),
	}, nil
}

// Send emails the event to the configured recipients. gomail dials per
// message, so the context is only honored up front.
func (m *Mailer) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.cfg.To...)
	msg.SetHeader("Subject", subject(ev))
	msg.SetBody("text/plain", plainBody(ev))
	msg.AddAlternative("text/html", htmlBody(ev))

	if err := m.send(msg); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	m.logger.Info("notification sent",
		zap.String("ticket", ev.TicketKey),
		zap.Strings("to", m.cfg.To))
	return nil
}
