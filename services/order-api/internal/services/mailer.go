package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/utils"
	"go.uber.org/zap"
)

// Attachment is an in-memory file attached to an outgoing mail.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Mail is a single outgoing message.
type Mail struct {
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, traceID string, mail Mail) error
}

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Logger   *zap.Logger
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Retry    int // attempts, at least 1
}

type SMTPMailer struct {
	logger    *zap.Logger
	addr      string
	host      string
	auth      smtp.Auth
	from      string
	implicit  bool
	attempts  int
	baseDelay time.Duration
	send      func(e *email.Email) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	m := &SMTPMailer{
		logger:    cfg.Logger,
		addr:      fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		host:      cfg.Host,
		from:      cfg.From,
		implicit:  cfg.Port == 465,
		attempts:  max(cfg.Retry, 1),
		baseDelay: 500 * time.Millisecond,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	m.send = m.deliver
	return m
}

// Send delivers mail, retrying with jittered exponential backoff until attempts run out or ctx ends.
func (m *SMTPMailer) Send(ctx context.Context, traceID string, mail Mail) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = mail.To
	e.Subject = mail.Subject
	e.HTML = []byte(mail.HTML)
	for _, a := range mail.Attachments {
		if _, err := e.Attach(bytes.NewReader(a.Content), a.Filename, a.ContentType); err != nil {
			return err
		}
	}

	var err error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		if err = m.send(e); err == nil {
			m.logger.Info("mail sent", zap.String(pkg.TraceId, traceID), zap.String("subject", mail.Subject), zap.Int("attempt", attempt))
			return nil
		}
		m.logger.Warn("mail delivery failed",
			zap.String(pkg.TraceId, traceID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == m.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("mail delivery aborted: %w", ctx.Err())
		case <-time.After(utils.CalculateExponentialBackoffWithJitter(attempt, m.baseDelay, 5*time.Second)):
		}
	}
	return fmt.Errorf("mail delivery failed after %d attempts: %w", m.attempts, err)
}

// deliver uses implicit TLS on port 465 and STARTTLS-capable plain SMTP on every other port.
func (m *SMTPMailer) deliver(e *email.Email) error {
	if m.implicit {
		return e.SendWithTLS(m.addr, m.auth, &tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12})
	}
	return e.Send(m.addr, m.auth)
}
