// Package notify delivers outbound email. Delivery is fire-and-forget from
// the caller's point of view: the persisted in-app notification is the source
// of truth, and a failed send is logged, not returned.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"github.com/openshelf/openshelf-server/internal/config"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through a plain SMTP relay using AUTH when
// credentials are configured.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer creates a mailer for the given relay configuration.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one message. The context is checked before dialing; net/smtp
// itself does not support cancellation mid-send.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := m.cfg.Host + ":" + m.cfg.Port

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// NoopMailer drops every message. Used when no SMTP host is configured.
type NoopMailer struct{}

// Send discards the message.
func (NoopMailer) Send(context.Context, Message) error { return nil }

// MemoryMailer records messages for inspection in tests.
type MemoryMailer struct {
	mu   sync.Mutex
	sent []Message
}

// Send records the message.
func (m *MemoryMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of everything recorded so far.
func (m *MemoryMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// NewMailer returns an SMTP mailer when a host is configured, otherwise a
// no-op mailer.
func NewMailer(cfg config.SMTPConfig) Mailer {
	if cfg.Host == "" {
		return NoopMailer{}
	}
	return NewSMTPMailer(cfg)
}
