// Package mail delivers plain-text email.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
)

// Message is a single plain-text email.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an authenticated SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send sendFunc
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// Send delivers msg. net/smtp has no context support, so ctx is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mail: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, msg.To, build(m.cfg.From, msg)); err != nil {
		return fmt.Errorf("mail: send to %s: %w", strings.Join(msg.To, ","), err)
	}
	return nil
}

func build(from string, msg Message) []byte {
	headers := []string{
		"From: " + from,
		"To: " + strings.Join(msg.To, ", "),
		"Subject: " + sanitizeHeader(msg.Subject),
	}
	if msg.ReplyTo != "" {
		headers = append(headers, "Reply-To: "+sanitizeHeader(msg.ReplyTo))
	}
	headers = append(headers,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		msg.Body,
	)
	return []byte(strings.Join(headers, "\r\n"))
}

// sanitizeHeader strips line breaks so user input cannot inject headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// Recorder keeps sent messages in memory. Setting Err makes every Send fail.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Last returns the most recent message, if any.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}
