package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/movielix/auth-api/pkg/config"
)

// Sender delivers a plain-text message to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends mail over a plain SMTP transport.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPSender builds a sender from SMTP configuration.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth: auth,
		from: cfg.From,
	}
}

// Send delivers the message, honouring context cancellation. smtp.SendMail
// has no context support, so the call runs in a goroutine and the result is
// abandoned when the deadline fires.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := buildMessage(s.from, to, subject, body)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.addr, s.auth, s.from, []string{to}, msg)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("mail dispatch to %s: %w", to, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail dispatch to %s: %w", to, err)
		}
		return nil
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
