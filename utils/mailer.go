package utils

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"leadflow/config"
)

// SMTPMailer sends sequence emails through the configured SMTP relay.
// It implements the engine's Mailer interface.
type SMTPMailer struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		host:      cfg.Host,
		port:      cfg.Port,
		username:  cfg.Username,
		password:  cfg.Password,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// Send delivers a single HTML email and returns the Message-ID it was
// sent with. The dial-and-send runs in its own goroutine so the caller's
// context deadline bounds the whole SMTP exchange; a timed-out send is
// reported as an error and treated upstream as a provider failure.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), m.host)

	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetBody("text/html", htmlBody)

	dialer := gomail.NewDialer(m.host, m.port, m.username, m.password)
	dialer.TLSConfig = &tls.Config{ServerName: m.host}

	errCh := make(chan error, 1)
	go func() {
		errCh <- dialer.DialAndSend(msg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("smtp send to %s: %w", to, err)
		}
		return messageID, nil
	case <-ctx.Done():
		return "", fmt.Errorf("smtp send to %s: %w", to, ctx.Err())
	}
}
