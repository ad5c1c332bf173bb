package channels

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/ids"
)

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SMTPEmail sends HTML mail through an SMTP relay with PLAIN auth.
type SMTPEmail struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPEmail(cfg SMTPConfig) *SMTPEmail {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	return &SMTPEmail{cfg: cfg, sendMail: smtp.SendMail}
}

func (e *SMTPEmail) Send(ctx context.Context, target string, content domain.Content) (string, error) {
	if !strings.Contains(target, "@") {
		return "", fmt.Errorf("invalid email address %q", target)
	}

	id := ids.DeliveryID("email")
	msg := buildMessage(e.cfg.From, target, id, content)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	// net/smtp has no context support; give up waiting when ctx ends.
	done := make(chan error, 1)
	go func() {
		done <- e.sendMail(net.JoinHostPort(e.cfg.Host, e.cfg.Port), auth, e.cfg.From, []string{target}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("smtp send: %w", err)
		}
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func buildMessage(from, to, id string, content domain.Content) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + content.Subject + "\r\n")
	b.WriteString("Message-ID: <" + id + "@notifyq>\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString("<html><body>" + content.Body + "</body></html>")
	return []byte(b.String())
}
