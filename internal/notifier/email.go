package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/snadboy/homelab-scripts/internal/config"
)

type EmailNotifier struct {
	name   string
	config config.EmailChannelConfig
}

func NewEmailNotifier(name string, cfg config.EmailChannelConfig) (*EmailNotifier, error) {
	if cfg.SMTPHost == "" || cfg.SMTPPort == 0 || cfg.SMTPFrom == "" || len(cfg.SMTPTo) == 0 {
		return nil, fmt.Errorf("email notifier '%s' is missing required configuration (host, port, from, to)", name)
	}
	return &EmailNotifier{name: name, config: cfg}, nil
}

func (en *EmailNotifier) Name() string {
	return en.name
}

func (en *EmailNotifier) Send(_ context.Context, msg Message) error {
	body := buildEmail(en.config, msg)

	addr := fmt.Sprintf("%s:%d", en.config.SMTPHost, en.config.SMTPPort)
	var auth smtp.Auth
	if en.config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", en.config.SMTPUsername, en.config.SMTPPassword, en.config.SMTPHost)
	}

	if !en.config.SMTPUseTLS {
		if err := smtp.SendMail(addr, auth, extractEmail(en.config.SMTPFrom), recipients(en.config.SMTPTo), body); err != nil {
			return fmt.Errorf("failed to send email via plain SMTP: %w", err)
		}
		return nil
	}

	// STARTTLS
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server (pre-TLS): %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); !ok {
		if en.config.SMTPPort == 465 {
			return fmt.Errorf("smtp_use_tls uses STARTTLS; port 465 expects implicit TLS which is not supported")
		}
		return fmt.Errorf("SMTP server does not support STARTTLS, but smtp_use_tls was true")
	}
	if err := client.StartTLS(&tls.Config{ServerName: en.config.SMTPHost}); err != nil {
		return fmt.Errorf("failed to start TLS with SMTP server: %w", err)
	}
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.Mail(extractEmail(en.config.SMTPFrom)); err != nil {
		return fmt.Errorf("SMTP MAIL FROM failed: %w", err)
	}
	for _, rcpt := range en.config.SMTPTo {
		if err := client.Rcpt(extractEmail(rcpt)); err != nil {
			return fmt.Errorf("SMTP RCPT TO failed for %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close email data writer: %w", err)
	}
	return client.Quit()
}

func buildEmail(cfg config.EmailChannelConfig, msg Message) []byte {
	headers := []string{
		"To: " + strings.Join(cfg.SMTPTo, ","),
		"From: " + cfg.SMTPFrom,
		"Subject: " + msg.Title,
		"Content-Type: text/plain; charset=UTF-8",
	}
	if msg.Priority >= PriorityHigh {
		headers = append(headers, "X-Priority: 1")
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + msg.Body + "\r\n")
}

func recipients(to []string) []string {
	out := make([]string, 0, len(to))
	for _, t := range to {
		out = append(out, extractEmail(t))
	}
	return out
}

// extractEmail parses "Display Name <email@example.com>" and returns "email@example.com"
func extractEmail(fullEmail string) string {
	start := strings.LastIndex(fullEmail, "<")
	end := strings.LastIndex(fullEmail, ">")
	if start != -1 && end > start {
		return fullEmail[start+1 : end]
	}
	return fullEmail
}
