package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"cvewatch/internal/domain"
	"cvewatch/internal/ports"
)

// SMTPMailer delivers rendered reports over SMTP. Credentials come from the
// environment; with no host or sender configured, IsConfigured reports
// false and the dispatcher skips delivery entirely.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer registers transport settings; port defaults to 587.
func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	if port == "" {
		port = "587"
	}
	return &SMTPMailer{host: host, port: port, username: username, password: password, from: from}
}

// IsConfigured reports whether a send can be attempted at all.
func (m *SMTPMailer) IsConfigured() bool {
	return m.host != "" && m.from != ""
}

// SendReport renders the summary and delivers it to all recipients as one
// batch.
func (m *SMTPMailer) SendReport(ctx context.Context, recipients []string, summary domain.DailySummary) error {
	body, err := RenderReport(summary)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Daily CVE Report %s", summary.RunDate.Format("2006-01-02"))
	return m.send(ctx, recipients, subject, body)
}

// SendTest delivers a probe message to a single address.
func (m *SMTPMailer) SendTest(ctx context.Context, recipient string) error {
	body := "<html><body><p>This is a test notification. Delivery is configured correctly.</p></body></html>"
	return m.send(ctx, []string{recipient}, "CVE Report test notification", body)
}

func (m *SMTPMailer) send(ctx context.Context, recipients []string, subject, htmlBody string) error {
	if !m.IsConfigured() {
		return fmt.Errorf("smtp mailer misconfigured")
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := net.JoinHostPort(m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.from, recipients, []byte(msg.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
