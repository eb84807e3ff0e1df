package csbot

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer delivers verification codes. It exists so tests (and any
// future transport) can swap out SMTP delivery.
type Mailer interface {
	Send(ctx context.Context, to string, displayName string, code string) error
}

// SMTPMailer sends verification emails through a plain SMTP relay.
type SMTPMailer struct {
	config *VerificationConfig
	logger *slog.Logger
}

func newSMTPMailer(config *VerificationConfig, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{
		config: config,
		logger: logger.With(loggerNameKey, "mailer"),
	}
}

func (m *SMTPMailer) body(displayName string, code string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	sb.WriteString(fmt.Sprintf("<p>Hi %s,</p>", displayName))
	sb.WriteString(
		fmt.Sprintf(
			"<p>Your verification code is: <b>%s</b></p>",
			code,
		),
	)
	sb.WriteString(
		fmt.Sprintf(
			"<p>The code expires in %s. If you didn't request it, you can "+
				"ignore this email.</p>",
			m.config.CodeTTL,
		),
	)
	if m.config.ContactEmail != "" {
		sb.WriteString(
			fmt.Sprintf(
				"<p>Questions? Contact <a href=\"mailto:%s\">%s</a>.</p>",
				m.config.ContactEmail,
				m.config.ContactEmail,
			),
		)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

// Send delivers a verification code to the given address.
func (m *SMTPMailer) Send(
	_ context.Context,
	to string,
	displayName string,
	code string,
) error {
	headers := []string{
		"From: " + m.config.FromAddress,
		"To: " + to,
		"Subject: " + m.config.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
	}
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + m.body(displayName, code)

	var auth smtp.Auth
	if m.config.SMTPUsername != "" {
		auth = smtp.PlainAuth(
			"",
			m.config.SMTPUsername,
			m.config.SMTPPassword,
			m.config.SMTPHost,
		)
	}
	addr := fmt.Sprintf("%s:%d", m.config.SMTPHost, m.config.SMTPPort)
	if err := smtp.SendMail(
		addr,
		auth,
		m.config.FromAddress,
		[]string{to},
		[]byte(msg),
	); err != nil {
		return fmt.Errorf("error sending verification email: %w", err)
	}
	m.logger.Info("sent verification email", "to", to)
	return nil
}
