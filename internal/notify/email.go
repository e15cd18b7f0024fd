package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"

	"taskflow/internal/models"
)

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSender struct {
	dialer Dialer
	from   string
}

func NewEmailSender(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
	}
}

func NewEmailSenderWithDialer(d Dialer, fromEmail string) *EmailSender {
	return &EmailSender{dialer: d, from: fromEmail}
}

func (s *EmailSender) Name() string { return "email" }

func (s *EmailSender) CanReach(u *models.User) bool {
	return strings.Contains(u.Email, "@")
}

func (s *EmailSender) Send(_ context.Context, u *models.User, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", u.Email)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", fmt.Sprintf(`
		<p>Hello, %s!</p>
		<p>%s</p>
	`, html.EscapeString(u.Username), strings.ReplaceAll(msg.Text, "\n", "<br>")))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", u.Email, err)
	}
	return nil
}
