package app

import (
	"strings"

	"github.com/charlesng35/teamcredits/pkg/mail"
)

// Mailer names accepted in email.provider.
const (
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSMTP     = "smtp"
	EmailProviderLog      = "log"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     strings.TrimSpace(c.From),
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// SendGridSettings converts EmailConfig to the SendGrid mailer settings.
func (c EmailConfig) SendGridSettings() mail.SendGridSettings {
	return mail.SendGridSettings{
		APIKey:   strings.TrimSpace(c.SendGrid.APIKey),
		From:     strings.TrimSpace(c.From),
		FromName: strings.TrimSpace(c.FromName),
		Host:     strings.TrimRight(strings.TrimSpace(c.SendGrid.Host), "/"),
		Timeout:  c.SendGrid.Timeout,
	}
}
