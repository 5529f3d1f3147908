package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridSendPath = "/v3/mail/send"

// SendGridSettings configure the SendGrid v3 mail API client.
type SendGridSettings struct {
	APIKey   string
	From     string
	FromName string
	// Host overrides the API host, e.g. for a sandbox or test server.
	Host    string
	Timeout time.Duration
}

// ProviderError reports a non-success response from an email provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

type sendGridMailer struct {
	cfg SendGridSettings
}

// NewSendGridMailer returns a Mailer backed by the SendGrid mail send API.
func NewSendGridMailer(cfg SendGridSettings) (Mailer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid: api key is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("sendgrid: sender address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.Host = strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	return &sendGridMailer{cfg: cfg}, nil
}

func (m *sendGridMailer) Send(ctx context.Context, msg Message) error {
	from, recipients, err := prepareEnvelope("sendgrid", msg, m.cfg.From)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	client := sendgrid.NewSendClient(m.cfg.APIKey)
	if m.cfg.Host != "" {
		client.BaseURL = m.cfg.Host + sendGridSendPath
	}

	resp, err := client.SendWithContext(ctx, buildSendGridMessage(from, m.cfg.FromName, recipients, msg))
	if err != nil {
		return fmt.Errorf("sendgrid: send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Provider: "sendgrid", StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

func buildSendGridMessage(from, fromName string, recipients []string, msg Message) *sgmail.SGMailV3 {
	message := sgmail.NewV3Mail()
	message.SetFrom(sgmail.NewEmail(fromName, from))
	message.Subject = escapeHeader(msg.Subject)

	personalization := sgmail.NewPersonalization()
	for _, rcpt := range recipients {
		personalization.AddTos(sgmail.NewEmail("", rcpt))
	}
	message.AddPersonalizations(personalization)

	message.AddContent(sgmail.NewContent("text/plain", msg.Body))
	if strings.TrimSpace(msg.HTML) != "" {
		message.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return message
}
