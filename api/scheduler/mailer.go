package scheduler

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// SendgridMailer sends email through SendGrid
type SendgridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendgridMailer returns a mailer sending from fromEmail
func NewSendgridMailer(apiKey, fromEmail string) *SendgridMailer {
	return &SendgridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("Pocket Infrastructure", fromEmail),
	}
}

// Send delivers one message, treating any 4xx or 5xx from SendGrid as an error
func (m *SendgridMailer) Send(ctx context.Context, to, subject, plainText, htmlContent string) error {
	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail("", to), plainText, htmlContent)
	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		zap.S().Errorw("failed to send email", "error", err, "to", to)
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", to)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	return nil
}
