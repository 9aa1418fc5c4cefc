package alerts

import (
	"errors"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers alerts to the line supervisor via SendGrid.
type Mailer struct {
	apiKey      string
	fromName    string
	fromAddress string
	recipient   string
}

func NewMailer(apiKey, fromName, fromAddress, recipient string) (*Mailer, error) {
	if apiKey == "" {
		return nil, errors.New("missing SendGrid API key")
	}
	if recipient == "" {
		return nil, errors.New("missing alert recipient")
	}

	return &Mailer{
		apiKey:      apiKey,
		fromName:    fromName,
		fromAddress: fromAddress,
		recipient:   recipient,
	}, nil
}

func (m *Mailer) Send(alert *Alert) error {
	from := mail.NewEmail(m.fromName, m.fromAddress)
	to := mail.NewEmail("", m.recipient)
	body := fmt.Sprintf("%s\n\nOperator: %s (%d)\nRaised at: %s",
		alert.Message, alert.OperatorName, alert.OperatorID, alert.CreatedAt.Format("2006-01-02 15:04:05"))
	email := mail.NewSingleEmail(from, alert.Subject(), to, body, body)

	client := sendgrid.NewSendClient(m.apiKey)
	response, err := client.Send(email)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	log.Printf("Alert %s emailed to %s (status: %d)", alert.ID, m.recipient, response.StatusCode)
	return nil
}
