package alerts

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Alerter notifies the operations mailbox about transitions that need a
// human: margin calls and treasury withdrawals.
type Alerter interface {
	MarginCall(assetID int64, oldValue, newValue uint64) error
	FeesWithdrawn(amount uint64, toUUID string) error
}

type emailAlerter struct {
	client      *sendgrid.Client
	senderEmail string
	senderName  string
	opsEmail    string
}

// NewEmailAlerter builds a sendgrid-backed alerter from environment config.
// With no SENDGRID_API_KEY set a no-op alerter is returned.
func NewEmailAlerter() Alerter {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	if apiKey == "" {
		log.Println("SENDGRID_API_KEY not set; alert emails disabled")
		return nopAlerter{}
	}
	return &emailAlerter{
		client:      sendgrid.NewSendClient(apiKey),
		senderEmail: os.Getenv("SENDGRID_SENDER_EMAIL"),
		senderName:  os.Getenv("SENDGRID_SENDER_NAME"),
		opsEmail:    os.Getenv("VAULT_OPS_EMAIL"),
	}
}

func (e *emailAlerter) MarginCall(assetID int64, oldValue, newValue uint64) error {
	subject := fmt.Sprintf("Margin call: asset %d defaulted", assetID)
	body := fmt.Sprintf("Asset %d was reappraised from %d to %d and fell below the collateral threshold.", assetID, oldValue, newValue)
	return e.send(subject, body)
}

func (e *emailAlerter) FeesWithdrawn(amount uint64, toUUID string) error {
	subject := "Vault fees withdrawn"
	body := fmt.Sprintf("Collected fees of %d were withdrawn to account %s.", amount, toUUID)
	return e.send(subject, body)
}

func (e *emailAlerter) send(subject, body string) error {
	from := mail.NewEmail(e.senderName, e.senderEmail)
	to := mail.NewEmail("", e.opsEmail)
	message := mail.NewSingleEmail(from, subject, to, body, "<p>"+body+"</p>")
	resp, err := e.client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return errors.New("failed to send alert email")
	}
	return nil
}

type nopAlerter struct{}

func (nopAlerter) MarginCall(int64, uint64, uint64) error { return nil }
func (nopAlerter) FeesWithdrawn(uint64, string) error     { return nil }
