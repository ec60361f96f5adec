package mailer

import (
	"context"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Message is one outgoing email. HTML is optional; Text is the fallback body.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
	Tags    []string
}

// Mailgun sends messages through one Mailgun domain.
type Mailgun struct {
	client  *mg.MailgunImpl
	Sender  string
	Timeout time.Duration
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{client: mg.NewMailgun(domain, apiKey), Sender: sender, Timeout: 10 * time.Second}
}

// Send returns the Mailgun message id.
func (m *Mailgun) Send(ctx context.Context, msg Message) (string, error) {
	out := m.client.NewMessage(m.Sender, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		out.SetHtml(msg.HTML)
	}
	if len(msg.Tags) > 0 {
		if err := out.AddTag(msg.Tags...); err != nil {
			return "", err
		}
	}
	c, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()
	_, id, err := m.client.Send(c, out)
	return id, err
}
