package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-accounts/internal/application"
	"github.com/oksasatya/go-ddd-accounts/pkg/mailer"
	mailtpl "github.com/oksasatya/go-ddd-accounts/pkg/mailer/templates"
)

// ErrUndeliverable marks a message that will never succeed. Consumers drop it
// instead of requeueing.
var ErrUndeliverable = errors.New("undeliverable account message")

type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) (string, error)
}

// WelcomeHandler mails new accounts. Other events are acknowledged and
// ignored.
type WelcomeHandler struct {
	Mail   MailSender
	Base   mailtpl.EmailData
	Logger *logrus.Logger
}

func (h *WelcomeHandler) Handle(ctx context.Context, body []byte) error {
	var m AccountMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrUndeliverable, err)
	}
	if m.Event != string(application.EventCreated) {
		return nil
	}
	if strings.TrimSpace(m.Email) == "" {
		return fmt.Errorf("%w: missing email", ErrUndeliverable)
	}

	data := h.Base
	data.Type = mailtpl.Welcome
	data.Name = strings.TrimSpace(m.FirstName + " " + m.LastName)
	data.Email = m.Email
	mailtpl.WithJoinedAt(m.OccurredAt)(&data)
	mailtpl.WithStaff(m.IsStaff)(&data)

	subject, text, html, err := mailtpl.Render(mailtpl.Welcome, data)
	if err != nil {
		return fmt.Errorf("%w: render: %v", ErrUndeliverable, err)
	}
	id, err := h.Mail.Send(ctx, mailer.Message{To: m.Email, Subject: subject, Text: text, HTML: html, Tags: []string{mailtpl.Welcome}})
	if err != nil {
		return err
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"account_id": m.AccountID, "message_id": id}).Info("welcome email sent")
	}
	return nil
}
