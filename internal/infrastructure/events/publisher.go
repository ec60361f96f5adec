// Package events carries account lifecycle events over RabbitMQ.
package events

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-accounts/internal/application"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
)

// AccountMessage is the JSON payload put on the account queue.
type AccountMessage struct {
	Event      string    `json:"event"`
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	IsStaff    bool      `json:"is_staff"`
	IsActive   bool      `json:"is_active"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewAccountMessage(ev application.AccountEvent, a *entity.Account, at time.Time) AccountMessage {
	return AccountMessage{
		Event:      string(ev),
		AccountID:  a.ID,
		Email:      a.Email,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		IsStaff:    a.IsStaff,
		IsActive:   a.IsActive,
		OccurredAt: at,
	}
}

// JSONPublisher is satisfied by helpers.RabbitPublisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

type Publisher struct {
	Out    JSONPublisher
	Logger *logrus.Logger
	Clock  func() time.Time
}

func NewPublisher(out JSONPublisher, logger *logrus.Logger) *Publisher {
	return &Publisher{Out: out, Logger: logger, Clock: func() time.Time { return time.Now().UTC() }}
}

func (p *Publisher) OnAccountEvent(ctx context.Context, ev application.AccountEvent, a *entity.Account) error {
	if p == nil || p.Out == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Out.PublishJSON(c, NewAccountMessage(ev, a, p.Clock())); err != nil {
		return err
	}
	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{"account_id": a.ID, "event": string(ev)}).Debug("account event published")
	}
	return nil
}

var _ application.AccountListener = (*Publisher)(nil)
