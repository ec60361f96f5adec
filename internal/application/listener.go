package application

import (
	"context"

	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
)

type AccountEvent string

const (
	EventCreated AccountEvent = "account.created"
	EventUpdated AccountEvent = "account.updated"
	EventDeleted AccountEvent = "account.deleted"
)

// AccountListener observes committed account writes. Listener failures are
// logged and never undo the write.
type AccountListener interface {
	OnAccountEvent(ctx context.Context, ev AccountEvent, a *entity.Account) error
}

// ListenerFunc adapts a function to AccountListener.
type ListenerFunc func(ctx context.Context, ev AccountEvent, a *entity.Account) error

func (f ListenerFunc) OnAccountEvent(ctx context.Context, ev AccountEvent, a *entity.Account) error {
	return f(ctx, ev, a)
}

func (s *AccountService) notify(ctx context.Context, ev AccountEvent, a *entity.Account) {
	for _, l := range s.Listeners {
		if err := l.OnAccountEvent(ctx, ev, a.Clone()); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("account_id", a.ID).WithField("event", string(ev)).Warn("account listener failed")
		}
	}
}
