package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-ddd-accounts/internal/application"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/pkg/mailer"
	mailtpl "github.com/oksasatya/go-ddd-accounts/pkg/mailer/templates"
)

type capturePublisher struct {
	bodies []any
	err    error
}

func (c *capturePublisher) PublishJSON(_ context.Context, body any) error {
	c.bodies = append(c.bodies, body)
	return c.err
}

type captureMail struct {
	sent []mailer.Message
	err  error
}

func (c *captureMail) Send(_ context.Context, msg mailer.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.sent = append(c.sent, msg)
	return "<id@mailgun>", nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestPublisher_PublishesAccountMessage(t *testing.T) {
	out := &capturePublisher{}
	p := NewPublisher(out, nil)
	p.Clock = func() time.Time { return fixedNow }

	a := &entity.Account{ID: "acc-1", Email: "ada@example.com", FirstName: "Ada", IsActive: true, Password: "hash"}
	require.NoError(t, p.OnAccountEvent(context.Background(), application.EventCreated, a))

	require.Len(t, out.bodies, 1)
	msg, ok := out.bodies[0].(AccountMessage)
	require.True(t, ok)
	assert.Equal(t, "account.created", msg.Event)
	assert.Equal(t, "acc-1", msg.AccountID)
	assert.Equal(t, fixedNow, msg.OccurredAt)

	out.err = errors.New("channel closed")
	assert.Error(t, p.OnAccountEvent(context.Background(), application.EventUpdated, a))
}

func encode(t *testing.T, m AccountMessage) []byte {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func TestWelcomeHandler_SendsOnCreate(t *testing.T) {
	mail := &captureMail{}
	h := &WelcomeHandler{Mail: mail, Base: mailtpl.EmailData{AppName: "Accounts"}}

	body := encode(t, AccountMessage{Event: "account.created", AccountID: "acc-1", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", OccurredAt: fixedNow})
	require.NoError(t, h.Handle(context.Background(), body))

	require.Len(t, mail.sent, 1)
	got := mail.sent[0]
	assert.Equal(t, "ada@example.com", got.To)
	assert.Equal(t, "Welcome to Accounts", got.Subject)
	assert.Contains(t, got.Text, "Hi Ada Lovelace,")
	assert.Equal(t, []string{"welcome"}, got.Tags)
}

func TestWelcomeHandler_IgnoresOtherEvents(t *testing.T) {
	mail := &captureMail{}
	h := &WelcomeHandler{Mail: mail}

	body := encode(t, AccountMessage{Event: "account.updated", Email: "ada@example.com"})
	require.NoError(t, h.Handle(context.Background(), body))
	assert.Empty(t, mail.sent)
}

func TestWelcomeHandler_Errors(t *testing.T) {
	mail := &captureMail{}
	h := &WelcomeHandler{Mail: mail}
	ctx := context.Background()

	assert.ErrorIs(t, h.Handle(ctx, []byte("{not json")), ErrUndeliverable)
	assert.ErrorIs(t, h.Handle(ctx, encode(t, AccountMessage{Event: "account.created"})), ErrUndeliverable)

	mail.err = errors.New("mailgun down")
	err := h.Handle(ctx, encode(t, AccountMessage{Event: "account.created", Email: "ada@example.com"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUndeliverable))
}
