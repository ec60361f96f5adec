package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
)

type stubBackend string

func (s stubBackend) Name() string { return string(s) }

type recordingPerms struct {
	repository.PermissionRepository
	got *repository.PermFilter
}

func (r *recordingPerms) AccountsWithPerm(_ context.Context, f repository.PermFilter) ([]*entity.Account, error) {
	r.got = &f
	return []*entity.Account{{Email: "a@b.com"}}, nil
}

func TestRegistry_Resolve(t *testing.T) {
	empty, err := NewRegistry()
	require.NoError(t, err)
	_, err = empty.Resolve("")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	single, err := NewRegistry(stubBackend("model"))
	require.NoError(t, err)
	b, err := single.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "model", b.Name())

	multi, err := NewRegistry(stubBackend("model"), stubBackend("token"))
	require.NoError(t, err)
	_, err = multi.Resolve("")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	b, err = multi.Resolve("token")
	require.NoError(t, err)
	assert.Equal(t, "token", b.Name())

	_, err = multi.Resolve("ldap")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	names := []string{}
	for _, b := range multi.Backends() {
		names = append(names, b.Name())
	}
	assert.Equal(t, []string{"model", "token"}, names)
}

func TestRegistry_DuplicateName(t *testing.T) {
	_, err := NewRegistry(stubBackend("model"), stubBackend("model"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestModelBackend_WithPerm(t *testing.T) {
	perms := &recordingPerms{}
	b := NewModelBackend(perms)
	active := true

	got, err := b.WithPerm(context.Background(), "accounts.change_account", PermQuery{IsActive: &active, IncludeSuperusers: true})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	require.NotNil(t, perms.got)
	assert.Equal(t, "accounts", perms.got.AppLabel)
	assert.Equal(t, "change_account", perms.got.Codename)
	assert.True(t, perms.got.IncludeSuperusers)
	assert.Equal(t, &active, perms.got.IsActive)
}

func TestModelBackend_ObjectPermsMatchNobody(t *testing.T) {
	perms := &recordingPerms{}
	got, err := NewModelBackend(perms).WithPerm(context.Background(), "accounts.change_account", PermQuery{Obj: "anything"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Nil(t, perms.got)
}

func TestModelBackend_MalformedPerm(t *testing.T) {
	perms := &recordingPerms{}
	_, err := NewModelBackend(perms).WithPerm(context.Background(), "change_account", PermQuery{Obj: "anything"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, perms.got)
}
