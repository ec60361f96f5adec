package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-ddd-accounts/internal/auth"
	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/internal/infrastructure/memory"
)

func emails(accounts []*entity.Account) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Email)
	}
	return out
}

// seedPerms creates: direct holder, group holder, inactive holder, superuser, bystander.
func seedPerms(t *testing.T, svc *AccountService, store *memory.Store) {
	t.Helper()
	ctx := context.Background()

	perm := &entity.Permission{AppLabel: "accounts", Codename: "view_account", Name: "Can view account"}
	require.NoError(t, store.EnsurePermission(ctx, perm))
	group := &entity.Group{Name: "support"}
	require.NoError(t, store.EnsureGroup(ctx, group))
	require.NoError(t, store.GrantToGroup(ctx, group.ID, "accounts.view_account"))

	direct, err := svc.CreateUser(ctx, "direct@example.com", "pw", ExtraFields{})
	require.NoError(t, err)
	require.NoError(t, store.GrantToAccount(ctx, direct.ID, "accounts.view_account"))

	member, err := svc.CreateUser(ctx, "member@example.com", "pw", ExtraFields{})
	require.NoError(t, err)
	require.NoError(t, store.AddToGroup(ctx, member.ID, group.ID))

	inactive, err := svc.CreateUser(ctx, "inactive@example.com", "pw", ExtraFields{IsActive: Bool(false)})
	require.NoError(t, err)
	require.NoError(t, store.GrantToAccount(ctx, inactive.ID, "accounts.view_account"))

	_, err = svc.CreateSuperuser(ctx, "root@example.com", "pw", ExtraFields{})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "bystander@example.com", "pw", ExtraFields{})
	require.NoError(t, err)
}

func TestWithPerm_ModelBackend(t *testing.T) {
	svc, store := newTestService(t)
	seedPerms(t, svc, store)
	ctx := context.Background()

	got, err := svc.WithPerm(ctx, "accounts.view_account")
	require.NoError(t, err)
	assert.Equal(t, []string{"root@example.com", "member@example.com", "direct@example.com"}, emails(got))

	got, err = svc.WithPerm(ctx, "accounts.view_account", IncludeSuperusers(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"member@example.com", "direct@example.com"}, emails(got))

	got, err = svc.WithPerm(ctx, "accounts.view_account", ActiveOnly(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"inactive@example.com"}, emails(got))

	got, err = svc.WithPerm(ctx, "accounts.view_account", AnyActiveState(), IncludeSuperusers(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"inactive@example.com", "member@example.com", "direct@example.com"}, emails(got))

	got, err = svc.WithPerm(ctx, "accounts.view_account", ForObject(&entity.Account{}))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.WithPerm(ctx, "accounts.delete_account", IncludeSuperusers(false))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWithPerm_MalformedPermission(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.WithPerm(context.Background(), "view_account")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWithPerm_AmbiguousBackend(t *testing.T) {
	store := memory.NewStore()
	svc, _ := newTestService(t, auth.NewModelBackend(store), namedBackend("token"))

	_, err := svc.WithPerm(context.Background(), "accounts.view_account")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestWithPerm_ExplicitBackend(t *testing.T) {
	svc, store := newTestService(t)
	reg, err := auth.NewRegistry(auth.NewModelBackend(store), namedBackend("token"))
	require.NoError(t, err)
	svc.Backends = reg
	seedPerms(t, svc, store)
	ctx := context.Background()

	got, err := svc.WithPerm(ctx, "accounts.view_account", UsingBackend(auth.ModelBackendName), IncludeSuperusers(false))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// a backend without permission support answers with nobody
	got, err = svc.WithPerm(ctx, "accounts.view_account", UsingBackend("token"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = svc.WithPerm(ctx, "accounts.view_account", UsingBackend("ldap"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
