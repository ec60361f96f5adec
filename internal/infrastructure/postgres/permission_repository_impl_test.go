package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
)

func TestPermissionRepository_EnsurePermission(t *testing.T) {
	mock := newMock(t)
	repo := NewPermissionRepository(mock)
	id := uuid.NewString()

	mock.ExpectQuery(`INSERT INTO permissions`).
		WithArgs("accounts", "view_account", "Can view account").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))

	p := &entity.Permission{AppLabel: "accounts", Codename: "view_account", Name: "Can view account"}
	require.NoError(t, repo.EnsurePermission(context.Background(), p))
	assert.Equal(t, id, p.ID)
}

func TestPermissionRepository_GrantToAccount(t *testing.T) {
	mock := newMock(t)
	repo := NewPermissionRepository(mock)
	ctx := context.Background()
	accountID, permID := uuid.NewString(), uuid.NewString()

	mock.ExpectQuery(`FROM permissions`).WithArgs("accounts", "view_account").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(permID))
	mock.ExpectExec(`INSERT INTO account_permissions`).WithArgs(accountID, permID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.GrantToAccount(ctx, accountID, "accounts.view_account"))

	mock.ExpectQuery(`FROM permissions`).WithArgs("accounts", "missing").WillReturnError(pgx.ErrNoRows)
	assert.ErrorIs(t, repo.GrantToAccount(ctx, accountID, "accounts.missing"), domain.ErrNotFound)

	mock.ExpectQuery(`FROM permissions`).WithArgs("accounts", "view_account").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(permID))
	mock.ExpectExec(`INSERT INTO account_permissions`).WithArgs(accountID, permID).
		WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation})
	assert.ErrorIs(t, repo.GrantToAccount(ctx, accountID, "accounts.view_account"), domain.ErrNotFound)

	assert.ErrorIs(t, repo.GrantToAccount(ctx, accountID, "view_account"), domain.ErrInvalidInput)
}

func TestPermissionRepository_AccountsWithPerm(t *testing.T) {
	mock := newMock(t)
	repo := NewPermissionRepository(mock)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	active := true

	rows := pgxmock.NewRows(columns)
	accountRow(rows, uuid.NewString(), "holder@example.com", at)
	mock.ExpectQuery(`FROM accounts`).
		WithArgs("accounts", "view_account", pgxmock.AnyArg(), true).
		WillReturnRows(rows)

	got, err := repo.AccountsWithPerm(context.Background(), repository.PermFilter{
		AppLabel: "accounts", Codename: "view_account", IsActive: &active, IncludeSuperusers: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "holder@example.com", got[0].Email)
}
