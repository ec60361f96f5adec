package repository

import (
	"context"

	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
)

// ListOptions narrows an account listing. Results are always ordered by
// entity.DefaultOrdering.
type ListOptions struct {
	IncludeDeleted bool
	IsActive       *bool
	IsStaff        *bool
	Limit          int
	Offset         int
}

// PermFilter narrows a permission lookup.
type PermFilter struct {
	AppLabel          string
	Codename          string
	IsActive          *bool
	IncludeSuperusers bool
}

// AccountRepository defines the persistence operations for accounts.
// Lookups skip soft-deleted rows unless stated otherwise.
type AccountRepository interface {
	// InTx runs fn against a repository bound to one transaction. fn's error
	// rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx AccountRepository) error) error

	Insert(ctx context.Context, a *entity.Account) error
	Update(ctx context.Context, a *entity.Account) error
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	// EmailExists reports whether a live account other than excludeID owns email.
	EmailExists(ctx context.Context, email, excludeID string) (bool, error)
	List(ctx context.Context, opts ListOptions) ([]*entity.Account, error)
}

// PermissionRepository stores permissions, groups and their grants.
type PermissionRepository interface {
	EnsurePermission(ctx context.Context, p *entity.Permission) error
	EnsureGroup(ctx context.Context, g *entity.Group) error
	GrantToAccount(ctx context.Context, accountID, perm string) error
	GrantToGroup(ctx context.Context, groupID, perm string) error
	AddToGroup(ctx context.Context, accountID, groupID string) error
	// AccountsWithPerm returns live accounts holding the permission directly or
	// through a group, plus superusers when requested, newest first.
	AccountsWithPerm(ctx context.Context, f PermFilter) ([]*entity.Account, error)
}
