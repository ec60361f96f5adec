package auth

import (
	"context"

	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
)

const ModelBackendName = "model"

// ModelBackend answers permission queries from the permission tables.
type ModelBackend struct {
	Perms repository.PermissionRepository
}

func NewModelBackend(perms repository.PermissionRepository) *ModelBackend {
	return &ModelBackend{Perms: perms}
}

func (b *ModelBackend) Name() string { return ModelBackendName }

// WithPerm lists accounts holding perm ("app_label.codename") directly or via
// a group. Object permissions are not supported, so a non-nil q.Obj matches
// nobody.
func (b *ModelBackend) WithPerm(ctx context.Context, perm string, q PermQuery) ([]*entity.Account, error) {
	appLabel, codename, err := entity.ParsePerm(perm)
	if err != nil {
		return nil, err
	}
	if q.Obj != nil {
		return []*entity.Account{}, nil
	}
	return b.Perms.AccountsWithPerm(ctx, repository.PermFilter{
		AppLabel:          appLabel,
		Codename:          codename,
		IsActive:          q.IsActive,
		IncludeSuperusers: q.IncludeSuperusers,
	})
}

var _ PermissionQuerier = (*ModelBackend)(nil)
