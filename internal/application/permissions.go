package application

import (
	"context"

	"github.com/oksasatya/go-ddd-accounts/internal/auth"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
)

type permQuery struct {
	backend string
	query   auth.PermQuery
}

// PermOption adjusts a WithPerm lookup.
type PermOption func(*permQuery)

// ActiveOnly filters on the active flag (the default filters on true).
func ActiveOnly(v bool) PermOption {
	return func(q *permQuery) { q.query.IsActive = Bool(v) }
}

// AnyActiveState disables the active filter.
func AnyActiveState() PermOption {
	return func(q *permQuery) { q.query.IsActive = nil }
}

func IncludeSuperusers(v bool) PermOption {
	return func(q *permQuery) { q.query.IncludeSuperusers = v }
}

// UsingBackend selects a backend by name instead of relying on there being
// exactly one configured.
func UsingBackend(name string) PermOption {
	return func(q *permQuery) { q.backend = name }
}

func ForObject(obj any) PermOption {
	return func(q *permQuery) { q.query.Obj = obj }
}

// WithPerm returns the accounts holding perm according to the selected
// backend. A backend that cannot answer permission queries yields an empty
// result rather than an error.
func (s *AccountService) WithPerm(ctx context.Context, perm string, opts ...PermOption) ([]*entity.Account, error) {
	q := permQuery{query: auth.PermQuery{IsActive: Bool(true), IncludeSuperusers: true}}
	for _, o := range opts {
		o(&q)
	}

	backend, err := s.Backends.Resolve(q.backend)
	if err != nil {
		return nil, err
	}
	querier, ok := backend.(auth.PermissionQuerier)
	if !ok {
		if s.Logger != nil {
			s.Logger.WithField("backend", backend.Name()).Debug("backend does not support permission queries")
		}
		return []*entity.Account{}, nil
	}
	return querier.WithPerm(ctx, perm, q.query)
}
