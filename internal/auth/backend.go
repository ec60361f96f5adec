// Package auth holds the pluggable authentication backends and the registry
// that selects between them.
package auth

import (
	"context"
	"fmt"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
)

// Backend is an authentication strategy known to the registry by name.
type Backend interface {
	Name() string
}

// PermQuery carries the filters of a permission lookup.
type PermQuery struct {
	// IsActive filters on the active flag; nil matches both.
	IsActive          *bool
	IncludeSuperusers bool
	// Obj restricts the lookup to object-level permissions on Obj.
	Obj any
}

// PermissionQuerier is implemented by backends that can list the accounts
// holding a permission.
type PermissionQuerier interface {
	WithPerm(ctx context.Context, perm string, q PermQuery) ([]*entity.Account, error)
}

// Registry keeps the configured backends in registration order.
type Registry struct {
	order    []string
	backends map[string]Backend
}

func NewRegistry(backends ...Backend) (*Registry, error) {
	r := &Registry{backends: map[string]Backend{}}
	for _, b := range backends {
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(b Backend) error {
	name := b.Name()
	if _, ok := r.backends[name]; ok {
		return fmt.Errorf("%w: authentication backend %q registered twice", domain.ErrConfiguration, name)
	}
	r.order = append(r.order, name)
	r.backends[name] = b
	return nil
}

func (r *Registry) Backends() []Backend {
	out := make([]Backend, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.backends[n])
	}
	return out
}

// Load returns the backend registered under name.
func (r *Registry) Load(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown authentication backend %q", domain.ErrConfiguration, name)
	}
	return b, nil
}

// Resolve picks the backend for a request. An explicit name wins; otherwise
// exactly one backend must be configured.
func (r *Registry) Resolve(name string) (Backend, error) {
	if name != "" {
		return r.Load(name)
	}
	switch len(r.order) {
	case 0:
		return nil, fmt.Errorf("%w: no authentication backends configured", domain.ErrConfiguration)
	case 1:
		return r.backends[r.order[0]], nil
	default:
		return nil, fmt.Errorf("%w: you have multiple authentication backends configured and therefore must provide the backend argument", domain.ErrConfiguration)
	}
}
