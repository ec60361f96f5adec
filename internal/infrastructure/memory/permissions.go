package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
)

func (s *Store) EnsurePermission(_ context.Context, p *entity.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.String()
	if cur, ok := s.st.perms[key]; ok {
		p.ID = cur.ID
		return nil
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	s.st.perms[key] = &cp
	return nil
}

func (s *Store) EnsureGroup(_ context.Context, g *entity.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range s.st.groups {
		if cur.Name == g.Name {
			g.ID = cur.ID
			return nil
		}
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	cg := *g
	s.st.groups[g.ID] = &cg
	return nil
}

func (s *Store) GrantToAccount(_ context.Context, accountID, perm string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.accounts[accountID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.st.perms[perm]; !ok {
		return domain.ErrNotFound
	}
	addTo(s.st.accountPerms, accountID, perm)
	return nil
}

func (s *Store) GrantToGroup(_ context.Context, groupID, perm string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.groups[groupID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.st.perms[perm]; !ok {
		return domain.ErrNotFound
	}
	addTo(s.st.groupPerms, groupID, perm)
	return nil
}

func (s *Store) AddToGroup(_ context.Context, accountID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.accounts[accountID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.st.groups[groupID]; !ok {
		return domain.ErrNotFound
	}
	addTo(s.st.memberships, accountID, groupID)
	return nil
}

func (s *Store) AccountsWithPerm(_ context.Context, f repository.PermFilter) ([]*entity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := f.AppLabel + "." + f.Codename
	holds := func(a *entity.Account) bool {
		if s.st.accountPerms[a.ID][key] {
			return true
		}
		for gid := range s.st.memberships[a.ID] {
			if s.st.groupPerms[gid][key] {
				return true
			}
		}
		return false
	}

	return s.st.sorted(func(a *entity.Account) bool {
		if a.IsDeleted() {
			return false
		}
		if f.IsActive != nil && a.IsActive != *f.IsActive {
			return false
		}
		if f.IncludeSuperusers && a.IsSuperuser {
			return true
		}
		return holds(a)
	}), nil
}
