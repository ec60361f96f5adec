// Package memory keeps accounts, permissions and groups in process memory.
// Transactions work on a copy of the state that replaces the original on commit.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
)

type state struct {
	accounts     map[string]*entity.Account
	perms        map[string]*entity.Permission // key: app_label.codename
	groups       map[string]*entity.Group
	accountPerms map[string]map[string]bool // account id -> perm keys
	groupPerms   map[string]map[string]bool // group id -> perm keys
	memberships  map[string]map[string]bool // account id -> group ids
}

func newState() *state {
	return &state{
		accounts:     map[string]*entity.Account{},
		perms:        map[string]*entity.Permission{},
		groups:       map[string]*entity.Group{},
		accountPerms: map[string]map[string]bool{},
		groupPerms:   map[string]map[string]bool{},
		memberships:  map[string]map[string]bool{},
	}
}

func copySet(in map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(in))
	for k, set := range in {
		c := make(map[string]bool, len(set))
		for v := range set {
			c[v] = true
		}
		out[k] = c
	}
	return out
}

func (s *state) clone() *state {
	c := newState()
	for id, a := range s.accounts {
		c.accounts[id] = a.Clone()
	}
	for k, p := range s.perms {
		cp := *p
		c.perms[k] = &cp
	}
	for id, g := range s.groups {
		cg := *g
		c.groups[id] = &cg
	}
	c.accountPerms = copySet(s.accountPerms)
	c.groupPerms = copySet(s.groupPerms)
	c.memberships = copySet(s.memberships)
	return c
}

func addTo(set map[string]map[string]bool, key, val string) {
	if set[key] == nil {
		set[key] = map[string]bool{}
	}
	set[key][val] = true
}

func (s *state) emailTaken(email, excludeID string) bool {
	for id, a := range s.accounts {
		if id != excludeID && !a.IsDeleted() && a.Email == email {
			return true
		}
	}
	return false
}

func (s *state) insert(a *entity.Account) error {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := s.accounts[id]; ok {
		return domain.ErrConflict
	}
	if !a.IsDeleted() && s.emailTaken(a.Email, id) {
		return entity.DuplicateEmailError(a.Email)
	}
	a.ID = id
	s.accounts[id] = a.Clone()
	return nil
}

func (s *state) update(a *entity.Account) error {
	cur, ok := s.accounts[a.ID]
	if !ok || cur.IsDeleted() {
		return domain.ErrNotFound
	}
	if !a.IsDeleted() && s.emailTaken(a.Email, a.ID) {
		return entity.DuplicateEmailError(a.Email)
	}
	next := a.Clone()
	next.CreatedOn = cur.CreatedOn
	s.accounts[a.ID] = next
	return nil
}

func (s *state) getByID(id string) (*entity.Account, error) {
	a, ok := s.accounts[id]
	if !ok || a.IsDeleted() {
		return nil, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *state) getByEmail(email string) (*entity.Account, error) {
	for _, a := range s.accounts {
		if !a.IsDeleted() && a.Email == email {
			return a.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

// sorted returns accounts matching keep, newest first.
func (s *state) sorted(keep func(*entity.Account) bool) []*entity.Account {
	out := make([]*entity.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.After(out[j].CreatedOn)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *state) list(opts repository.ListOptions) []*entity.Account {
	out := s.sorted(func(a *entity.Account) bool {
		if a.IsDeleted() && !opts.IncludeDeleted {
			return false
		}
		if opts.IsActive != nil && a.IsActive != *opts.IsActive {
			return false
		}
		if opts.IsStaff != nil && a.IsStaff != *opts.IsStaff {
			return false
		}
		return true
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []*entity.Account{}
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

// Store is a concurrency-safe in-memory implementation of the account and
// permission repositories.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// InTx holds the store lock for the whole of fn, so transactions serialise.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.AccountRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &txStore{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Insert(_ context.Context, a *entity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.insert(a)
}

func (s *Store) Update(_ context.Context, a *entity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.update(a)
}

func (s *Store) GetByID(_ context.Context, id string) (*entity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getByID(id)
}

func (s *Store) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getByEmail(email)
}

func (s *Store) EmailExists(_ context.Context, email, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.emailTaken(email, excludeID), nil
}

func (s *Store) List(_ context.Context, opts repository.ListOptions) ([]*entity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.list(opts), nil
}

// txStore operates on a transaction's working copy; the owning Store already
// holds the lock.
type txStore struct {
	st *state
}

func (t *txStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.AccountRepository) error) error {
	return fn(ctx, t)
}

func (t *txStore) Insert(_ context.Context, a *entity.Account) error { return t.st.insert(a) }
func (t *txStore) Update(_ context.Context, a *entity.Account) error { return t.st.update(a) }

func (t *txStore) GetByID(_ context.Context, id string) (*entity.Account, error) {
	return t.st.getByID(id)
}

func (t *txStore) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	return t.st.getByEmail(email)
}

func (t *txStore) EmailExists(_ context.Context, email, excludeID string) (bool, error) {
	return t.st.emailTaken(email, excludeID), nil
}

func (t *txStore) List(_ context.Context, opts repository.ListOptions) ([]*entity.Account, error) {
	return t.st.list(opts), nil
}

var (
	_ repository.AccountRepository    = (*Store)(nil)
	_ repository.AccountRepository    = (*txStore)(nil)
	_ repository.PermissionRepository = (*Store)(nil)
)
