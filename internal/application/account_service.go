package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-accounts/internal/auth"
	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	repo "github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
	"github.com/oksasatya/go-ddd-accounts/pkg/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = fmt.Errorf("account %w", domain.ErrNotFound)
)

// PasswordHasher is the one-way hashing service used for credentials.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// ExtraFields are optional attributes for account creation. Nil flags take
// the defaults of the creating operation.
type ExtraFields struct {
	FirstName   string
	LastName    string
	IsStaff     *bool
	IsSuperuser *bool
	IsActive    *bool
}

// Bool returns a pointer to v, for ExtraFields and filters.
func Bool(v bool) *bool { return &v }

func setDefault(p **bool, v bool) {
	if *p == nil {
		*p = Bool(v)
	}
}

// AccountService is the creation and query façade for accounts. Every write
// runs the validate-then-persist save inside one repository transaction.
type AccountService struct {
	Repo      repo.AccountRepository
	Hasher    PasswordHasher
	Backends  *auth.Registry
	Logger    *logrus.Logger
	Clock     Clock
	Listeners []AccountListener
	// Throttle limits failed password logins; nil disables it.
	Throttle *auth.LoginThrottle
}

func NewAccountService(repo repo.AccountRepository, hasher PasswordHasher, backends *auth.Registry, logger *logrus.Logger) *AccountService {
	return &AccountService{
		Repo:     repo,
		Hasher:   hasher,
		Backends: backends,
		Logger:   logger,
		Clock:    SystemClock,
	}
}

// Subscribe registers a listener notified after each committed write.
func (s *AccountService) Subscribe(l AccountListener) {
	s.Listeners = append(s.Listeners, l)
}

func checkEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: the user's email must be set", domain.ErrInvalidInput)
	}
	if !validation.IsEmail(email) {
		return fmt.Errorf("%w: the user's email address is invalid", domain.ErrInvalidInput)
	}
	return nil
}

// CreateUser creates a regular account. Staff and superuser flags default to
// false unless set in extra.
func (s *AccountService) CreateUser(ctx context.Context, email, password string, extra ExtraFields) (*entity.Account, error) {
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	setDefault(&extra.IsStaff, false)
	setDefault(&extra.IsSuperuser, false)
	return s.createUser(ctx, email, password, extra)
}

// CreateSuperuser creates an account with both staff and superuser flags.
// A password is mandatory and neither flag may be forced to false.
func (s *AccountService) CreateSuperuser(ctx context.Context, email, password string, extra ExtraFields) (*entity.Account, error) {
	setDefault(&extra.IsStaff, true)
	setDefault(&extra.IsSuperuser, true)

	if password == "" {
		return nil, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if !*extra.IsStaff {
		return nil, fmt.Errorf("%w: superuser must have is_staff=true", domain.ErrInvalidInput)
	}
	if !*extra.IsSuperuser {
		return nil, fmt.Errorf("%w: superuser must have is_superuser=true", domain.ErrInvalidInput)
	}
	return s.createUser(ctx, email, password, extra)
}

func (s *AccountService) createUser(ctx context.Context, email, password string, extra ExtraFields) (*entity.Account, error) {
	if err := checkEmail(email); err != nil {
		return nil, err
	}

	now := s.Clock()
	a := &entity.Account{
		Email:       email,
		FirstName:   extra.FirstName,
		LastName:    extra.LastName,
		IsStaff:     extra.IsStaff != nil && *extra.IsStaff,
		IsSuperuser: extra.IsSuperuser != nil && *extra.IsSuperuser,
		IsActive:    extra.IsActive == nil || *extra.IsActive,
		DateJoined:  now,
	}
	if err := s.setPassword(a, password); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, a, now); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("email", a.Email).Warn("create account failed")
		}
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"account_id":   a.ID,
			"is_staff":     a.IsStaff,
			"is_superuser": a.IsSuperuser,
		}).Info("account created")
	}
	s.notify(ctx, EventCreated, a)
	return a, nil
}

// setPassword stores the hash of password on a. An empty password leaves the
// account with an unusable password.
func (s *AccountService) setPassword(a *entity.Account, password string) error {
	if password == "" {
		a.Password = entity.UnusablePasswordPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
		return nil
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	a.Password = hash
	return nil
}

// persist runs the save sequence for a in one transaction, stamped at now.
// On failure a's identity and timestamps are restored.
func (s *AccountService) persist(ctx context.Context, a *entity.Account, now time.Time) error {
	snapshot, id := a.Record, a.ID
	err := s.Repo.InTx(ctx, func(ctx context.Context, tx repo.AccountRepository) error {
		return save(ctx, now, a, emailUnique(tx, a), func(ctx context.Context, created bool) error {
			if created {
				return tx.Insert(ctx, a)
			}
			return tx.Update(ctx, a)
		})
	})
	if err != nil {
		a.Record, a.ID = snapshot, id
	}
	return err
}

func emailUnique(tx repo.AccountRepository, a *entity.Account) uniqueCheck {
	return func(ctx context.Context, errs *validation.Error) error {
		// a malformed address was already reported
		if len(errs.Fields()["email"]) > 0 || a.IsDeleted() {
			return nil
		}
		taken, err := tx.EmailExists(ctx, a.Email, a.ID)
		if err != nil {
			return err
		}
		if taken {
			return entity.DuplicateEmailError(a.Email)
		}
		return nil
	}
}

// Save persists changes to an existing account. New accounts must go through
// CreateUser or CreateSuperuser.
func (s *AccountService) Save(ctx context.Context, a *entity.Account) error {
	if a.ID == "" || a.IsNew() {
		return fmt.Errorf("%w: accounts are created through CreateUser or CreateSuperuser", domain.ErrInvalidInput)
	}
	if err := s.persist(ctx, a, s.Clock()); err != nil {
		return err
	}
	s.notify(ctx, EventUpdated, a)
	return nil
}

func (s *AccountService) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	a, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	a, err := s.Repo.GetByEmail(ctx, entity.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

// List returns accounts newest first.
func (s *AccountService) List(ctx context.Context, opts repo.ListOptions) ([]*entity.Account, error) {
	return s.Repo.List(ctx, opts)
}

// SoftDelete stamps deleted_on; the row stays in storage and its email
// becomes available again.
func (s *AccountService) SoftDelete(ctx context.Context, id string) (*entity.Account, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.Clock()
	a.SoftDelete(now)
	if err := s.persist(ctx, a, now); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.WithField("account_id", a.ID).Info("account soft-deleted")
	}
	s.notify(ctx, EventDeleted, a)
	return a, nil
}

func (s *AccountService) SetPassword(ctx context.Context, id, password string) error {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.setPassword(a, password); err != nil {
		return err
	}
	return s.Save(ctx, a)
}

func (s *AccountService) CheckPassword(a *entity.Account, password string) bool {
	if !a.HasUsablePassword() || password == "" {
		return false
	}
	return s.Hasher.Verify(a.Password, password)
}

// Authenticate validates email/password for an active account and records
// the login time. Failed attempts count against the login throttle; storage
// errors are returned as they are and do not count.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*entity.Account, error) {
	email = entity.NormalizeEmail(email)
	if wait, err := s.Throttle.Check(ctx, email); err != nil {
		return nil, fmt.Errorf("%w: retry in %s", err, wait.Round(time.Second))
	}
	a, err := s.Repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil || !a.IsActive || !s.CheckPassword(a, password) {
		if n := s.Throttle.Fail(ctx, email); n > 0 && s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{"email": email, "failures": n}).Warn("failed login")
		}
		return nil, ErrInvalidCredentials
	}
	s.Throttle.Reset(ctx, email)
	now := s.Clock()
	a.LastLogin = &now
	if err := s.persist(ctx, a, now); err != nil {
		return nil, err
	}
	return a, nil
}
