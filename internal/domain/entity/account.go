package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/pkg/validation"
)

const (
	EmailMaxLength = 254
	NameMaxLength  = 150

	// UnusablePasswordPrefix marks a password that can never match. Accounts
	// created without a password carry it.
	UnusablePasswordPrefix = "!"
)

var (
	emailRules = []validation.Rule{
		validation.NewRequired(),
		validation.NewMaxLength(EmailMaxLength),
		validation.NewEmail(),
	}
	nameRules = []validation.Rule{
		validation.NewMaxLength(NameMaxLength),
		validation.NewNoWhitespace(),
	}
)

// Account is an authenticatable user identified by email.
// Password holds a hash; the plaintext never reaches this struct.
type Account struct {
	Record

	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Password    string     `json:"-"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	IsActive    bool       `json:"is_active"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	DateJoined  time.Time  `json:"date_joined"`
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

func (a *Account) String() string {
	return a.FullName() + " (" + a.Email + ")"
}

func (a *Account) HasUsablePassword() bool {
	return a.Password != "" && !strings.HasPrefix(a.Password, UnusablePasswordPrefix)
}

// Clean normalises fields before validation.
func (a *Account) Clean() {
	a.Email = NormalizeEmail(a.Email)
}

func (a *Account) FullClean() error {
	a.Clean()

	errs := validation.NewError()
	validation.RunRules(errs, "email", a.Email, emailRules...)
	validation.RunRules(errs, "first_name", a.FirstName, nameRules...)
	validation.RunRules(errs, "last_name", a.LastName, nameRules...)
	return errs.Err()
}

// Clone returns a deep copy; stores hand out clones so callers cannot mutate
// persisted state without going through a save.
func (a *Account) Clone() *Account {
	c := *a
	if a.DeletedOn != nil {
		t := *a.DeletedOn
		c.DeletedOn = &t
	}
	if a.LastLogin != nil {
		t := *a.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// DuplicateEmailError is reported when another live account already owns the
// address. It matches both domain.ErrConflict and *validation.Error.
func DuplicateEmailError(email string) error {
	errs := validation.NewError()
	errs.Add("email", &validation.FieldError{
		Code:    validation.CodeUnique,
		Message: "A user with that email address already exists.",
		Params:  map[string]any{"value": email},
	})
	return fmt.Errorf("%w: %w", domain.ErrConflict, errs)
}
