package entity

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/pkg/validation"
)

func TestAccount_FullCleanNormalizesEmail(t *testing.T) {
	a := &Account{Email: "  Foo@Bar.COM "}
	require.NoError(t, a.FullClean())
	assert.Equal(t, "foo@bar.com", a.Email)
}

func TestAccount_FullCleanAggregates(t *testing.T) {
	a := &Account{
		Email:     "broken",
		FirstName: " Ann",
		LastName:  strings.Repeat("x", NameMaxLength+1) + " ",
	}
	err := a.FullClean()
	require.Error(t, err)

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.HasCode("email", validation.CodeInvalid))
	assert.True(t, verr.HasCode("first_name", validation.CodeNoWhitespace))
	assert.True(t, verr.HasCode("last_name", validation.CodeMaxLength))
	assert.True(t, verr.HasCode("last_name", validation.CodeNoWhitespace))
}

func TestAccount_EmptyEmailIsBlank(t *testing.T) {
	a := &Account{}
	var verr *validation.Error
	require.True(t, errors.As(a.FullClean(), &verr))
	assert.True(t, verr.HasCode("email", validation.CodeBlank))
	assert.Len(t, verr.Fields(), 1)
}

func TestAccount_FullNameAndString(t *testing.T) {
	a := &Account{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", a.FullName())
	assert.Equal(t, "Ada Lovelace (ada@example.com)", a.String())

	blank := &Account{Email: "x@y.com"}
	assert.Equal(t, " ", blank.FullName())
}

func TestAccount_HasUsablePassword(t *testing.T) {
	assert.False(t, (&Account{}).HasUsablePassword())
	assert.False(t, (&Account{Password: UnusablePasswordPrefix + "abc"}).HasUsablePassword())
	assert.True(t, (&Account{Password: "$2a$10$hash"}).HasUsablePassword())
}

func TestAccount_CloneIsDeep(t *testing.T) {
	now := time.Now()
	a := &Account{Email: "a@b.com", LastLogin: &now}
	a.SoftDelete(now)

	c := a.Clone()
	c.Email = "other@b.com"
	*c.DeletedOn = now.Add(time.Hour)
	*c.LastLogin = now.Add(time.Hour)

	assert.Equal(t, "a@b.com", a.Email)
	assert.Equal(t, now, *a.DeletedOn)
	assert.Equal(t, now, *a.LastLogin)
}

func TestRecord_Touch(t *testing.T) {
	var r Record
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.Touch(t0)
	assert.Equal(t, t0, r.CreatedOn)
	assert.Equal(t, t0, r.UpdatedOn)

	t1 := t0.Add(time.Minute)
	r.Touch(t1)
	assert.Equal(t, t0, r.CreatedOn)
	assert.Equal(t, t1, r.UpdatedOn)
}

func TestRecord_SoftDeleteKeepsFirstStamp(t *testing.T) {
	var r Record
	assert.False(t, r.IsDeleted())

	t0 := time.Now()
	r.SoftDelete(t0)
	r.SoftDelete(t0.Add(time.Hour))
	require.True(t, r.IsDeleted())
	assert.Equal(t, t0, *r.DeletedOn)

	r.Restore()
	assert.False(t, r.IsDeleted())
}

func TestParsePerm(t *testing.T) {
	app, code, err := ParsePerm("accounts.view_account")
	require.NoError(t, err)
	assert.Equal(t, "accounts", app)
	assert.Equal(t, "view_account", code)

	for _, bad := range []string{"", "noDot", "a.b.c", ".x", "x."} {
		_, _, err := ParsePerm(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, bad)
	}
}

func TestDuplicateEmailError(t *testing.T) {
	err := DuplicateEmailError("x@y.com")
	assert.ErrorIs(t, err, domain.ErrConflict)

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.HasCode("email", validation.CodeUnique))
}
