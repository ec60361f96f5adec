package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoWhitespace_RejectsSurroundingWhitespace(t *testing.T) {
	r := NewNoWhitespace()
	for _, v := range []string{" a", "a ", "\tname", "name\n", " both ", " "} {
		err := r.Validate(v)
		require.Error(t, err, "value %q", v)

		var fe *FieldError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, CodeNoWhitespace, fe.Code)
		assert.Equal(t, "Leading and trailing whitespaces are not allowed.", fe.Message)
		assert.Equal(t, v, fe.Params["value"])
	}
}

func TestNoWhitespace_AcceptsTrimmed(t *testing.T) {
	r := NewNoWhitespace()
	for _, v := range []string{"", "a", "Mary Ann", "O'Neil", "inner  spaces"} {
		assert.NoError(t, r.Validate(v), "value %q", v)
	}
}

func TestNoWhitespace_Overrides(t *testing.T) {
	r := NewNoWhitespace(WithMessage("trim it"), WithCode("trim"))
	err := r.Validate(" x")
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "trim", fe.Code)
	assert.Equal(t, "trim it", fe.Message)

	// empty overrides keep the defaults
	d := NewNoWhitespace(WithMessage(""), WithCode(""))
	assert.True(t, d.Equal(NewNoWhitespace()))
}

func TestNoWhitespace_Equal(t *testing.T) {
	assert.True(t, NewNoWhitespace().Equal(NewNoWhitespace()))
	assert.False(t, NewNoWhitespace().Equal(NewNoWhitespace(WithCode("other"))))
	assert.False(t, NewNoWhitespace().Equal(NewNoWhitespace(WithMessage("other"))))
	assert.False(t, NewNoWhitespace().Equal(NewRequired()))
}

func TestDedupe(t *testing.T) {
	rules := Dedupe([]Rule{NewNoWhitespace(), NewMaxLength(3), NewNoWhitespace(), NewNoWhitespace(WithCode("x"))})
	assert.Len(t, rules, 3)
}

func TestEmail(t *testing.T) {
	r := NewEmail()
	assert.NoError(t, r.Validate("foo@bar.com"))
	assert.NoError(t, r.Validate("Foo@Bar.com"))
	assert.NoError(t, r.Validate(""))

	err := r.Validate("not-an-email")
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, CodeInvalid, fe.Code)
}

func TestMaxLength_CountsRunes(t *testing.T) {
	r := NewMaxLength(3)
	assert.NoError(t, r.Validate("äöü"))

	err := r.Validate("abcd")
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, CodeMaxLength, fe.Code)
	assert.Equal(t, 3, fe.Params["limit_value"])
	assert.Equal(t, 4, fe.Params["show_value"])
}

func TestRunRules_Aggregates(t *testing.T) {
	errs := NewError()
	RunRules(errs, "first_name", " abcd ", NewMaxLength(3), NewNoWhitespace())
	RunRules(errs, "email", "", NewRequired(), NewEmail())

	require.Error(t, errs.Err())
	assert.Len(t, errs.Fields()["first_name"], 2)
	assert.True(t, errs.HasCode("first_name", CodeMaxLength))
	assert.True(t, errs.HasCode("first_name", CodeNoWhitespace))
	assert.True(t, errs.HasCode("email", CodeBlank))
	assert.False(t, errs.HasCode("email", CodeInvalid))
	assert.Equal(t,
		"validation failed: email: This field cannot be blank.; first_name: Ensure this value has at most 3 characters. Leading and trailing whitespaces are not allowed.",
		errs.Error())
}

func TestError_EmptyIsNil(t *testing.T) {
	assert.NoError(t, NewError().Err())
	var nilErr *Error
	assert.NoError(t, nilErr.Err())
}

func TestToDetails(t *testing.T) {
	errs := NewError()
	errs.Add("email", &FieldError{Code: CodeUnique, Message: "taken"})
	errs.Add("last_name", errors.New("plain"))

	d := ToDetails(errs.Err())
	assert.Equal(t, map[string]string{"email": "taken", "last_name": "plain"}, d)
	assert.True(t, errs.HasCode("last_name", CodeInvalid))
	assert.Nil(t, ToDetails(nil))
}

type createInput struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"nowhitespace"`
	Password  string `json:"password" validate:"pwd"`
}

func TestStruct_TagsAndDetails(t *testing.T) {
	err := Struct(createInput{Email: "nope", FirstName: " x", Password: "short"})
	require.Error(t, err)

	d := ToDetails(err)
	assert.Equal(t, "must be a valid email", d["email"])
	assert.Equal(t, "must not have leading or trailing whitespace", d["first_name"])
	assert.Equal(t, "min length 8", d["password"])

	assert.NoError(t, Struct(createInput{Email: "a@b.com", FirstName: "x", Password: "longenough"}))
}

type grantInput struct {
	ID    string `json:"id" validate:"omitempty,uuid"`
	Perm  string `json:"perm" validate:"required,perm"`
	Group string `json:"group" validate:"omitempty,max=5"`
	Size  int    `json:"size" validate:"min=1,max=50"`
}

func TestStruct_CommandTags(t *testing.T) {
	err := Struct(grantInput{ID: "x", Perm: "view", Group: "support", Size: 99})
	require.Error(t, err)
	assert.True(t, HasDetails(err))

	d := ToDetails(fmt.Errorf("wrapped: %w", err))
	assert.Equal(t, "must be a valid UUID", d["id"])
	assert.Equal(t, "must be in the form app_label.codename", d["perm"])
	assert.Equal(t, "must be at most 5 characters long", d["group"])
	assert.Equal(t, "must be at most 50", d["size"])

	assert.False(t, HasDetails(errors.New("plain")))
	assert.Equal(t, map[string]string{"payload": "invalid payload"}, ToDetails(errors.New("plain")))
}
