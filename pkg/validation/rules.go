package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	CodeNoWhitespace = "no_whitespace"
	CodeInvalid      = "invalid"
	CodeMaxLength    = "max_length"
	CodeBlank        = "blank"
	CodeUnique       = "unique"
)

// Rule is a single-purpose check applied to a string field value.
// Validate returns a *FieldError on failure and nil otherwise.
type Rule interface {
	Validate(value string) error
}

// Option overrides the message or code a rule reports.
type Option func(*ruleConfig)

type ruleConfig struct {
	Message string
	Code    string
}

func WithMessage(msg string) Option { return func(s *ruleConfig) { s.Message = msg } }
func WithCode(code string) Option   { return func(s *ruleConfig) { s.Code = code } }

func build(defMsg, defCode string, opts []Option) ruleConfig {
	s := ruleConfig{}
	for _, o := range opts {
		o(&s)
	}
	if s.Message == "" {
		s.Message = defMsg
	}
	if s.Code == "" {
		s.Code = defCode
	}
	return s
}

func (s ruleConfig) fail(value string) error {
	return &FieldError{Code: s.Code, Message: s.Message, Params: map[string]any{"value": value}}
}

// NoWhitespace rejects values with leading or trailing whitespace.
type NoWhitespace struct {
	ruleConfig
}

func NewNoWhitespace(opts ...Option) NoWhitespace {
	return NoWhitespace{ruleConfig: build("Leading and trailing whitespaces are not allowed.", CodeNoWhitespace, opts)}
}

func (r NoWhitespace) Validate(value string) error {
	if value != strings.TrimSpace(value) {
		return r.fail(value)
	}
	return nil
}

// Equal reports whether other is a NoWhitespace rule with the same message and code,
// so duplicate rule declarations on a field can be collapsed.
func (r NoWhitespace) Equal(other Rule) bool {
	o, ok := other.(NoWhitespace)
	return ok && o.Message == r.Message && o.Code == r.Code
}

// Email checks address syntax with the validator engine's email tag. Empty values pass;
// pair it with Required when the field is mandatory.
type Email struct {
	ruleConfig
}

func NewEmail(opts ...Option) Email {
	return Email{ruleConfig: build("Enter a valid email address.", CodeInvalid, opts)}
}

func (r Email) Validate(value string) error {
	if value == "" {
		return nil
	}
	if !IsEmail(value) {
		return r.fail(value)
	}
	return nil
}

// MaxLength limits the number of characters (not bytes).
type MaxLength struct {
	ruleConfig
	Limit int
}

func NewMaxLength(limit int, opts ...Option) MaxLength {
	msg := fmt.Sprintf("Ensure this value has at most %d characters.", limit)
	return MaxLength{ruleConfig: build(msg, CodeMaxLength, opts), Limit: limit}
}

func (r MaxLength) Validate(value string) error {
	if n := utf8.RuneCountInString(value); n > r.Limit {
		err := r.fail(value).(*FieldError)
		err.Params["limit_value"] = r.Limit
		err.Params["show_value"] = n
		return err
	}
	return nil
}

type Required struct {
	ruleConfig
}

func NewRequired(opts ...Option) Required {
	return Required{ruleConfig: build("This field cannot be blank.", CodeBlank, opts)}
}

func (r Required) Validate(value string) error {
	if value == "" {
		return r.fail(value)
	}
	return nil
}

// Dedupe drops rules that are equal to an earlier rule in the list.
// Only rules exposing Equal participate; others are kept as is.
func Dedupe(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		eq, ok := r.(interface{ Equal(Rule) bool })
		dup := false
		if ok {
			for _, kept := range out {
				if eq.Equal(kept) {
					dup = true
					break
				}
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

// RunRules applies every rule to value in order and records each failure on errs.
// It never stops at the first failure.
func RunRules(errs *Error, field, value string, rules ...Rule) {
	for _, r := range rules {
		errs.Add(field, r.Validate(value))
	}
}
