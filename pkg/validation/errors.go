package validation

import (
	"sort"
	"strings"
)

// FieldError is a single rule failure on a single field.
type FieldError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

func (e *FieldError) Error() string { return e.Message }

// Error aggregates every rule failure found during a full clean, keyed by field.
type Error struct {
	fields map[string][]*FieldError
}

func NewError() *Error {
	return &Error{fields: map[string][]*FieldError{}}
}

// Add records err against field. Non FieldError values are wrapped with code "invalid".
func (e *Error) Add(field string, err error) {
	if err == nil {
		return
	}
	fe, ok := err.(*FieldError)
	if !ok {
		fe = &FieldError{Code: "invalid", Message: err.Error()}
	}
	e.fields[field] = append(e.fields[field], fe)
}

// Merge copies other's failures into e.
func (e *Error) Merge(other *Error) {
	if other == nil {
		return
	}
	for f, errs := range other.fields {
		e.fields[f] = append(e.fields[f], errs...)
	}
}

func (e *Error) Empty() bool { return len(e.fields) == 0 }

// Fields returns the failures for each field in the order the rules ran.
func (e *Error) Fields() map[string][]*FieldError {
	return e.fields
}

// HasCode reports whether field failed with the given code.
func (e *Error) HasCode(field, code string) bool {
	for _, fe := range e.fields[field] {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// HasAnyCode reports whether any field failed with code.
func (e *Error) HasAnyCode(code string) bool {
	for f := range e.fields {
		if e.HasCode(f, code) {
			return true
		}
	}
	return false
}

// Err returns e as an error, or nil when no failures were recorded.
func (e *Error) Err() error {
	if e == nil || e.Empty() {
		return nil
	}
	return e
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.fields))
	for f := range e.fields {
		names = append(names, f)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, f := range names {
		msgs := make([]string, 0, len(e.fields[f]))
		for _, fe := range e.fields[f] {
			msgs = append(msgs, fe.Message)
		}
		parts = append(parts, f+": "+strings.Join(msgs, " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
