package domain

import "errors"

var (
	// ErrInvalidInput is returned when a caller passes arguments that break an
	// operation's preconditions (missing email, missing superuser password, ...).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration is returned for ambiguous or unknown backend selection.
	ErrConfiguration = errors.New("improperly configured")

	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
)
