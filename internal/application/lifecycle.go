package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/pkg/validation"
)

// Clock returns the current time. Services take one so tests can step time.
type Clock func() time.Time

// SystemClock returns UTC now truncated to the precision Postgres stores.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// uniqueCheck looks for store-level uniqueness conflicts. errs holds the
// field failures found so far so fields that already failed can be skipped.
type uniqueCheck func(ctx context.Context, errs *validation.Error) error

// persistFunc writes the model; created is true on the first save.
type persistFunc func(ctx context.Context, created bool) error

// save is the validate-then-persist sequence shared by every entity:
// full clean, uniqueness, timestamps, write. Nothing is written when any
// check fails, and all failures come back together in one *validation.Error.
func save[T entity.Model](ctx context.Context, now time.Time, m T, unique uniqueCheck, persist persistFunc) error {
	errs := validation.NewError()

	if err := m.FullClean(); err != nil {
		var verr *validation.Error
		if !errors.As(err, &verr) {
			return err
		}
		errs.Merge(verr)
	}

	if unique != nil {
		if err := unique(ctx, errs); err != nil {
			var verr *validation.Error
			if !errors.As(err, &verr) {
				return err
			}
			errs.Merge(verr)
		}
	}

	if !errs.Empty() {
		if errs.HasAnyCode(validation.CodeUnique) {
			return fmt.Errorf("%w: %w", domain.ErrConflict, errs)
		}
		return errs
	}

	meta := m.Meta()
	created := meta.IsNew()
	meta.Touch(now)
	return persist(ctx, created)
}
