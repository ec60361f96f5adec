package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
)

const (
	accountColumns = `id::text, email, password, first_name, last_name, is_staff, is_superuser, is_active,
		last_login, date_joined, created_on, updated_on, deleted_on`

	emailUniqueConstraint = "accounts_email_live_key"
)

type AccountRepository struct {
	db DBTX
	// pool is nil when the repository is bound to a transaction.
	pool TxStarter
}

func NewAccountRepository(pool TxStarter) *AccountRepository {
	return &AccountRepository{db: pool, pool: pool}
}

// InTx commits when fn succeeds and rolls back on error or panic. Nested
// calls reuse the outer transaction.
func (r *AccountRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.AccountRepository) error) (err error) {
	if r.pool == nil {
		return fn(ctx, r)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	return fn(ctx, &AccountRepository{db: tx})
}

func scanAccount(row pgx.Row) (*entity.Account, error) {
	a := &entity.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.Password, &a.FirstName, &a.LastName, &a.IsStaff, &a.IsSuperuser, &a.IsActive,
		&a.LastLogin, &a.DateJoined, &a.CreatedOn, &a.UpdatedOn, &a.DeletedOn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func collectAccounts(rows pgx.Rows) ([]*entity.Account, error) {
	defer rows.Close()
	out := []*entity.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func mapWriteError(err error, a *entity.Account) error {
	code, constraint := pgCode(err)
	if code == codeUniqueViolation && constraint == emailUniqueConstraint {
		return entity.DuplicateEmailError(a.Email)
	}
	if code == codeUniqueViolation {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

func (r *AccountRepository) Insert(ctx context.Context, a *entity.Account) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO accounts (email, password, first_name, last_name, is_staff, is_superuser, is_active,
			last_login, date_joined, created_on, updated_on, deleted_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id::text
	`, a.Email, a.Password, a.FirstName, a.LastName, a.IsStaff, a.IsSuperuser, a.IsActive,
		a.LastLogin, a.DateJoined, a.CreatedOn, a.UpdatedOn, a.DeletedOn)

	var id string
	if err := row.Scan(&id); err != nil {
		return mapWriteError(err, a)
	}
	a.ID = id
	return nil
}

// Update writes every mutable column of a live row. created_on and
// date_joined are never rewritten; a row already soft-deleted is not found,
// so a stale copy cannot bring it back.
func (r *AccountRepository) Update(ctx context.Context, a *entity.Account) error {
	if _, err := uuid.Parse(a.ID); err != nil {
		return domain.ErrNotFound
	}
	res, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET email = $1, password = $2, first_name = $3, last_name = $4, is_staff = $5, is_superuser = $6,
			is_active = $7, last_login = $8, updated_on = $9, deleted_on = $10
		WHERE id = $11 AND deleted_on IS NULL
	`, a.Email, a.Password, a.FirstName, a.LastName, a.IsStaff, a.IsSuperuser,
		a.IsActive, a.LastLogin, a.UpdatedOn, a.DeletedOn, a.ID)
	if err != nil {
		return mapWriteError(err, a)
	}
	if res.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return scanAccount(r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1 AND deleted_on IS NULL
	`, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE lower(email) = lower($1) AND deleted_on IS NULL
	`, email))
}

func (r *AccountRepository) EmailExists(ctx context.Context, email, excludeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE lower(email) = lower($1) AND deleted_on IS NULL AND id::text <> $2
		)
	`, email, excludeID).Scan(&exists)
	return exists, err
}

func (r *AccountRepository) List(ctx context.Context, opts repository.ListOptions) ([]*entity.Account, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !opts.IncludeDeleted {
		where = append(where, "deleted_on IS NULL")
	}
	if opts.IsActive != nil {
		add("is_active = $%d", *opts.IsActive)
	}
	if opts.IsStaff != nil {
		add("is_staff = $%d", *opts.IsStaff)
	}

	var b strings.Builder
	b.WriteString("SELECT " + accountColumns + " FROM accounts")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_on DESC, id DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
