package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
)

type PermissionRepository struct {
	db DBTX
}

func NewPermissionRepository(db DBTX) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// EnsurePermission upserts by (app_label, codename) and fills p.ID.
func (r *PermissionRepository) EnsurePermission(ctx context.Context, p *entity.Permission) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO permissions (app_label, codename, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (app_label, codename) DO UPDATE SET name = EXCLUDED.name
		RETURNING id::text
	`, p.AppLabel, p.Codename, p.Name).Scan(&p.ID)
}

func (r *PermissionRepository) EnsureGroup(ctx context.Context, g *entity.Group) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO groups (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id::text
	`, g.Name).Scan(&g.ID)
}

func (r *PermissionRepository) permissionID(ctx context.Context, perm string) (string, error) {
	appLabel, codename, err := entity.ParsePerm(perm)
	if err != nil {
		return "", err
	}
	var id string
	err = r.db.QueryRow(ctx, `
		SELECT id::text FROM permissions WHERE app_label = $1 AND codename = $2
	`, appLabel, codename).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	return id, err
}

func (r *PermissionRepository) grant(ctx context.Context, sql, ownerID, perm string) error {
	if _, err := uuid.Parse(ownerID); err != nil {
		return domain.ErrNotFound
	}
	permID, err := r.permissionID(ctx, perm)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, sql, ownerID, permID)
	return mapLinkError(err)
}

func (r *PermissionRepository) GrantToAccount(ctx context.Context, accountID, perm string) error {
	return r.grant(ctx, `
		INSERT INTO account_permissions (account_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, accountID, perm)
}

func (r *PermissionRepository) GrantToGroup(ctx context.Context, groupID, perm string) error {
	return r.grant(ctx, `
		INSERT INTO group_permissions (group_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, groupID, perm)
}

func (r *PermissionRepository) AddToGroup(ctx context.Context, accountID, groupID string) error {
	if _, err := uuid.Parse(accountID); err != nil {
		return domain.ErrNotFound
	}
	if _, err := uuid.Parse(groupID); err != nil {
		return domain.ErrNotFound
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO account_groups (account_id, group_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, accountID, groupID)
	return mapLinkError(err)
}

func mapLinkError(err error) error {
	if err == nil {
		return nil
	}
	if code, _ := pgCode(err); code == codeForeignKeyViolation {
		return domain.ErrNotFound
	}
	return err
}

func (r *PermissionRepository) AccountsWithPerm(ctx context.Context, f repository.PermFilter) ([]*entity.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE deleted_on IS NULL
			AND ($3::boolean IS NULL OR is_active = $3)
			AND (
				($4 AND is_superuser)
				OR EXISTS (
					SELECT 1 FROM account_permissions ap
					JOIN permissions p ON p.id = ap.permission_id
					WHERE ap.account_id = accounts.id AND p.app_label = $1 AND p.codename = $2
				)
				OR EXISTS (
					SELECT 1 FROM account_groups ag
					JOIN group_permissions gp ON gp.group_id = ag.group_id
					JOIN permissions p ON p.id = gp.permission_id
					WHERE ag.account_id = accounts.id AND p.app_label = $1 AND p.codename = $2
				)
			)
		ORDER BY created_on DESC, id DESC
	`, f.AppLabel, f.Codename, f.IsActive, f.IncludeSuperusers)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

var _ repository.PermissionRepository = (*PermissionRepository)(nil)
