package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-ddd-accounts/config"
	"github.com/oksasatya/go-ddd-accounts/internal/application"
	"github.com/oksasatya/go-ddd-accounts/internal/container"
	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	pginfra "github.com/oksasatya/go-ddd-accounts/internal/infrastructure/postgres"
	"github.com/oksasatya/go-ddd-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-accounts/pkg/validation"
)

var basePermissions = []entity.Permission{
	{AppLabel: "accounts", Codename: "add_account", Name: "Can add account"},
	{AppLabel: "accounts", Codename: "change_account", Name: "Can change account"},
	{AppLabel: "accounts", Codename: "delete_account", Name: "Can delete account"},
	{AppLabel: "accounts", Codename: "view_account", Name: "Can view account"},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)
	validation.Init()
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	// seeding only needs the model backend
	cfg.AuthBackends = "model"

	svc, err := container.BuildAccountService()
	if err != nil {
		log.Fatalf("failed to wire account service: %v", err)
	}
	perms := container.PermissionRepository()

	email := "admin@example.com"
	password := "password123"
	admin, err := svc.CreateSuperuser(ctx, email, password, application.ExtraFields{FirstName: "Demo", LastName: "Admin"})
	switch {
	case errors.Is(err, domain.ErrConflict):
		admin, err = svc.GetByEmail(ctx, email)
		if err != nil {
			log.Fatalf("failed to load existing superuser: %v", err)
		}
		fmt.Printf("superuser already present: id=%s email=%s\n", admin.ID, admin.Email)
	case err != nil:
		log.Fatalf("failed to seed superuser: %v", err)
	default:
		fmt.Printf("seeded superuser: id=%s email=%s password=%s\n", admin.ID, admin.Email, password)
	}

	// Ensure base permissions and a read-only support group exist
	for i := range basePermissions {
		p := basePermissions[i]
		if err := perms.EnsurePermission(ctx, &p); err != nil {
			log.Fatalf("failed to upsert permission %s: %v", p.String(), err)
		}
	}
	support := &entity.Group{Name: "support"}
	if err := perms.EnsureGroup(ctx, support); err != nil {
		log.Fatalf("failed to upsert support group: %v", err)
	}
	if err := perms.GrantToGroup(ctx, support.ID, "accounts.view_account"); err != nil {
		log.Fatalf("failed to grant view_account to support: %v", err)
	}
	fmt.Printf("permissions ensured: %d, group support=%s\n", len(basePermissions), support.ID)
}
