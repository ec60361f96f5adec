// Command accountctl manages accounts from the shell: creation, listing,
// permission grants and lookups, search and export.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-accounts/config"
	"github.com/oksasatya/go-ddd-accounts/internal/auth"
	"github.com/oksasatya/go-ddd-accounts/internal/container"
	pginfra "github.com/oksasatya/go-ddd-accounts/internal/infrastructure/postgres"
	"github.com/oksasatya/go-ddd-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-accounts/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)
	validation.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) == 0 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cleanup, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("startup failed")
	}
	defer cleanup()

	if args[0] == "migrate" {
		// bootstrap already applied them
		return
	}

	svc, err := container.BuildAccountService()
	if err != nil {
		logger.WithError(err).Fatal("wiring failed")
	}
	c := &cli{
		svc:      svc,
		perms:    container.PermissionRepository(),
		search:   container.SearchIndexer(),
		exporter: container.Exporter(),
		out:      os.Stdout,
	}
	if err := c.run(ctx, args); err != nil {
		cleanup()
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

// bootstrap opens the clients the configuration asks for, runs migrations
// and hands everything to the container. Optional services that fail to
// connect are logged and left out.
func bootstrap(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}

	// Initialize Postgres pool
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		return cleanup, fmt.Errorf("connect to postgres: %w", err)
	}
	closers = append(closers, pool.Close)

	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		cleanup()
		return cleanup, fmt.Errorf("migration failed: %w", err)
	}

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	jwtManager.Issuer = cfg.JWTIssuer
	container.SetJWT(jwtManager)

	// Redis backs the token backend (required) and the login throttle (optional).
	needTokens := false
	for _, name := range cfg.AuthBackendNames() {
		if name == auth.TokenBackendName {
			needTokens = true
		}
	}
	if needTokens || (cfg.RedisAddr != "" && cfg.LoginMaxAttempts > 0) {
		rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := helpers.PingRedis(ctx, rdb); err != nil {
			_ = rdb.Close()
			if needTokens {
				cleanup()
				return cleanup, fmt.Errorf("connect to redis: %w", err)
			}
			logger.WithError(err).Warn("login throttling disabled")
		} else {
			closers = append(closers, func() { _ = rdb.Close() })
			container.SetRedis(rdb)
		}
	}

	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err == nil {
			err = helpers.PingES(ctx, es)
		}
		if err == nil {
			container.SetES(es)
			err = container.SearchIndexer().EnsureIndex(ctx)
		}
		if err != nil {
			logger.WithError(err).Warn("elasticsearch disabled")
			container.SetES(nil)
		}
	}

	if cfg.RabbitMQURL != "" && cfg.RabbitMQAccountQueue != "" {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQAccountQueue)
		if err != nil {
			logger.WithError(err).Warn("account events disabled")
		} else {
			closers = append(closers, pub.Close)
			container.SetRabbitPub(pub)
		}
	}

	if cfg.GCSBucket != "" {
		gcs, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			logger.WithError(err).Warn("gcs export disabled")
		} else {
			closers = append(closers, func() { _ = gcs.Close() })
			container.SetGCS(gcs)
		}
	}

	return cleanup, nil
}
