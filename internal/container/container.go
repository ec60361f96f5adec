package container

import (
	"fmt"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-accounts/config"
	"github.com/oksasatya/go-ddd-accounts/internal/application"
	"github.com/oksasatya/go-ddd-accounts/internal/auth"
	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
	"github.com/oksasatya/go-ddd-accounts/internal/infrastructure/events"
	"github.com/oksasatya/go-ddd-accounts/internal/infrastructure/export"
	"github.com/oksasatya/go-ddd-accounts/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/go-ddd-accounts/internal/infrastructure/postgres"
	"github.com/oksasatya/go-ddd-accounts/internal/infrastructure/search"
	"github.com/oksasatya/go-ddd-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-accounts/pkg/mailer"
	mailtpl "github.com/oksasatya/go-ddd-accounts/pkg/mailer/templates"
)

// app-level container to share constructed components across commands.
// Commands set the singletons they managed to open; Build* wires the rest.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	gcsClient   *storage.Client

	jwtManager *helpers.JWTManager

	mailgunClient *mailer.Mailgun
	rabbitPub     *helpers.RabbitPublisher
	esClient      *elasticsearch.Client

	memOnce  sync.Once
	memStore *memory.Store
)

func SetConfig(c *config.Config)   { cfg = c }
func SetLogger(l *logrus.Logger)   { logger = l }
func SetPGPool(p *pgxpool.Pool)    { pgPool = p }
func SetRedis(r *redis.Client)     { redisClient = r }
func SetGCS(s *storage.Client)     { gcsClient = s }
func SetJWT(m *helpers.JWTManager) { jwtManager = m }

func SetMailgun(m *mailer.Mailgun)            { mailgunClient = m }
func SetRabbitPub(p *helpers.RabbitPublisher) { rabbitPub = p }
func SetES(c *elasticsearch.Client)           { esClient = c }

// Reset clears every singleton.
func Reset() {
	cfg, logger, pgPool, redisClient, gcsClient = nil, nil, nil, nil, nil
	jwtManager, mailgunClient, rabbitPub, esClient = nil, nil, nil, nil
	memOnce, memStore = sync.Once{}, nil
}

// Repositories returns the postgres repositories when a pool is set and a
// process-wide in-memory store otherwise.
func Repositories() (repository.AccountRepository, repository.PermissionRepository) {
	if pgPool != nil {
		return pginfra.NewAccountRepository(pgPool), pginfra.NewPermissionRepository(pgPool)
	}
	memOnce.Do(func() { memStore = memory.NewStore() })
	return memStore, memStore
}

// BackendRegistry builds the registry for the configured backend names, in
// order.
func BackendRegistry(names []string, accounts repository.AccountRepository, perms repository.PermissionRepository) (*auth.Registry, error) {
	reg, err := auth.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		var b auth.Backend
		switch name {
		case auth.ModelBackendName:
			b = auth.NewModelBackend(perms)
		case auth.TokenBackendName:
			if redisClient == nil || jwtManager == nil {
				return nil, fmt.Errorf("%w: the %q backend needs redis and JWT settings", domain.ErrConfiguration, name)
			}
			b = auth.NewTokenBackend(jwtManager, redisClient, accounts, logger)
		default:
			return nil, fmt.Errorf("%w: unknown authentication backend %q", domain.ErrConfiguration, name)
		}
		if err := reg.Register(b); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// BuildAccountService wires the account service with its repositories,
// hasher, backends and the listeners whose clients are set.
func BuildAccountService() (*application.AccountService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config not set", domain.ErrConfiguration)
	}
	accounts, perms := Repositories()
	reg, err := BackendRegistry(cfg.AuthBackendNames(), accounts, perms)
	if err != nil {
		return nil, err
	}
	svc := application.NewAccountService(accounts, helpers.NewBcryptHasher(cfg.BcryptCost), reg, logger)
	if redisClient != nil {
		svc.Throttle = auth.NewLoginThrottle(redisClient, cfg.LoginMaxAttempts, cfg.LoginWindow)
	}
	if esClient != nil {
		svc.Subscribe(SearchIndexer())
	}
	if rabbitPub != nil {
		svc.Subscribe(events.NewPublisher(rabbitPub, logger))
	}
	return svc, nil
}

func SearchIndexer() *search.Indexer {
	index := ""
	if cfg != nil {
		index = cfg.ESAccountsIndex
	}
	return search.NewIndexer(esClient, index, logger)
}

func Exporter() *export.GCSExporter {
	bucket := ""
	if cfg != nil {
		bucket = cfg.GCSBucket
	}
	return export.NewGCSExporter(gcsClient, bucket)
}

// WelcomeHandler builds the account-created mail handler on the Mailgun
// client, with the branding taken from the config.
func WelcomeHandler() (*events.WelcomeHandler, error) {
	if cfg == nil || mailgunClient == nil {
		return nil, fmt.Errorf("%w: welcome mail needs config and a mailgun client", domain.ErrConfiguration)
	}
	return &events.WelcomeHandler{
		Mail:   mailgunClient,
		Base:   mailtpl.NewWelcomeData(cfg, "", ""),
		Logger: logger,
	}, nil
}

// PermissionRepository returns the permission side of Repositories.
func PermissionRepository() repository.PermissionRepository {
	_, perms := Repositories()
	return perms
}
