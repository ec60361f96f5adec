package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
	"github.com/oksasatya/go-ddd-accounts/pkg/helpers"
)

const TokenBackendName = "token"

var ErrInvalidToken = errors.New("invalid token")

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// TokenBackend authenticates bearer JWTs against a session hash kept in
// Redis. It cannot answer permission queries.
type TokenBackend struct {
	JWT        *helpers.JWTManager
	Redis      *redis.Client
	Accounts   repository.AccountRepository
	Logger     *logrus.Logger
	SessionTTL time.Duration
}

func NewTokenBackend(jwt *helpers.JWTManager, rdb *redis.Client, accounts repository.AccountRepository, logger *logrus.Logger) *TokenBackend {
	return &TokenBackend{JWT: jwt, Redis: rdb, Accounts: accounts, Logger: logger, SessionTTL: 24 * time.Hour}
}

func (b *TokenBackend) Name() string { return TokenBackendName }

func sessionKey(accountID string) string {
	return "account:session:" + accountID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// IssueTokens generates an access/refresh pair and records the session.
// A new session replaces the previous one for the account.
func (b *TokenBackend) IssueTokens(ctx context.Context, a *entity.Account) (TokenPair, error) {
	sid := uuid.NewString()
	pair, err := b.pair(a.ID, sid)
	if err != nil {
		if b.Logger != nil {
			b.Logger.WithError(err).WithField("account_id", a.ID).Error("generate tokens failed")
		}
		return TokenPair{}, err
	}

	key := sessionKey(a.ID)
	pipe := b.Redis.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"account_id": a.ID,
		"email":      a.Email,
		"sid":        sid,
		"created_at": nowRFC3339(),
	})
	pipe.Expire(ctx, key, b.SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (b *TokenBackend) pair(accountID, sid string) (TokenPair, error) {
	access, aexp, err := b.JWT.GenerateAccessToken(accountID, sid)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := b.JWT.GenerateRefreshToken(accountID, sid)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Authenticate resolves an access token to its live, active account.
func (b *TokenBackend) Authenticate(ctx context.Context, accessToken string) (*entity.Account, error) {
	claims, err := b.JWT.ParseAccessToken(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if err := b.checkSession(ctx, claims); err != nil {
		return nil, err
	}
	a, err := b.Accounts.GetByID(ctx, claims.AccountID)
	if err != nil || !a.IsActive {
		return nil, ErrInvalidToken
	}
	return a, nil
}

// Refresh rotates the session id and both tokens.
func (b *TokenBackend) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := b.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if err := b.checkSession(ctx, claims); err != nil {
		return TokenPair{}, err
	}

	sid := uuid.NewString()
	pair, err := b.pair(claims.AccountID, sid)
	if err != nil {
		return TokenPair{}, err
	}
	key := sessionKey(claims.AccountID)
	pipe := b.Redis.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"sid":        sid,
		"updated_at": nowRFC3339(),
	})
	pipe.Expire(ctx, key, b.SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Revoke drops the account's session; outstanding tokens stop working.
func (b *TokenBackend) Revoke(ctx context.Context, accountID string) error {
	return b.Redis.Del(ctx, sessionKey(accountID)).Err()
}

func (b *TokenBackend) checkSession(ctx context.Context, claims *helpers.Claims) error {
	data, err := b.Redis.HGetAll(ctx, sessionKey(claims.AccountID)).Result()
	if err != nil || len(data) == 0 || data["sid"] != claims.SessionID {
		return ErrInvalidToken
	}
	return nil
}
