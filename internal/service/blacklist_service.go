package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type blacklistStore interface {
	Put(ctx context.Context, fingerprint string, ttl time.Duration) error
	Exists(ctx context.Context, fingerprint string) (bool, error)
}

// TokenBlacklist revokes tokens until their natural expiry.
type TokenBlacklist struct {
	store  blacklistStore
	tokens *TokenService
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenBlacklist constructs a TokenBlacklist.
func NewTokenBlacklist(store blacklistStore, tokens *TokenService, logger *zap.Logger) *TokenBlacklist {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenBlacklist{store: store, tokens: tokens, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Revoke blacklists token for the rest of its lifetime. Tokens that cannot be
// decoded or have already expired need no entry.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := b.tokens.DecodeUnsafe(token)
	if err != nil || claims.ExpiresAt == nil {
		b.logger.Debug("skip blacklisting undecodable token")
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	return b.store.Put(ctx, Fingerprint(token), ttl)
}

// IsRevoked reports whether token has been blacklisted.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	return b.store.Exists(ctx, Fingerprint(token))
}
