package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	blacklistPrefix = "blacklist:"
	blacklistValue  = "revoked"
)

// BlacklistRepository stores revoked token fingerprints in Redis until the token would expire anyway.
type BlacklistRepository struct {
	client redis.Cmdable
}

// NewBlacklistRepository constructs a blacklist repository.
func NewBlacklistRepository(client redis.Cmdable) *BlacklistRepository {
	return &BlacklistRepository{client: client}
}

// Put records the fingerprint for ttl. Non-positive TTLs are skipped.
func (r *BlacklistRepository) Put(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := blacklistPrefix + fingerprint
	if err := r.client.Set(ctx, key, blacklistValue, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Exists reports whether the fingerprint is blacklisted.
func (r *BlacklistRepository) Exists(ctx context.Context, fingerprint string) (bool, error) {
	key := blacklistPrefix + fingerprint
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}
