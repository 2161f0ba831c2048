// Package redis implements the token state store: refresh-token allowlist,
// access-token blacklist, and one-time password-reset tokens.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshKeyPrefix   = "auth:refresh:"
	blacklistKeyPrefix = "auth:blacklist:"
	resetKeyPrefix     = "auth:reset:"
)

// TokenStore implements repository.TokenStore on Redis. Tokens are stored by
// SHA-256 digest so a leaked keyspace dump never yields usable credentials.
type TokenStore struct {
	client *redis.Client
}

// NewTokenStore creates a new Redis-backed token store.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

// AllowRefresh records a refresh token as usable for the user, expiring with
// the token's remaining lifetime.
func (s *TokenStore) AllowRefresh(ctx context.Context, userID, token string, ttl time.Duration) error {
	key := refreshKey(userID, token)
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis allow refresh: %w", err)
	}
	return nil
}

// ConsumeRefresh atomically checks and removes the allowlist entry via GETDEL,
// so two concurrent presentations of the same token cannot both succeed.
func (s *TokenStore) ConsumeRefresh(ctx context.Context, userID, token string) (bool, error) {
	key := refreshKey(userID, token)
	err := s.client.GetDel(ctx, key).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis consume refresh: %w", err)
	}
	return true, nil
}

// RevokeRefresh removes a single refresh token's allowlist entry. Missing
// entries are not an error; revocation is idempotent.
func (s *TokenStore) RevokeRefresh(ctx context.Context, userID, token string) error {
	key := refreshKey(userID, token)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis revoke refresh: %w", err)
	}
	return nil
}

// RevokeAllRefresh removes every refresh-token allowlist entry for the user.
func (s *TokenStore) RevokeAllRefresh(ctx context.Context, userID string) (int, error) {
	pattern := refreshKeyPrefix + userID + ":*"

	var removed int
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("redis revoke all refresh: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan refresh keys: %w", err)
	}

	return removed, nil
}

// BlacklistAccess marks an access token revoked until its natural expiry.
func (s *TokenStore) BlacklistAccess(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already expired; nothing to revoke.
		return nil
	}
	key := blacklistKeyPrefix + hashToken(token)
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis blacklist access: %w", err)
	}
	return nil
}

// IsAccessBlacklisted reports whether the access token has been revoked.
func (s *TokenStore) IsAccessBlacklisted(ctx context.Context, token string) (bool, error) {
	key := blacklistKeyPrefix + hashToken(token)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis check blacklist: %w", err)
	}
	return n > 0, nil
}

// StoreResetToken maps an opaque reset token to a user id for the ttl.
func (s *TokenStore) StoreResetToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	key := resetKeyPrefix + hashToken(token)
	if err := s.client.Set(ctx, key, userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis store reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken atomically resolves and deletes a reset token via GETDEL.
// Returns ("", nil) when the token is unknown or expired.
func (s *TokenStore) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	key := resetKeyPrefix + hashToken(token)
	userID, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis consume reset token: %w", err)
	}
	return userID, nil
}

func refreshKey(userID, token string) string {
	return refreshKeyPrefix + userID + ":" + hashToken(token)
}

// hashToken returns the SHA-256 hex digest of the given token string.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
