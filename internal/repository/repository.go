// Package repository defines the persistence interfaces consumed by the
// session service. Implementations live in the postgres and redis
// subpackages; tests substitute in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/domain"
)

// UserRepository is the credential store: user identity, password hash, and
// account status.
type UserRepository interface {
	// Create inserts the user row and exactly one role-specific profile row
	// in a single transaction. Both succeed or neither does.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email. The lookup is case-insensitive.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdatePassword replaces the user's stored password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// TokenStore is the volatile token state store: refresh-token allowlist,
// access-token blacklist, and one-time password-reset tokens, all TTL-bound.
type TokenStore interface {
	// AllowRefresh records a refresh token as usable for the user.
	AllowRefresh(ctx context.Context, userID, token string, ttl time.Duration) error

	// ConsumeRefresh atomically checks allowlist membership and removes the
	// entry. It reports whether the entry existed; of two concurrent calls
	// with the same token exactly one observes true.
	ConsumeRefresh(ctx context.Context, userID, token string) (bool, error)

	// RevokeRefresh removes a single refresh token's allowlist entry.
	RevokeRefresh(ctx context.Context, userID, token string) error

	// RevokeAllRefresh removes every refresh-token allowlist entry for the
	// user, returning the number of entries removed.
	RevokeAllRefresh(ctx context.Context, userID string) (int, error)

	// BlacklistAccess marks an access token revoked for the given ttl.
	BlacklistAccess(ctx context.Context, token string, ttl time.Duration) error

	// IsAccessBlacklisted reports whether the access token has been revoked.
	IsAccessBlacklisted(ctx context.Context, token string) (bool, error)

	// StoreResetToken maps an opaque reset token to a user id for the ttl.
	StoreResetToken(ctx context.Context, token, userID string, ttl time.Duration) error

	// ConsumeResetToken atomically resolves and deletes a reset token,
	// returning the mapped user id. A second call with the same token
	// reports not found.
	ConsumeResetToken(ctx context.Context, token string) (string, error)
}
