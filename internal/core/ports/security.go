package ports

import (
	"context"
	"time"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	// Verify returns (false, nil) on mismatch and domain.ErrInvalidHashFormat
	// when digest cannot be parsed.
	Verify(plain, digest string) (bool, error)
}

// TokenClaims is what a verified token resolves to.
type TokenClaims struct {
	UserID    string
	Role      domain.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	Issue(userID string, role domain.Role) (token string, expiresAt time.Time, err error)
	Verify(token string) (*TokenClaims, error)
}

// LoginThrottle limits repeated failed logins per account key.
type LoginThrottle interface {
	// Allowed reports whether another attempt for key may proceed.
	Allowed(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
