package security

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

const (
	// DefaultTokenTTL is the validity window of an access token.
	DefaultTokenTTL = 24 * time.Hour

	tokenTypeAccess = "access"
)

// SigningKey holds the HMAC secret behind an atomic pointer so it can be
// rotated while requests are being served.
type SigningKey struct {
	secret atomic.Pointer[[]byte]
}

// NewSigningKey returns a key initialised with secret.
func NewSigningKey(secret []byte) *SigningKey {
	k := &SigningKey{}
	k.Rotate(secret)
	return k
}

// Rotate replaces the current secret. Tokens signed with the previous secret
// stop verifying immediately.
func (k *SigningKey) Rotate(secret []byte) {
	b := make([]byte, len(secret))
	copy(b, secret)
	k.secret.Store(&b)
}

func (k *SigningKey) current() []byte {
	return *k.secret.Load()
}

type accessClaims struct {
	Role string `json:"role"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	key *SigningKey
	ttl time.Duration
	now func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for iat, exp and verification.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// WithTTL overrides DefaultTokenTTL.
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewTokenService(key *SigningKey, opts ...TokenOption) *TokenService {
	s := &TokenService{key: key, ttl: DefaultTokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.TokenService = (*TokenService)(nil)

func (s *TokenService) Issue(userID string, role domain.Role) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("issue token: %w: empty subject", domain.ErrInvalidInput)
	}
	now := s.now().UTC().Truncate(time.Second)
	exp := now.Add(s.ttl)

	claims := accessClaims{
		Role: string(role),
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key.current())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature first and expiry second, so a forged token is
// reported as SignatureInvalid even when it is also expired.
func (s *TokenService) Verify(token string) (*ports.TokenClaims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.key.current(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}

	if claims.Subject == "" || claims.Type != tokenTypeAccess {
		return nil, domain.ErrTokenMalformed
	}

	out := &ports.TokenClaims{
		UserID:    claims.Subject,
		Role:      domain.Role(claims.Role),
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return domain.ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	default:
		return domain.ErrTokenMalformed
	}
}
