package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

const (
	defaultMaxFailures   = 5
	defaultFailureWindow = 15 * time.Minute
)

// LoginThrottle counts failed logins per account key in Redis.
// Key format: login:failures:<sha256(key)>. The window restarts on every
// failure, so a steady stream of guesses stays locked out.
type LoginThrottle struct {
	client      *redis.Client
	maxFailures int64
	window      time.Duration
}

var _ ports.LoginThrottle = (*LoginThrottle)(nil)

// NewLoginThrottle wraps client. Non-positive arguments select the defaults.
func NewLoginThrottle(client *redis.Client, maxFailures int, window time.Duration) *LoginThrottle {
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	if window <= 0 {
		window = defaultFailureWindow
	}
	return &LoginThrottle{client: client, maxFailures: int64(maxFailures), window: window}
}

// Allowed reports whether key is still below the failure limit.
func (t *LoginThrottle) Allowed(ctx context.Context, key string) (bool, error) {
	n, err := t.client.Get(ctx, t.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("login throttle get: %w", err)
	}
	return n < t.maxFailures, nil
}

// RecordFailure increments the counter and refreshes its expiry atomically.
func (t *LoginThrottle) RecordFailure(ctx context.Context, key string) error {
	k := t.key(key)
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("login throttle incr: %w", err)
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, t.key(key)).Err(); err != nil {
		return fmt.Errorf("login throttle reset: %w", err)
	}
	return nil
}

// key hashes the account key so emails are not stored in Redis.
func (t *LoginThrottle) key(account string) string {
	sum := sha256.Sum256([]byte(account))
	return "login:failures:" + hex.EncodeToString(sum[:])
}
