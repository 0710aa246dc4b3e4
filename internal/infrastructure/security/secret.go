package security

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// MinSecretLength is the minimum accepted HMAC secret size in bytes.
const MinSecretLength = 32

var (
	ErrSecretMissing  = errors.New("signing secret is not configured")
	ErrSecretTooShort = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
)

// SecretProvider yields the signing secret at process start.
type SecretProvider interface {
	Secret(ctx context.Context) ([]byte, error)
}

// FileSecretProvider reads the secret from a mounted file, the way secret
// managers expose values to containers. Surrounding whitespace is trimmed.
type FileSecretProvider struct {
	Path string
}

func (p FileSecretProvider) Secret(_ context.Context) ([]byte, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read secret file %s: %w", p.Path, err)
	}
	return checkSecret([]byte(strings.TrimSpace(string(raw))))
}

// EnvSecretProvider returns a value already loaded from the environment.
// It is the development fallback.
type EnvSecretProvider struct {
	Value string
}

func (p EnvSecretProvider) Secret(_ context.Context) ([]byte, error) {
	return checkSecret([]byte(p.Value))
}

// SelectSecretProvider prefers the mounted file. The environment fallback is
// refused when production is true.
func SelectSecretProvider(file, env string, production bool) (SecretProvider, error) {
	if file != "" {
		return FileSecretProvider{Path: file}, nil
	}
	if production {
		return nil, fmt.Errorf("%w: JWT_SECRET_FILE is required in production", ErrSecretMissing)
	}
	return EnvSecretProvider{Value: env}, nil
}

func checkSecret(b []byte) ([]byte, error) {
	switch {
	case len(b) == 0:
		return nil, ErrSecretMissing
	case len(b) < MinSecretLength:
		return nil, ErrSecretTooShort
	}
	return b, nil
}
