package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const envProduction = "production"

type Config struct {
	Port            string        `env:"PORT,             default=8080"`
	Env             string        `env:"ENV,              default=development"`
	LogLevel        string        `env:"LOG_LEVEL,        default=info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=15s"`

	Auth  AuthConfig
	HTTP  HTTPConfig
	Audit AuditConfig
	Mongo MongoConfig
	Redis RedisConfig
}

type AuthConfig struct {
	// JWTSecretFile takes precedence over JWTSecret when both are set.
	JWTSecret          string        `env:"JWT_SECRET"`
	JWTSecretFile      string        `env:"JWT_SECRET_FILE"`
	TokenTTL           time.Duration `env:"TOKEN_TTL,            default=24h"`
	BcryptCost         int           `env:"BCRYPT_COST,          default=10"`
	LoginMaxFailures   int           `env:"LOGIN_MAX_FAILURES,   default=5"`
	LoginFailureWindow time.Duration `env:"LOGIN_FAILURE_WINDOW, default=15m"`
}

type HTTPConfig struct {
	CORSOrigins        []string `env:"CORS_ORIGINS"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE, default=60"`
}

type AuditConfig struct {
	Workers     int `env:"AUDIT_WORKERS,      default=4"`
	MaxAttempts int `env:"AUDIT_MAX_ATTEMPTS, default=3"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=gadgetcloud"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	DB       int    `env:"REDIS_DB,   default=0"`
	Password string `env:"REDIS_PASSWORD"`
}

// Load reads the API server configuration from environment variables using
// go-envconfig and validates it.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper(), (*Config).Validate)
}

// LoadStore is Load for operator commands that only talk to the database and
// therefore do not need a signing secret.
func LoadStore(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper(), (*Config).ValidateStore)
}

func load(ctx context.Context, lookuper envconfig.Lookuper, validate func(*Config) error) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, envProduction)
}

// Validate rejects configurations the API server cannot start with. Secret
// length is checked when the secret is resolved.
func (c *Config) Validate() error {
	errs := c.storeErrors()
	if c.Auth.JWTSecret == "" && c.Auth.JWTSecretFile == "" {
		errs = append(errs, errors.New("one of JWT_SECRET or JWT_SECRET_FILE is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Auth.LoginMaxFailures <= 0 {
		errs = append(errs, errors.New("LOGIN_MAX_FAILURES must be positive"))
	}
	return joinErrors(errs)
}

// ValidateStore checks only the settings needed to open the store.
func (c *Config) ValidateStore() error {
	return joinErrors(c.storeErrors())
}

func (c *Config) storeErrors() []error {
	var errs []error
	if c.Audit.Workers <= 0 || c.Audit.MaxAttempts <= 0 {
		errs = append(errs, errors.New("AUDIT_WORKERS and AUDIT_MAX_ATTEMPTS must be positive"))
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		errs = append(errs, errors.New("MONGO_URI and MONGO_DB are required"))
	}
	return errs
}

func joinErrors(errs []error) error {
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
