package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"golang.org/x/crypto/bcrypt"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": strings.Repeat("s", 32),
	}), (*Config).Validate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" || cfg.Env != "development" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour || cfg.Auth.LoginFailureWindow != 15*time.Minute {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if cfg.Auth.BcryptCost != bcrypt.DefaultCost {
		t.Fatalf("bcrypt cost = %d, want %d", cfg.Auth.BcryptCost, bcrypt.DefaultCost)
	}
	if cfg.Audit.Workers != 4 || cfg.Audit.MaxAttempts != 3 {
		t.Fatalf("unexpected audit defaults: %+v", cfg.Audit)
	}
	if cfg.IsProduction() {
		t.Fatal("development must not be production")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":             "Production",
		"JWT_SECRET_FILE": "/run/secrets/jwt",
		"TOKEN_TTL":       "1h",
		"CORS_ORIGINS":    "https://app.gadgetcloud.io,https://admin.gadgetcloud.io",
		"REDIS_DB":        "2",
	}), (*Config).Validate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.IsProduction() {
		t.Fatal("expected production")
	}
	if cfg.Auth.TokenTTL != time.Hour || cfg.Redis.DB != 2 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 {
		t.Fatalf("expected two CORS origins, got %v", cfg.HTTP.CORSOrigins)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}), (*Config).Validate)
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestLoadStore_DoesNotNeedSecret(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}), (*Config).ValidateStore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mongo.Database != "gadgetcloud" {
		t.Fatalf("unexpected mongo db: %q", cfg.Mongo.Database)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": strings.Repeat("s", 32),
		"TOKEN_TTL":  "forever",
	}), (*Config).Validate)
	if err == nil {
		t.Fatal("expected parse error")
	}
}
