package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gadgetcloud/gc-backend/internal/api"
	"github.com/gadgetcloud/gc-backend/internal/api/handler"
	"github.com/gadgetcloud/gc-backend/internal/core/service"
	"github.com/gadgetcloud/gc-backend/internal/infrastructure/db/redis"
	"github.com/gadgetcloud/gc-backend/internal/infrastructure/security"
	"github.com/gadgetcloud/gc-backend/internal/pkg/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// Application wires the API server and owns its connections.
type Application struct {
	cfg *config.Config
	log zerolog.Logger

	store  *Store
	redis  *goredis.Client
	server *http.Server
}

// New connects every dependency and builds the HTTP server. Nothing is
// served until Run.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, error) {
	provider, err := security.SelectSecretProvider(cfg.Auth.JWTSecretFile, cfg.Auth.JWTSecret, cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	secret, err := provider.Secret(ctx)
	if err != nil {
		return nil, fmt.Errorf("load signing secret: %w", err)
	}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	rdb, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	hasher := security.NewBcryptHasher(cfg.Auth.BcryptCost)
	tokens := security.NewTokenService(security.NewSigningKey(secret), security.WithTTL(cfg.Auth.TokenTTL))
	throttle := redis.NewLoginThrottle(rdb, cfg.Auth.LoginMaxFailures, cfg.Auth.LoginFailureWindow)

	authSvc := service.NewAuthService(store.Users, hasher, tokens, store.Audit, throttle, log.With().Str("component", "auth").Logger())
	adminSvc := service.NewAdminService(store.Users, hasher, store.Audit, log.With().Str("component", "admin").Logger())

	router := api.NewRouter(api.Deps{
		Auth:  authSvc,
		Admin: adminSvc,
		Audit: store.Audit,
		Checks: map[string]handler.HealthCheck{
			"mongodb": store.Ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
		Log:                log,
		CORSOrigins:        cfg.HTTP.CORSOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
	})

	return &Application{
		cfg:   cfg,
		log:   log,
		store: store,
		redis: rdb,
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
	}, nil
}

// Run serves until SIGINT/SIGTERM or a server failure, then shuts down.
func (a *Application) Run() error {
	a.log.Info().Str("addr", a.server.Addr).Str("env", a.cfg.Env).Msg("api server starting")

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = a.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		a.log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	return a.Shutdown()
}

// Shutdown stops accepting requests, drains the audit queue and closes
// connections within SHUTDOWN_TIMEOUT.
func (a *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("graceful server shutdown failed")
		_ = a.server.Close()
	}

	var errs []error
	if err := a.store.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close: %w", err))
	}

	a.log.Info().Msg("api server stopped")
	return errors.Join(errs...)
}
