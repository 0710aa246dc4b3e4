package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gadgetcloud/gc-backend/internal/api/handler"
	"github.com/gadgetcloud/gc-backend/internal/api/middleware"
	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

const (
	defaultRateLimitPerMinute = 60
	rateLimiterExpiry         = 3 * time.Minute
	bodyLimit                 = "1M"
)

// Deps carries everything the router needs. Services are built by the caller
// so tests can pass in-memory implementations.
type Deps struct {
	Auth   ports.AuthService
	Admin  ports.AdminService
	Audit  ports.AuditService
	Checks map[string]handler.HealthCheck
	Log    zerolog.Logger

	CORSOrigins []string
	// RateLimitPerMinute bounds requests per client IP on /api/auth.
	// Zero uses the default; negative disables the limiter.
	RateLimitPerMinute int
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(deps.Log))
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	if len(deps.CORSOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins: deps.CORSOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	e.Use(middleware.ClientInfo())

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "gadgetcloud",
		Subsystem:  "http",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{reg, prometheus.DefaultGatherer},
	}))

	// --- Health probes (no auth required) ---
	health := handler.NewHealthHandler(deps.Checks)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)

	authenticate := middleware.Authenticate(deps.Auth)
	api := e.Group("/api")

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	var authMW []echo.MiddlewareFunc
	if limiter := rateLimiter(deps.RateLimitPerMinute); limiter != nil {
		authMW = append(authMW, limiter)
	}
	auth := api.Group("/auth", authMW...)
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout, authenticate)
	auth.GET("/me", authHandler.Me, authenticate)
	auth.PUT("/me", authHandler.UpdateMe, authenticate)
	auth.POST("/change-password", authHandler.ChangePassword, authenticate)

	// --- Admin routes ---
	admin := api.Group("/admin", authenticate, middleware.RequireRoles(deps.Audit, domain.RoleAdmin))

	users := handler.NewAdminUserHandler(deps.Admin)
	admin.GET("/users", users.List)
	admin.GET("/users/statistics", users.Statistics)
	admin.GET("/users/:id", users.Get)
	admin.PUT("/users/:id", users.Update)
	admin.PUT("/users/:id/role", users.ChangeRole)
	admin.POST("/users/:id/deactivate", users.Deactivate)
	admin.POST("/users/:id/reactivate", users.Reactivate)

	audit := handler.NewAdminAuditHandler(deps.Audit)
	admin.GET("/audit-logs", audit.Query)
	admin.GET("/audit-logs/recent", audit.Recent)
	admin.GET("/audit-logs/statistics", audit.Statistics)
	admin.GET("/audit-logs/user/:id", audit.ForUser)
	admin.GET("/audit-logs/actor/:id", audit.ForActor)
	admin.GET("/audit-logs/:id", audit.Get)

	return e
}

func rateLimiter(perMinute int) echo.MiddlewareFunc {
	if perMinute < 0 {
		return nil
	}
	if perMinute == 0 {
		perMinute = defaultRateLimitPerMinute
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: rateLimiterExpiry,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
	})
}

// requestLogger writes one zerolog event per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
