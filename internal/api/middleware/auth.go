package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
	"github.com/gadgetcloud/gc-backend/internal/pkg/metrics"
)

// IdentityKey is the echo context key holding the authenticated domain.Identity.
const IdentityKey = "identity"

// Authenticate validates the bearer token, re-loads the account and injects
// the resulting identity into both the echo context and the request context.
// The role is taken from the stored user, not from the token.
func Authenticate(auth ports.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				metrics.AuthorizationDenialsTotal.WithLabelValues("unauthenticated").Inc()
				return domain.ErrUnauthenticated
			}

			id, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				reason := "unauthenticated"
				if errors.Is(err, domain.ErrAccountInactive) {
					reason = "account_inactive"
				}
				metrics.AuthorizationDenialsTotal.WithLabelValues(reason).Inc()
				return err
			}

			c.Set(IdentityKey, id)
			c.SetRequest(c.Request().WithContext(domain.WithIdentity(c.Request().Context(), id)))

			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
