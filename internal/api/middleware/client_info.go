package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
)

// ClientInfo copies the caller's address, user agent and request id into the
// request context so audit entries can carry them. Must run after RequestID.
func ClientInfo() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			info := domain.ClientInfo{
				IP:        c.RealIP(),
				UserAgent: c.Request().UserAgent(),
				RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
			}
			c.SetRequest(c.Request().WithContext(domain.WithClientInfo(c.Request().Context(), info)))
			return next(c)
		}
	}
}
