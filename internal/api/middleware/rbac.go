package middleware

import (
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
	"github.com/gadgetcloud/gc-backend/internal/pkg/metrics"
)

// RequireRoles admits identities whose role is in roles. Admin is always
// admitted. Denials are recorded as permission_denied audit entries.
// Must run after Authenticate.
func RequireRoles(audit ports.AuditService, roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := c.Get(IdentityKey).(domain.Identity)
			if !ok || id.UserID == "" {
				metrics.AuthorizationDenialsTotal.WithLabelValues("unauthenticated").Inc()
				return domain.ErrUnauthenticated
			}

			if id.Role == domain.RoleAdmin || slices.Contains(roles, id.Role) {
				return next(c)
			}

			metrics.AuthorizationDenialsTotal.WithLabelValues("forbidden").Inc()
			audit.Record(c.Request().Context(), ports.RecordInput{
				EventType: domain.EventPermissionDenied,
				ActorID:   id.UserID,
				TargetID:  id.UserID,
				Metadata: map[string]string{
					"method": c.Request().Method,
					"path":   c.Path(),
					"role":   string(id.Role),
				},
			})
			return domain.ErrForbidden
		}
	}
}
