package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/pkg/ids"
)

// currentIdentity returns the identity injected by the Authenticate
// middleware. Its absence means the route was registered without auth.
func currentIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := domain.IdentityFromContext(c.Request().Context())
	if !ok {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return id, nil
}

// bind decodes the request into req and validates it. Decoding failures are
// reported as invalid input so they share the validation error envelope.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return invalidPayload(err)
	}
	return c.Validate(req)
}

// idParam returns the :id path parameter. Stored ids are ULIDs, so anything
// else is reported as notFound without a lookup.
func idParam(c echo.Context, notFound error) (string, error) {
	id := c.Param("id")
	if !ids.Valid(id) {
		return "", notFound
	}
	return id, nil
}
