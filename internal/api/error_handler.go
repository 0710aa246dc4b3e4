package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	target error
	status int
	code   string
	// passthrough renders the wrapped error text instead of the sentinel's.
	passthrough bool
}

// errorTable is matched in order with errors.Is; the first match wins.
var errorTable = []errorMapping{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", false},
	{domain.ErrTokenExpired, http.StatusUnauthorized, "unauthenticated", false},
	{domain.ErrTokenSignatureInvalid, http.StatusUnauthorized, "unauthenticated", false},
	{domain.ErrTokenMalformed, http.StatusUnauthorized, "unauthenticated", false},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", false},
	{domain.ErrAccountInactive, http.StatusForbidden, "account_inactive", false},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden", false},
	{domain.ErrUserNotFound, http.StatusNotFound, "not_found", false},
	{domain.ErrAuditLogNotFound, http.StatusNotFound, "not_found", false},
	{domain.ErrUserExists, http.StatusConflict, "already_exists", false},
	{domain.ErrWeakPassword, http.StatusBadRequest, "weak_password", true},
	{domain.ErrInvalidRole, http.StatusBadRequest, "invalid_role", false},
	{domain.ErrReasonRequired, http.StatusBadRequest, "reason_required", false},
	{domain.ErrSelfModification, http.StatusBadRequest, "self_modification", false},
	{domain.ErrNoChange, http.StatusBadRequest, "no_change", false},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input", true},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts", false},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", false},
	{domain.ErrInvalidHashFormat, http.StatusInternalServerError, "invalid_hash_format", false},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain errors to one status and a stable machine-readable code.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "code": "<code>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	for _, m := range errorTable {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.target.Error()
		if m.passthrough {
			msg = err.Error()
		}
		switch m.status {
		case http.StatusServiceUnavailable:
			logUnexpected(log, c, err, "dependency unavailable")
		case http.StatusInternalServerError:
			logUnexpected(log, c, err, "internal error")
			msg = "internal server error"
		}
		return m.status, errorResponse{Error: msg, Code: m.code}
	}

	// Echo's own errors (router 404/405, rate limiter, body limit).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message), Code: statusCode(he.Code)}
	}

	logUnexpected(log, c, err, "unhandled error")
	return http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "internal"}
}

func logUnexpected(log zerolog.Logger, c echo.Context, err error, msg string) {
	log.Error().
		Err(err).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg(msg)
}

func statusCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusBadRequest:
		return "invalid_input"
	}
	if status >= http.StatusInternalServerError {
		return "internal"
	}
	return "error"
}
