package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
)

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"not found", domain.ErrUserNotFound, http.StatusNotFound, "not_found", domain.ErrUserNotFound.Error()},
		{"weak password keeps detail", fmt.Errorf("%w: at least 8 characters", domain.ErrWeakPassword), http.StatusBadRequest, "weak_password", "password does not meet the minimum policy: at least 8 characters"},
		{"malformed stored hash", fmt.Errorf("login: user u1: %w", domain.ErrInvalidHashFormat), http.StatusInternalServerError, "invalid_hash_format", "internal server error"},
		{"unavailable", fmt.Errorf("find user: %w", domain.ErrUnavailable), http.StatusServiceUnavailable, "unavailable", domain.ErrUnavailable.Error()},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"), http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			NewHTTPErrorHandler(zerolog.Nop())(tt.err, c)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body.Code != tt.wantCode || body.Error != tt.wantMsg {
				t.Fatalf("unexpected body: %+v", body)
			}
		})
	}
}
