package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

type stubAuthService struct {
	ports.AuthService
	authenticateFn func(ctx context.Context, token string) (domain.Identity, error)
}

func (s *stubAuthService) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	return s.authenticateFn(ctx, token)
}

func newAuthContext(header string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthenticate_ValidToken(t *testing.T) {
	stub := &stubAuthService{
		authenticateFn: func(ctx context.Context, token string) (domain.Identity, error) {
			if token != "good-token" {
				t.Fatalf("unexpected token %q", token)
			}
			return domain.Identity{UserID: "u1", Role: domain.RolePartner}, nil
		},
	}
	c, rec := newAuthContext("Bearer good-token")

	called := false
	handler := Authenticate(stub)(func(c echo.Context) error {
		called = true
		id, ok := c.Get(IdentityKey).(domain.Identity)
		if !ok || id.UserID != "u1" || id.Role != domain.RolePartner {
			t.Fatalf("identity not set on echo context: %+v", c.Get(IdentityKey))
		}
		ctxID, ok := domain.IdentityFromContext(c.Request().Context())
		if !ok || ctxID != id {
			t.Fatalf("identity not set on request context")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthenticate_LowercaseScheme(t *testing.T) {
	stub := &stubAuthService{
		authenticateFn: func(ctx context.Context, token string) (domain.Identity, error) {
			return domain.Identity{UserID: "u1", Role: domain.RoleCustomer}, nil
		},
	}
	c, _ := newAuthContext("bearer tok")

	err := Authenticate(stub)(func(c echo.Context) error { return nil })(c)
	if err != nil {
		t.Fatalf("expected lowercase scheme to be accepted, got %v", err)
	}
}

func TestAuthenticate_BadHeaders(t *testing.T) {
	stub := &stubAuthService{
		authenticateFn: func(ctx context.Context, token string) (domain.Identity, error) {
			t.Fatalf("service must not be called")
			return domain.Identity{}, nil
		},
	}

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer   "} {
		c, _ := newAuthContext(header)
		err := Authenticate(stub)(func(c echo.Context) error {
			t.Fatalf("should not reach next")
			return nil
		})(c)
		if !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("header %q: expected ErrUnauthenticated, got %v", header, err)
		}
	}
}

func TestAuthenticate_PropagatesServiceErrors(t *testing.T) {
	cases := []error{
		domain.ErrAccountInactive,
		domain.ErrUnauthenticated,
	}
	for _, want := range cases {
		stub := &stubAuthService{
			authenticateFn: func(ctx context.Context, token string) (domain.Identity, error) {
				return domain.Identity{}, want
			},
		}
		c, _ := newAuthContext("Bearer tok")

		err := Authenticate(stub)(func(c echo.Context) error {
			t.Fatalf("should not reach next")
			return nil
		})(c)
		if !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	}
}

func TestClientInfo(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "repair-app/1.0")
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.7")
	rec := httptest.NewRecorder()
	rec.Header().Set(echo.HeaderXRequestID, "req-1")
	c := e.NewContext(req, rec)

	err := ClientInfo()(func(c echo.Context) error {
		info, ok := domain.ClientInfoFromContext(c.Request().Context())
		if !ok {
			t.Fatalf("client info missing")
		}
		if info.IP != "203.0.113.7" || info.UserAgent != "repair-app/1.0" || info.RequestID != "req-1" {
			t.Fatalf("unexpected client info: %+v", info)
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}
