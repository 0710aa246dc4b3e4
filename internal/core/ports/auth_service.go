package ports

import (
	"context"
	"time"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
)

// SignupInput carries the self-registration fields.
type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
}

// ProfileUpdate lists the fields a user may change on their own account.
// Nil means "leave unchanged".
type ProfileUpdate struct {
	DisplayName *string
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Logout(ctx context.Context, userID string) error
	Me(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	// Authenticate resolves a bearer token to the current identity, re-checking
	// that the account still exists and is active.
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}
