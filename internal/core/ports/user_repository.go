package ports

import (
	"context"
	"time"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
)

// User sort keys accepted by UserRepository.List.
const (
	SortByCreatedAt = "createdAt"
	SortByEmail     = "email"
	SortByRole      = "role"
	SortByStatus    = "status"
)

// UserFilter narrows List and Count. Zero values mean "no filter".
type UserFilter struct {
	Role         domain.Role
	Status       domain.UserStatus
	Search       string    // case-insensitive substring on email or display name
	CreatedAfter time.Time // created_at >= CreatedAfter
	SortBy       string    // one of the SortBy* constants; defaults to createdAt
	SortDesc     bool
	Limit        int
	Offset       int
}

// UserRepository is the identity store the core depends on.
type UserRepository interface {
	// Create inserts a new user. Returns domain.ErrUserExists when the
	// normalized email is already taken.
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// The update methods write only their own field plus updated_at, which
	// never moves backwards. All return domain.ErrUserNotFound for unknown ids.
	UpdateProfile(ctx context.Context, id, displayName string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	// UpdateRole and UpdateStatus apply only while the stored value still
	// equals from; otherwise they return domain.ErrNoChange.
	UpdateRole(ctx context.Context, id string, from, to domain.Role, at time.Time) error
	UpdateStatus(ctx context.Context, id string, from, to domain.UserStatus, at time.Time) error
	// List returns a page of users matching filter and the total match count.
	List(ctx context.Context, filter UserFilter) ([]*domain.User, int64, error)
	Count(ctx context.Context, filter UserFilter) (int64, error)
}
