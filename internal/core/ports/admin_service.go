package ports

import (
	"context"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
)

// ListUsersInput carries the admin user listing parameters.
type ListUsersInput struct {
	Role     domain.Role
	Status   domain.UserStatus
	Search   string
	SortBy   string
	SortDesc bool
	Limit    int // defaults to 50, capped at 100
	Offset   int
}

type UserPage struct {
	Users   []*domain.User
	Total   int64
	Limit   int
	Offset  int
	HasMore bool
}

type UserStatistics struct {
	Total         int64
	ByRole        map[domain.Role]int64
	ByStatus      map[domain.UserStatus]int64
	RecentSignups int64 // created in the last seven days
}

// UserDetail is a user plus their most recent audit history.
type UserDetail struct {
	User         *domain.User
	AuditHistory []*domain.AuditLogEntry
}

// CreateUserInput is used by operators to provision accounts with an explicit role.
type CreateUserInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        domain.Role
}

type AdminService interface {
	ListUsers(ctx context.Context, in ListUsersInput) (*UserPage, error)
	Statistics(ctx context.Context) (*UserStatistics, error)
	GetUser(ctx context.Context, id string) (*UserDetail, error)
	CreateUser(ctx context.Context, actor domain.Identity, in CreateUserInput) (*domain.User, error)
	UpdateUser(ctx context.Context, actor domain.Identity, id, displayName string) (*domain.User, error)
	ChangeRole(ctx context.Context, actor domain.Identity, id string, newRole domain.Role, reason string) (*domain.User, error)
	Deactivate(ctx context.Context, actor domain.Identity, id, reason string) (*domain.User, error)
	Reactivate(ctx context.Context, actor domain.Identity, id, reason string) (*domain.User, error)
}
