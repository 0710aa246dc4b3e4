package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
	"github.com/gadgetcloud/gc-backend/internal/pkg/ids"
	"github.com/gadgetcloud/gc-backend/internal/pkg/metrics"
)

const (
	defaultUserPageSize = 50
	maxUserPageSize     = 100
	userHistoryLimit    = 20
	recentSignupWindow  = 7 * 24 * time.Hour
)

var userSortKeys = map[string]bool{
	ports.SortByCreatedAt: true,
	ports.SortByEmail:     true,
	ports.SortByRole:      true,
	ports.SortByStatus:    true,
}

type adminService struct {
	users  ports.UserRepository
	hasher ports.PasswordHasher
	audit  ports.AuditService
	now    func() time.Time
	log    zerolog.Logger
}

// NewAdminService returns the AdminService implementation. Callers are
// expected to have enforced the admin role already.
func NewAdminService(users ports.UserRepository, hasher ports.PasswordHasher, audit ports.AuditService, log zerolog.Logger) ports.AdminService {
	return &adminService{users: users, hasher: hasher, audit: audit, now: time.Now, log: log}
}

func (s *adminService) ListUsers(ctx context.Context, in ports.ListUsersInput) (*ports.UserPage, error) {
	if in.Role != "" && !in.Role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, in.Status)
	}
	if in.SortBy == "" {
		in.SortBy = ports.SortByCreatedAt
	}
	if !userSortKeys[in.SortBy] {
		return nil, fmt.Errorf("%w: cannot sort by %q", domain.ErrInvalidInput, in.SortBy)
	}
	if in.Limit < 0 || in.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrInvalidInput)
	}
	if in.Limit == 0 {
		in.Limit = defaultUserPageSize
	}
	in.Limit = min(in.Limit, maxUserPageSize)

	users, total, err := s.users.List(ctx, ports.UserFilter{
		Role:     in.Role,
		Status:   in.Status,
		Search:   strings.TrimSpace(in.Search),
		SortBy:   in.SortBy,
		SortDesc: in.SortDesc,
		Limit:    in.Limit,
		Offset:   in.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return &ports.UserPage{
		Users:   users,
		Total:   total,
		Limit:   in.Limit,
		Offset:  in.Offset,
		HasMore: int64(in.Offset+len(users)) < total,
	}, nil
}

func (s *adminService) Statistics(ctx context.Context) (*ports.UserStatistics, error) {
	stats := &ports.UserStatistics{
		ByRole:   make(map[domain.Role]int64, len(domain.Roles)),
		ByStatus: make(map[domain.UserStatus]int64, len(domain.Statuses)),
	}

	var err error
	if stats.Total, err = s.users.Count(ctx, ports.UserFilter{}); err != nil {
		return nil, fmt.Errorf("user statistics: %w", err)
	}
	for _, r := range domain.Roles {
		n, err := s.users.Count(ctx, ports.UserFilter{Role: r})
		if err != nil {
			return nil, fmt.Errorf("user statistics: role %s: %w", r, err)
		}
		stats.ByRole[r] = n
	}
	for _, st := range domain.Statuses {
		n, err := s.users.Count(ctx, ports.UserFilter{Status: st})
		if err != nil {
			return nil, fmt.Errorf("user statistics: status %s: %w", st, err)
		}
		stats.ByStatus[st] = n
	}
	since := s.now().UTC().Add(-recentSignupWindow)
	if stats.RecentSignups, err = s.users.Count(ctx, ports.UserFilter{CreatedAfter: since}); err != nil {
		return nil, fmt.Errorf("user statistics: recent signups: %w", err)
	}
	return stats, nil
}

func (s *adminService) GetUser(ctx context.Context, id string) (*ports.UserDetail, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := s.audit.ForUser(ctx, id, userHistoryLimit)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", id).Msg("audit history unavailable")
		history = nil
	}
	return &ports.UserDetail{User: user, AuditHistory: history}, nil
}

// CreateUser provisions an account with an explicit role.
func (s *adminService) CreateUser(ctx context.Context, actor domain.Identity, in ports.CreateUserInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.DisplayName)
	switch {
	case email == "":
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	case name == "":
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	case !in.Role.Valid():
		return nil, domain.ErrInvalidRole
	}

	if err := ensureEmailAvailable(ctx, s.users, email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	now := s.now().UTC()
	user := &domain.User{
		ID:           ids.NewAt(now),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  name,
		Role:         in.Role,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.audit.Record(ctx, ports.RecordInput{
		EventType: domain.EventUserCreated,
		ActorID:   actor.UserID,
		TargetID:  user.ID,
		Metadata:  map[string]string{"role": string(user.Role)},
	})
	metrics.AdminActionsTotal.WithLabelValues("create").Inc()

	s.log.Info().Str("actor_id", actor.UserID).Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")
	return user, nil
}

func (s *adminService) UpdateUser(ctx context.Context, actor domain.Identity, id, displayName string) (*domain.User, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.DisplayName == name {
		return user, nil
	}

	now := s.now()
	if err := s.users.UpdateProfile(ctx, id, name, now); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	old := user.DisplayName
	user.DisplayName = name
	user.Touch(now)

	s.audit.Record(ctx, ports.RecordInput{
		EventType: domain.EventUserUpdate,
		ActorID:   actor.UserID,
		TargetID:  id,
		Metadata:  map[string]string{"old_name": old, "new_name": name},
	})
	metrics.AdminActionsTotal.WithLabelValues("update").Inc()
	return user, nil
}

func (s *adminService) ChangeRole(ctx context.Context, actor domain.Identity, id string, newRole domain.Role, reason string) (*domain.User, error) {
	if !newRole.Valid() {
		return nil, domain.ErrInvalidRole
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}
	if actor.UserID == id {
		return nil, domain.ErrSelfModification
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == newRole {
		return nil, fmt.Errorf("%w: user already has role %s", domain.ErrNoChange, newRole)
	}

	oldRole := user.Role
	now := s.now()
	if err := s.users.UpdateRole(ctx, id, oldRole, newRole, now); err != nil {
		return nil, fmt.Errorf("change role: %w", err)
	}
	user.Role = newRole
	user.Touch(now)

	s.audit.Record(ctx, ports.RecordInput{
		EventType: domain.EventRoleChange,
		ActorID:   actor.UserID,
		TargetID:  id,
		Reason:    reason,
		Metadata:  map[string]string{"old_role": string(oldRole), "new_role": string(newRole)},
	})
	metrics.AdminActionsTotal.WithLabelValues("role_change").Inc()

	s.log.Info().
		Str("actor_id", actor.UserID).
		Str("user_id", id).
		Str("old_role", string(oldRole)).
		Str("new_role", string(newRole)).
		Msg("role changed")
	return user, nil
}

func (s *adminService) Deactivate(ctx context.Context, actor domain.Identity, id, reason string) (*domain.User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}
	if actor.UserID == id {
		return nil, domain.ErrSelfModification
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == domain.RoleAdmin {
		return nil, fmt.Errorf("%w: administrators cannot be deactivated", domain.ErrForbidden)
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("%w: user is already inactive", domain.ErrNoChange)
	}

	return s.setStatus(ctx, actor, user, domain.StatusInactive, reason)
}

func (s *adminService) Reactivate(ctx context.Context, actor domain.Identity, id, reason string) (*domain.User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive() {
		return nil, fmt.Errorf("%w: user is already active", domain.ErrNoChange)
	}

	return s.setStatus(ctx, actor, user, domain.StatusActive, reason)
}

func (s *adminService) setStatus(ctx context.Context, actor domain.Identity, user *domain.User, status domain.UserStatus, reason string) (*domain.User, error) {
	event, action := domain.EventDeactivation, "deactivate"
	if status == domain.StatusActive {
		event, action = domain.EventReactivation, "reactivate"
	}

	old := user.Status
	now := s.now()
	if err := s.users.UpdateStatus(ctx, user.ID, old, status, now); err != nil {
		return nil, fmt.Errorf("%s user: %w", action, err)
	}
	user.Status = status
	user.Touch(now)

	s.audit.Record(ctx, ports.RecordInput{
		EventType: event,
		ActorID:   actor.UserID,
		TargetID:  user.ID,
		Reason:    reason,
		Metadata:  map[string]string{"old_status": string(old), "new_status": string(status)},
	})
	metrics.AdminActionsTotal.WithLabelValues(action).Inc()

	s.log.Info().
		Str("actor_id", actor.UserID).
		Str("user_id", user.ID).
		Str("status", string(status)).
		Msg("user status changed")
	return user, nil
}
