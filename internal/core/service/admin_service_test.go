package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

var adminActor = domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}

func newAdminSvc(users *stubUserRepo, audit *recordingAudit) *adminService {
	svc := NewAdminService(users, fakeHasher{}, audit, zerolog.Nop()).(*adminService)
	svc.now = fixedClock(testNow)
	return svc
}

// ---------------------------------------------------------------------------
// Role changes
// ---------------------------------------------------------------------------

func TestChangeRole_RecordsExactlyOneAudit(t *testing.T) {
	users, audit := newStubUserRepo(), &recordingAudit{}
	seedUser(users, "c1", "c@x.com", domain.RoleCustomer, domain.StatusActive)
	svc := newAdminSvc(users, audit)

	u, err := svc.ChangeRole(context.Background(), adminActor, "c1", domain.RolePartner, "upgrade")
	if err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	if u.Role != domain.RolePartner || users.get("c1").Role != domain.RolePartner {
		t.Fatalf("role not persisted")
	}
	if !users.get("c1").UpdatedAt.Equal(testNow) {
		t.Fatalf("expected updatedAt bumped")
	}

	changes := audit.ofType(domain.EventRoleChange)
	if len(changes) != 1 || len(audit.records) != 1 {
		t.Fatalf("expected exactly one role_change audit, got %+v", audit.records)
	}
	got := changes[0]
	if got.ActorID != "admin-1" || got.TargetID != "c1" || got.Reason != "upgrade" {
		t.Fatalf("unexpected audit entry: %+v", got)
	}
	if got.Metadata["old_role"] != "customer" || got.Metadata["new_role"] != "partner" {
		t.Fatalf("unexpected metadata: %v", got.Metadata)
	}
}

func TestChangeRole_Rejections(t *testing.T) {
	users := newStubUserRepo()
	seedUser(users, "c1", "c@x.com", domain.RoleCustomer, domain.StatusActive)
	seedUser(users, "admin-1", "admin@x.com", domain.RoleAdmin, domain.StatusActive)

	cases := []struct {
		name   string
		target string
		role   domain.Role
		reason string
		want   error
	}{
		{"unknown role", "c1", "superuser", "because", domain.ErrInvalidRole},
		{"missing reason", "c1", domain.RolePartner, "   ", domain.ErrReasonRequired},
		{"own role", "admin-1", domain.RoleCustomer, "demote", domain.ErrSelfModification},
		{"same role", "c1", domain.RoleCustomer, "noop", domain.ErrNoChange},
		{"missing user", "ghost", domain.RolePartner, "upgrade", domain.ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			audit := &recordingAudit{}
			_, err := newAdminSvc(users, audit).ChangeRole(context.Background(), adminActor, tc.target, tc.role, tc.reason)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(audit.records) != 0 {
				t.Fatalf("rejected change must not be audited: %+v", audit.records)
			}
		})
	}
}

func TestChangeRole_UpdateFailureIsNotAudited(t *testing.T) {
	users, audit := newStubUserRepo(), &recordingAudit{}
	seedUser(users, "c1", "c@x.com", domain.RoleCustomer, domain.StatusActive)
	users.updateErr = fmt.Errorf("write: %w", domain.ErrUnavailable)

	_, err := newAdminSvc(users, audit).ChangeRole(context.Background(), adminActor, "c1", domain.RoleSupport, "move to support")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(audit.records) != 0 {
		t.Fatalf("expected no audit when the update fails")
	}
}

// ---------------------------------------------------------------------------
// Status changes
// ---------------------------------------------------------------------------

func TestDeactivateAndReactivate(t *testing.T) {
	users, audit := newStubUserRepo(), &recordingAudit{}
	seedUser(users, "c1", "c@x.com", domain.RoleCustomer, domain.StatusActive)
	svc := newAdminSvc(users, audit)
	ctx := context.Background()

	u, err := svc.Deactivate(ctx, adminActor, "c1", "fraud review")
	if err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if u.Status != domain.StatusInactive {
		t.Fatalf("expected inactive, got %s", u.Status)
	}
	if _, err := svc.Deactivate(ctx, adminActor, "c1", "again"); !errors.Is(err, domain.ErrNoChange) {
		t.Fatalf("expected ErrNoChange, got %v", err)
	}

	u, err = svc.Reactivate(ctx, adminActor, "c1", "review cleared")
	if err != nil {
		t.Fatalf("Reactivate: %v", err)
	}
	if u.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", u.Status)
	}
	if _, err := svc.Reactivate(ctx, adminActor, "c1", "again"); !errors.Is(err, domain.ErrNoChange) {
		t.Fatalf("expected ErrNoChange, got %v", err)
	}

	deact, react := audit.ofType(domain.EventDeactivation), audit.ofType(domain.EventReactivation)
	if len(deact) != 1 || len(react) != 1 || len(audit.records) != 2 {
		t.Fatalf("expected one deactivation and one reactivation, got %+v", audit.records)
	}
	for _, r := range audit.records {
		if r.ActorID != "admin-1" || r.TargetID != "c1" || r.Reason == "" {
			t.Fatalf("unexpected audit entry: %+v", r)
		}
	}
}

func TestDeactivate_Rejections(t *testing.T) {
	users := newStubUserRepo()
	seedUser(users, "admin-2", "other@x.com", domain.RoleAdmin, domain.StatusActive)
	seedUser(users, "c1", "c@x.com", domain.RoleCustomer, domain.StatusActive)
	svc := newAdminSvc(users, &recordingAudit{})
	ctx := context.Background()

	if _, err := svc.Deactivate(ctx, adminActor, "admin-1", "self"); !errors.Is(err, domain.ErrSelfModification) {
		t.Fatalf("expected ErrSelfModification, got %v", err)
	}
	if _, err := svc.Deactivate(ctx, adminActor, "admin-2", "conflict"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another admin, got %v", err)
	}
	if _, err := svc.Deactivate(ctx, adminActor, "c1", ""); !errors.Is(err, domain.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	if _, err := svc.Reactivate(ctx, adminActor, "c1", ""); !errors.Is(err, domain.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
}

func TestChangeRole_LosesRaceWithoutClobbering(t *testing.T) {
	users, audit := newStubUserRepo(), &recordingAudit{}
	seedUser(users, "c1", "c@x.com", domain.RoleCustomer, domain.StatusActive)
	svc := newAdminSvc(users, audit)

	other := domain.Identity{UserID: "admin-2", Role: domain.RoleAdmin}
	users.beforeUpdate = func() {
		if _, err := svc.ChangeRole(context.Background(), other, "c1", domain.RoleSupport, "staffing"); err != nil {
			t.Fatalf("competing ChangeRole: %v", err)
		}
	}

	_, err := svc.ChangeRole(context.Background(), adminActor, "c1", domain.RolePartner, "upgrade")
	if !errors.Is(err, domain.ErrNoChange) {
		t.Fatalf("expected ErrNoChange, got %v", err)
	}
	if got := users.get("c1").Role; got != domain.RoleSupport {
		t.Fatalf("role = %s, want support", got)
	}
	changes := audit.ofType(domain.EventRoleChange)
	if len(changes) != 1 || changes[0].ActorID != "admin-2" {
		t.Fatalf("expected only the winning role_change audited, got %+v", changes)
	}
}

func TestDeactivate_KeepsConcurrentRoleChange(t *testing.T) {
	users, audit := newStubUserRepo(), &recordingAudit{}
	seedUser(users, "c1", "c@x.com", domain.RoleCustomer, domain.StatusActive)
	svc := newAdminSvc(users, audit)

	other := domain.Identity{UserID: "admin-2", Role: domain.RoleAdmin}
	users.beforeUpdate = func() {
		if _, err := svc.ChangeRole(context.Background(), other, "c1", domain.RolePartner, "upgrade"); err != nil {
			t.Fatalf("competing ChangeRole: %v", err)
		}
	}

	if _, err := svc.Deactivate(context.Background(), adminActor, "c1", "fraud review"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	stored := users.get("c1")
	if stored.Role != domain.RolePartner || stored.Status != domain.StatusInactive {
		t.Fatalf("expected partner and inactive, got %s and %s", stored.Role, stored.Status)
	}
}

// ---------------------------------------------------------------------------
// Listing and statistics
// ---------------------------------------------------------------------------

func seedMany(users *stubUserRepo, n int) {
	for i := 0; i < n; i++ {
		u := seedUser(users, fmt.Sprintf("u%03d", i), fmt.Sprintf("user%03d@x.com", i), domain.RoleCustomer, domain.StatusActive)
		u.CreatedAt = testNow.Add(-time.Duration(n-i) * time.Minute)
		users.seed(u)
	}
}

func TestListUsers_Paging(t *testing.T) {
	users := newStubUserRepo()
	seedMany(users, 120)
	svc := newAdminSvc(users, &recordingAudit{})
	ctx := context.Background()

	page, err := svc.ListUsers(ctx, ports.ListUsersInput{})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if page.Limit != 50 || len(page.Users) != 50 || page.Total != 120 || !page.HasMore {
		t.Fatalf("unexpected default page: limit=%d len=%d total=%d more=%v", page.Limit, len(page.Users), page.Total, page.HasMore)
	}

	page, _ = svc.ListUsers(ctx, ports.ListUsersInput{Limit: 500})
	if page.Limit != 100 || len(page.Users) != 100 {
		t.Fatalf("expected limit capped at 100, got %d", page.Limit)
	}

	page, _ = svc.ListUsers(ctx, ports.ListUsersInput{Limit: 50, Offset: 100})
	if len(page.Users) != 20 || page.HasMore {
		t.Fatalf("expected last page of 20 without more, got %d more=%v", len(page.Users), page.HasMore)
	}
}

func TestListUsers_InvalidInput(t *testing.T) {
	svc := newAdminSvc(newStubUserRepo(), &recordingAudit{})
	ctx := context.Background()

	if _, err := svc.ListUsers(ctx, ports.ListUsersInput{Role: "root"}); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.ListUsers(ctx, ports.ListUsersInput{Status: "suspended"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for status, got %v", err)
	}
	if _, err := svc.ListUsers(ctx, ports.ListUsersInput{SortBy: "password"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for sort, got %v", err)
	}
	if _, err := svc.ListUsers(ctx, ports.ListUsersInput{Offset: -1}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for offset, got %v", err)
	}
}

func TestStatistics(t *testing.T) {
	users := newStubUserRepo()
	seedUser(users, "c1", "c1@x.com", domain.RoleCustomer, domain.StatusActive)
	seedUser(users, "c2", "c2@x.com", domain.RoleCustomer, domain.StatusInactive)
	seedUser(users, "p1", "p1@x.com", domain.RolePartner, domain.StatusActive)
	old := seedUser(users, "a1", "a1@x.com", domain.RoleAdmin, domain.StatusActive)
	old.CreatedAt = testNow.Add(-30 * 24 * time.Hour)
	users.seed(old)

	stats, err := newAdminSvc(users, &recordingAudit{}).Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.Total != 4 || stats.RecentSignups != 3 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.ByRole[domain.RoleCustomer] != 2 || stats.ByRole[domain.RolePartner] != 1 ||
		stats.ByRole[domain.RoleSupport] != 0 || stats.ByRole[domain.RoleAdmin] != 1 {
		t.Fatalf("unexpected role counts: %v", stats.ByRole)
	}
	if stats.ByStatus[domain.StatusActive] != 3 || stats.ByStatus[domain.StatusInactive] != 1 {
		t.Fatalf("unexpected status counts: %v", stats.ByStatus)
	}
}

func TestGetUser_IncludesHistory(t *testing.T) {
	users, audit := newStubUserRepo(), &recordingAudit{}
	seedUser(users, "c1", "c@x.com", domain.RoleCustomer, domain.StatusActive)
	svc := newAdminSvc(users, audit)

	if _, err := svc.ChangeRole(context.Background(), adminActor, "c1", domain.RolePartner, "upgrade"); err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}

	detail, err := svc.GetUser(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if detail.User.ID != "c1" || len(detail.AuditHistory) != 1 || detail.AuditHistory[0].EventType != domain.EventRoleChange {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	audit.forUserErr = domain.ErrUnavailable
	detail, err = svc.GetUser(context.Background(), "c1")
	if err != nil || detail.AuditHistory != nil {
		t.Fatalf("expected user without history when audit is unavailable, got %+v err=%v", detail, err)
	}

	if _, err := svc.GetUser(context.Background(), "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Create and update
// ---------------------------------------------------------------------------

func TestCreateUser(t *testing.T) {
	users, audit := newStubUserRepo(), &recordingAudit{}
	svc := newAdminSvc(users, audit)
	system := domain.Identity{UserID: domain.SystemActor}

	u, err := svc.CreateUser(context.Background(), system, ports.CreateUserInput{
		Email: "Root@X.com", Password: "password123", DisplayName: "Root", Role: domain.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Email != "root@x.com" || u.Role != domain.RoleAdmin || u.Status != domain.StatusActive {
		t.Fatalf("unexpected user: %+v", u)
	}
	created := audit.ofType(domain.EventUserCreated)
	if len(created) != 1 || created[0].ActorID != domain.SystemActor || created[0].TargetID != u.ID {
		t.Fatalf("unexpected audit: %+v", created)
	}

	_, err = svc.CreateUser(context.Background(), system, ports.CreateUserInput{
		Email: "root@x.com", Password: "password123", DisplayName: "Again", Role: domain.RoleAdmin,
	})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	_, err = svc.CreateUser(context.Background(), system, ports.CreateUserInput{
		Email: "x@x.com", Password: "password123", DisplayName: "X", Role: "owner",
	})
	if !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	users, audit := newStubUserRepo(), &recordingAudit{}
	seedUser(users, "c1", "c@x.com", domain.RoleCustomer, domain.StatusActive)
	svc := newAdminSvc(users, audit)

	u, err := svc.UpdateUser(context.Background(), adminActor, "c1", "Renamed")
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.DisplayName != "Renamed" {
		t.Fatalf("name not updated: %+v", u)
	}

	// Unchanged name is a no-op.
	if _, err := svc.UpdateUser(context.Background(), adminActor, "c1", "Renamed"); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if n := len(audit.ofType(domain.EventUserUpdate)); n != 1 {
		t.Fatalf("expected one user_update audit, got %d", n)
	}
	if users.updates != 1 {
		t.Fatalf("expected one write, got %d", users.updates)
	}
}
