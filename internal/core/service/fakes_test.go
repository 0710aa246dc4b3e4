package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.User
	findErr   error
	updateErr error
	updates   int

	beforeUpdate func()
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (r *stubUserRepo) seed(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = cloneUser(u)
	return u
}

func (r *stubUserRepo) get(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.byID[id])
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return domain.ErrUserExists
		}
	}
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// modify applies a field-level change to the stored copy, like the Mongo
// repository does. beforeUpdate runs first without the lock held so tests
// can interleave a competing write between a read and this update.
func (r *stubUserRepo) modify(id string, at time.Time, apply func(u *domain.User) error) error {
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if err := apply(u); err != nil {
		return err
	}
	u.Touch(at)
	r.updates++
	return nil
}

func (r *stubUserRepo) UpdateProfile(_ context.Context, id, name string, at time.Time) error {
	return r.modify(id, at, func(u *domain.User) error { u.DisplayName = name; return nil })
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	return r.modify(id, at, func(u *domain.User) error { u.PasswordHash = hash; return nil })
}

func (r *stubUserRepo) UpdateRole(_ context.Context, id string, from, to domain.Role, at time.Time) error {
	return r.modify(id, at, func(u *domain.User) error {
		if u.Role != from {
			return domain.ErrNoChange
		}
		u.Role = to
		return nil
	})
}

func (r *stubUserRepo) UpdateStatus(_ context.Context, id string, from, to domain.UserStatus, at time.Time) error {
	return r.modify(id, at, func(u *domain.User) error {
		if u.Status != from {
			return domain.ErrNoChange
		}
		u.Status = to
		return nil
	})
}

func (r *stubUserRepo) matching(f ports.UserFilter) []*domain.User {
	var out []*domain.User
	for _, u := range r.byID {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		if !f.CreatedAfter.IsZero() && u.CreatedAt.Before(f.CreatedAfter) {
			continue
		}
		if q := strings.ToLower(f.Search); q != "" &&
			!strings.Contains(u.Email, q) && !strings.Contains(strings.ToLower(u.DisplayName), q) {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *stubUserRepo) List(_ context.Context, f ports.UserFilter) ([]*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.matching(f)
	total := int64(len(all))
	if f.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r *stubUserRepo) Count(_ context.Context, f ports.UserFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(f))), nil
}

// ---------------------------------------------------------------------------
// Hashing
// ---------------------------------------------------------------------------

// fakeHasher prefixes instead of hashing. Digests without the prefix are
// treated as malformed.
type fakeHasher struct{}

func (fakeHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (fakeHasher) Verify(plain, digest string) (bool, error) {
	if !strings.HasPrefix(digest, "hashed:") {
		return false, domain.ErrInvalidHashFormat
	}
	return digest == "hashed:"+plain, nil
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

type recordingAudit struct {
	mu         sync.Mutex
	records    []ports.RecordInput
	forUserErr error
}

func (a *recordingAudit) Record(_ context.Context, in ports.RecordInput) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, in)
}

func (a *recordingAudit) ofType(t domain.AuditEventType) []ports.RecordInput {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []ports.RecordInput
	for _, r := range a.records {
		if r.EventType == t {
			out = append(out, r)
		}
	}
	return out
}

func (a *recordingAudit) Recent(context.Context, int) ([]*domain.AuditLogEntry, error) {
	return nil, nil
}

func (a *recordingAudit) ForUser(_ context.Context, userID string, limit int) ([]*domain.AuditLogEntry, error) {
	if a.forUserErr != nil {
		return nil, a.forUserErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*domain.AuditLogEntry
	for i := len(a.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := a.records[i]
		if r.ActorID == userID || r.TargetID == userID {
			out = append(out, &domain.AuditLogEntry{EventType: r.EventType, ActorID: r.ActorID, TargetID: r.TargetID, Reason: r.Reason})
		}
	}
	return out, nil
}

func (a *recordingAudit) ForActor(context.Context, string, int) ([]*domain.AuditLogEntry, error) {
	return nil, nil
}

func (a *recordingAudit) Query(context.Context, ports.AuditQuery) (*ports.AuditPage, error) {
	return &ports.AuditPage{}, nil
}

func (a *recordingAudit) Get(context.Context, string) (*domain.AuditLogEntry, error) {
	return nil, domain.ErrAuditLogNotFound
}

func (a *recordingAudit) Statistics(context.Context) (*ports.AuditStatistics, error) {
	return &ports.AuditStatistics{}, nil
}

// ---------------------------------------------------------------------------
// Throttle
// ---------------------------------------------------------------------------

type stubThrottle struct {
	allowed  bool
	err      error
	failures map[string]int
	resets   int
}

func newStubThrottle() *stubThrottle {
	return &stubThrottle{allowed: true, failures: make(map[string]int)}
}

func (t *stubThrottle) Allowed(context.Context, string) (bool, error) { return t.allowed, t.err }

func (t *stubThrottle) RecordFailure(_ context.Context, key string) error {
	t.failures[key]++
	return t.err
}

func (t *stubThrottle) Reset(_ context.Context, key string) error {
	delete(t.failures, key)
	t.resets++
	return t.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testNow = time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedUser(repo *stubUserRepo, id, email string, role domain.Role, status domain.UserStatus) *domain.User {
	return repo.seed(&domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: "hashed:password123",
		DisplayName:  strings.ToUpper(id),
		Role:         role,
		Status:       status,
		CreatedAt:    testNow.Add(-time.Hour),
		UpdatedAt:    testNow.Add(-time.Hour),
	})
}
