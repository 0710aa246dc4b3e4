package ports

import (
	"context"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
)

// AuditFilter narrows audit queries. Results are always newest first.
type AuditFilter struct {
	EventType domain.AuditEventType
	ActorID   string
	TargetID  string
	// UserID matches entries where the user is either actor or target.
	UserID string
	Limit  int
	Offset int
}

// AuditRepository is append-only storage for audit entries.
type AuditRepository interface {
	// Append writes entry. Appending an id that already exists is reported as
	// domain.ErrAuditLogExists so retries can treat it as success.
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
	FindByID(ctx context.Context, id string) (*domain.AuditLogEntry, error)
	Find(ctx context.Context, filter AuditFilter) ([]*domain.AuditLogEntry, error)
	Count(ctx context.Context, filter AuditFilter) (int64, error)
}

// AuditSink accepts fully built entries for asynchronous persistence.
// Submit must not block the caller on storage.
type AuditSink interface {
	Submit(entry domain.AuditLogEntry)
}

// RecordInput describes one audit event before an id and timestamp are assigned.
type RecordInput struct {
	EventType domain.AuditEventType
	ActorID   string
	TargetID  string
	Reason    string
	Metadata  map[string]string
}

// AuditQuery is the paged listing input for the admin surface.
type AuditQuery struct {
	EventType domain.AuditEventType
	ActorID   string
	TargetID  string
	Limit     int
	Offset    int
}

type AuditPage struct {
	Entries []*domain.AuditLogEntry
	Total   int64
	Limit   int
	Offset  int
	HasMore bool
}

type AuditStatistics struct {
	Total             int64
	RoleChanges       int64
	Deactivations     int64
	Reactivations     int64
	PermissionDenials int64
}

// AuditService records and reads the audit trail.
type AuditService interface {
	// Record never fails the caller; persistence problems are logged.
	Record(ctx context.Context, in RecordInput)
	Recent(ctx context.Context, limit int) ([]*domain.AuditLogEntry, error)
	ForUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLogEntry, error)
	ForActor(ctx context.Context, actorID string, limit int) ([]*domain.AuditLogEntry, error)
	Query(ctx context.Context, q AuditQuery) (*AuditPage, error)
	Get(ctx context.Context, id string) (*domain.AuditLogEntry, error)
	Statistics(ctx context.Context) (*AuditStatistics, error)
}
