package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
	"github.com/gadgetcloud/gc-backend/internal/pkg/ids"
	"github.com/gadgetcloud/gc-backend/internal/pkg/metrics"
)

const (
	maxAuditLimit     = 100
	defaultAuditLimit = 50
)

type auditService struct {
	repo ports.AuditRepository
	sink ports.AuditSink
	now  func() time.Time
	log  zerolog.Logger
}

// NewAuditService returns an AuditService that writes through sink and reads
// from repo.
func NewAuditService(repo ports.AuditRepository, sink ports.AuditSink, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, sink: sink, now: time.Now, log: log}
}

func (s *auditService) Record(ctx context.Context, in ports.RecordInput) {
	ts := s.now().UTC()
	entry := domain.AuditLogEntry{
		ID:        ids.NewAt(ts),
		EventType: in.EventType,
		ActorID:   in.ActorID,
		TargetID:  in.TargetID,
		Reason:    in.Reason,
		Timestamp: ts,
		Metadata:  mergeMetadata(ctx, in.Metadata),
	}

	s.sink.Submit(entry)
	metrics.AuditEventsTotal.WithLabelValues(string(in.EventType)).Inc()

	s.log.Debug().
		Str("audit_id", entry.ID).
		Str("event_type", string(entry.EventType)).
		Str("actor_id", entry.ActorID).
		Str("target_id", entry.TargetID).
		Msg("audit event recorded")
}

func (s *auditService) Recent(ctx context.Context, limit int) ([]*domain.AuditLogEntry, error) {
	return s.find(ctx, ports.AuditFilter{}, limit)
}

func (s *auditService) ForUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLogEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return s.find(ctx, ports.AuditFilter{UserID: userID}, limit)
}

func (s *auditService) ForActor(ctx context.Context, actorID string, limit int) ([]*domain.AuditLogEntry, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", domain.ErrInvalidInput)
	}
	return s.find(ctx, ports.AuditFilter{ActorID: actorID}, limit)
}

func (s *auditService) find(ctx context.Context, f ports.AuditFilter, limit int) ([]*domain.AuditLogEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}
	f.Limit = min(limit, maxAuditLimit)

	entries, err := s.repo.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("find audit logs: %w", err)
	}
	return entries, nil
}

func (s *auditService) Query(ctx context.Context, q ports.AuditQuery) (*ports.AuditPage, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrInvalidInput)
	}
	if q.Limit == 0 {
		q.Limit = defaultAuditLimit
	}
	q.Limit = min(q.Limit, maxAuditLimit)

	filter := ports.AuditFilter{
		EventType: q.EventType,
		ActorID:   q.ActorID,
		TargetID:  q.TargetID,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}

	entries, err := s.repo.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	return &ports.AuditPage{
		Entries: entries,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
		HasMore: int64(q.Offset+len(entries)) < total,
	}, nil
}

func (s *auditService) Get(ctx context.Context, id string) (*domain.AuditLogEntry, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *auditService) Statistics(ctx context.Context) (*ports.AuditStatistics, error) {
	var stats ports.AuditStatistics
	counts := []struct {
		eventType domain.AuditEventType
		dst       *int64
	}{
		{"", &stats.Total},
		{domain.EventRoleChange, &stats.RoleChanges},
		{domain.EventDeactivation, &stats.Deactivations},
		{domain.EventReactivation, &stats.Reactivations},
		{domain.EventPermissionDenied, &stats.PermissionDenials},
	}
	for _, c := range counts {
		n, err := s.repo.Count(ctx, ports.AuditFilter{EventType: c.eventType})
		if err != nil {
			return nil, fmt.Errorf("audit statistics: %w", err)
		}
		*c.dst = n
	}
	return &stats, nil
}

// mergeMetadata copies md and adds the request attributes found on ctx.
// Caller-supplied keys win.
func mergeMetadata(ctx context.Context, md map[string]string) map[string]string {
	out := make(map[string]string, len(md)+3)
	if info, ok := domain.ClientInfoFromContext(ctx); ok {
		if info.IP != "" {
			out["ip"] = info.IP
		}
		if info.UserAgent != "" {
			out["user_agent"] = info.UserAgent
		}
		if info.RequestID != "" {
			out["request_id"] = info.RequestID
		}
	}
	for k, v := range md {
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
