package handler

import (
	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

// Response types are owned by the transport layer so the JSON contract does
// not follow internal type changes. The password hash is never mapped.

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.DisplayName,
		Role:      string(u.Role),
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
}

func toAuthResponse(r *ports.AuthResult) authResponse {
	return authResponse{
		AccessToken: r.Token,
		TokenType:   "bearer",
		ExpiresAt:   r.ExpiresAt.UTC(),
		User:        toUserResponse(r.User),
	}
}

func toUserListResponse(p *ports.UserPage) userListResponse {
	users := make([]userResponse, len(p.Users))
	for i, u := range p.Users {
		users[i] = toUserResponse(u)
	}
	return userListResponse{
		Users:   users,
		Total:   p.Total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasMore,
	}
}

func toUserStatisticsResponse(s *ports.UserStatistics) userStatisticsResponse {
	byRole := make(map[string]int64, len(domain.Roles))
	for _, r := range domain.Roles {
		byRole[string(r)] = s.ByRole[r]
	}
	byStatus := make(map[string]int64, len(domain.Statuses))
	for _, st := range domain.Statuses {
		byStatus[string(st)] = s.ByStatus[st]
	}
	return userStatisticsResponse{
		Total:         s.Total,
		ByRole:        byRole,
		ByStatus:      byStatus,
		RecentSignups: s.RecentSignups,
	}
}

func toAuditLogResponse(e *domain.AuditLogEntry) auditLogResponse {
	return auditLogResponse{
		ID:        e.ID,
		EventType: string(e.EventType),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Reason:    e.Reason,
		Timestamp: e.Timestamp.UTC(),
		Metadata:  e.Metadata,
	}
}

func toAuditLogResponses(entries []*domain.AuditLogEntry) []auditLogResponse {
	out := make([]auditLogResponse, len(entries))
	for i, e := range entries {
		out[i] = toAuditLogResponse(e)
	}
	return out
}

func toAuditListResponse(entries []*domain.AuditLogEntry) auditListResponse {
	return auditListResponse{Logs: toAuditLogResponses(entries), Count: len(entries)}
}
