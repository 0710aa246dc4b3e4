package domain

import "time"

// AuditEventType identifies the kind of security-relevant action recorded.
type AuditEventType string

const (
	EventSignup           AuditEventType = "signup"
	EventLoginSuccess     AuditEventType = "login_success"
	EventLoginFailure     AuditEventType = "login_failure"
	EventLogout           AuditEventType = "logout"
	EventPasswordChange   AuditEventType = "password_change"
	EventProfileUpdate    AuditEventType = "profile_update"
	EventUserCreated      AuditEventType = "user_created"
	EventUserUpdate       AuditEventType = "user_update"
	EventRoleChange       AuditEventType = "role_change"
	EventDeactivation     AuditEventType = "deactivation"
	EventReactivation     AuditEventType = "reactivation"
	EventPermissionDenied AuditEventType = "permission_denied"
)

// SystemActor is the actor id used for actions not performed by a user,
// such as bootstrap commands.
const SystemActor = "system"

// AuditLogEntry is an append-only record. Entries are never updated or
// deleted once written.
type AuditLogEntry struct {
	ID        string            `json:"id"`
	EventType AuditEventType    `json:"eventType"`
	ActorID   string            `json:"actorId"`
	TargetID  string            `json:"targetId"`
	Reason    string            `json:"reason,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
