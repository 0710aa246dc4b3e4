package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Auth ---

type signupRequest struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password"`
	Name     string `json:"name"     validate:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	Name *string `json:"name" validate:"required,max=100"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type authResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

// --- Admin users ---

type listUsersRequest struct {
	Role      string `query:"role"       validate:"omitempty,oneof=customer partner support admin"`
	Status    string `query:"status"     validate:"omitempty,oneof=active inactive"`
	Search    string `query:"search"     validate:"max=100"`
	SortBy    string `query:"sort_by"    validate:"omitempty,oneof=createdAt email role status"`
	SortOrder string `query:"sort_order" validate:"omitempty,oneof=asc desc"`
	Limit     int    `query:"limit"      validate:"min=0,max=100"`
	Offset    int    `query:"offset"     validate:"min=0"`
}

type updateUserRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type changeRoleRequest struct {
	NewRole string `json:"newRole" validate:"required"`
	Reason  string `json:"reason"  validate:"required,max=500"`
}

type statusChangeRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type userListResponse struct {
	Users   []userResponse `json:"users"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"hasMore"`
}

type userStatisticsResponse struct {
	Total         int64            `json:"total"`
	ByRole        map[string]int64 `json:"byRole"`
	ByStatus      map[string]int64 `json:"byStatus"`
	RecentSignups int64            `json:"recentSignups"`
}

type userDetailResponse struct {
	userResponse
	AuditHistory []auditLogResponse `json:"auditHistory"`
}

// --- Admin audit logs ---

type auditQueryRequest struct {
	EventType string `query:"event_type"`
	ActorID   string `query:"actor_id"`
	TargetID  string `query:"target_id"`
	Limit     int    `query:"limit"  validate:"min=0,max=100"`
	Offset    int    `query:"offset" validate:"min=0"`
}

type auditLogResponse struct {
	ID        string            `json:"id"`
	EventType string            `json:"eventType"`
	ActorID   string            `json:"actorId"`
	TargetID  string            `json:"targetId"`
	Reason    string            `json:"reason,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type auditPageResponse struct {
	Logs    []auditLogResponse `json:"logs"`
	Total   int64              `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	HasMore bool               `json:"hasMore"`
}

type auditListResponse struct {
	Logs  []auditLogResponse `json:"logs"`
	Count int                `json:"count"`
}

type auditStatisticsResponse struct {
	Total             int64 `json:"total"`
	RoleChanges       int64 `json:"roleChanges"`
	Deactivations     int64 `json:"deactivations"`
	Reactivations     int64 `json:"reactivations"`
	PermissionDenials int64 `json:"permissionDenials"`
}
