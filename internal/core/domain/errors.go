package domain

import "errors"

// Authentication.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrTooManyAttempts    = errors.New("too many failed login attempts, try again later")
	ErrWeakPassword       = errors.New("password does not meet the minimum policy")
	ErrInvalidHashFormat  = errors.New("stored password hash is malformed")
)

// Token verification. All three surface as ErrUnauthenticated at the edge.
var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token has expired")
)

// Authorization and administration.
var (
	ErrForbidden        = errors.New("access forbidden")
	ErrSelfModification = errors.New("administrators cannot change their own role or status")
	ErrNoChange         = errors.New("requested change is already in effect")
	ErrReasonRequired   = errors.New("a reason is required")
	ErrInvalidRole      = errors.New("unknown role")
)

// Persistence.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("a user with this email already exists")
	ErrAuditLogNotFound = errors.New("audit log entry not found")
	ErrAuditLogExists   = errors.New("audit log entry already written")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnavailable      = errors.New("service temporarily unavailable")
)
