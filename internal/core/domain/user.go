package domain

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleCustomer Role = "customer"
	RolePartner  Role = "partner"
	RoleSupport  Role = "support"
	RoleAdmin    Role = "admin"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleCustomer, RolePartner, RoleSupport, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RolePartner, RoleSupport, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the closed set of account states.
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

// Statuses lists every known status.
var Statuses = []UserStatus{StatusActive, StatusInactive}

func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive:
		return true
	}
	return false
}

// User models an account. PasswordHash never leaves the process.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"name"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// Touch advances UpdatedAt to now without ever moving it backwards.
func (u *User) Touch(now time.Time) {
	now = now.UTC()
	if now.After(u.UpdatedAt) {
		u.UpdatedAt = now
	}
}

// NormalizeEmail returns the canonical form used as the login key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
