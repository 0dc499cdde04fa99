package model

import (
	"strings"
	"time"
)

const (
	RoleAdmin    = "ADMIN"
	RoleStudent  = "STUDENT"
	RoleOfficial = "OFFICIAL"
)

// User represents a user in the system
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`    // Do not expose password hash in JSON responses
	Name         *string   `json:"name"` // Optional, serialized as null when absent
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeRole maps a client-supplied role token to one of the canonical
// roles. Matching is case-insensitive; "ADMINISTRATOR" is an alias for
// OFFICIAL. Returns false for anything unrecognized, including the empty string.
func NormalizeRole(role string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleStudent:
		return RoleStudent, true
	case RoleOfficial, "ADMINISTRATOR":
		return RoleOfficial, true
	}
	return "", false
}

// MarkerTable returns the role-marker table name for a canonical role.
func MarkerTable(role string) (string, bool) {
	switch role {
	case RoleAdmin:
		return "admins", true
	case RoleStudent:
		return "students", true
	case RoleOfficial:
		return "officials", true
	}
	return "", false
}
