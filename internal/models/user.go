package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role in the platform, sourced from the identity
// provider's organization membership.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// UserProfile is the internal record for an authenticated principal.
// ExternalID is the identity provider's user id; it stays nil until the
// profile is claimed on first authenticated fetch.
type UserProfile struct {
	ID                 uuid.UUID  `json:"id"`
	ExternalID         *string    `json:"external_id,omitempty"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name,omitempty"`
	LastName           string     `json:"last_name,omitempty"`
	Role               string     `json:"role,omitempty"`
	Department         string     `json:"department,omitempty"`
	OnboardingComplete bool       `json:"onboarding_complete"`
	TenantID           *uuid.UUID `json:"tenant_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
