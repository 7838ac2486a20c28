package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents a customer company. It owns user profiles, invitations
// and campaigns, and optionally links to an organization at the identity
// provider.
type Tenant struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	LogoURL       string    `json:"logo_url,omitempty"`
	ExternalOrgID *string   `json:"external_org_id,omitempty"`
	Domains       []string  `json:"domains"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
