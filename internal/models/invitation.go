package models

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus is the lifecycle state of a single invitee.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "PENDING"
	InvitationSent      InvitationStatus = "SENT"
	InvitationOpened    InvitationStatus = "OPENED"
	InvitationStarted   InvitationStatus = "STARTED"
	InvitationCompleted InvitationStatus = "COMPLETED"
)

// statusRank orders statuses for the forward-only transition check.
var statusRank = map[InvitationStatus]int{
	InvitationPending:   0,
	InvitationSent:      1,
	InvitationOpened:    2,
	InvitationStarted:   3,
	InvitationCompleted: 4,
}

// Rank returns the position of s in the lifecycle order, or -1 for an
// unknown status.
func (s InvitationStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Invitation is one invitee's record and unique access token for an
// assessment flow. InviteCode is the only lookup key available to
// unauthenticated callers.
type Invitation struct {
	ID           uuid.UUID        `json:"id"`
	TenantID     uuid.UUID        `json:"tenant_id"`
	CampaignID   *uuid.UUID       `json:"campaign_id,omitempty"`
	Email        string           `json:"email"`
	Name         string           `json:"name,omitempty"`
	InviteCode   string           `json:"invite_code"`
	InviteURL    string           `json:"invite_url"`
	Status       InvitationStatus `json:"status"`
	Message      string           `json:"message,omitempty"`
	CurrentStage string           `json:"current_stage,omitempty"`
	SentAt       *time.Time       `json:"sent_at,omitempty"`
	OpenedAt     *time.Time       `json:"opened_at,omitempty"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	ResentAt     *time.Time       `json:"resent_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// InvitationMetadata is the optional one-to-one extension of an invitation.
// GenericLink marks the anchor invitation created alongside a campaign, whose
// invite code equals the campaign code.
type InvitationMetadata struct {
	InvitationID  uuid.UUID `json:"invitation_id"`
	Role          string    `json:"role,omitempty"`
	Challenges    []string  `json:"challenges,omitempty"`
	ToolsAccessed []string  `json:"tools_accessed,omitempty"`
	GenericLink   bool      `json:"generic_link"`
	UpdatedAt     time.Time `json:"updated_at"`
}
