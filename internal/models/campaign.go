package models

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus for the campaign lifecycle.
type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "ACTIVE"
	CampaignCompleted CampaignStatus = "COMPLETED"
)

// CampaignType partitions reporting views by who created the campaign.
const (
	CampaignTypeHR        = "HR_CAMPAIGN"
	CampaignTypeTeamShare = "TEAM_SHARE"
)

// Campaign is a named batch of invitations sharing a tool and an access code.
type Campaign struct {
	ID           uuid.UUID      `json:"id"`
	TenantID     uuid.UUID      `json:"tenant_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Status       CampaignStatus `json:"status"`
	Type         string         `json:"type"`
	ToolID       string         `json:"tool_id,omitempty"`
	ToolName     string         `json:"tool_name,omitempty"`
	ToolPath     string         `json:"tool_path,omitempty"`
	Code         string         `json:"code"`
	Link         string         `json:"link,omitempty"`
	CreatorID    string         `json:"creator_id"`
	StartDate    *time.Time     `json:"start_date,omitempty"`
	EndDate      *time.Time     `json:"end_date,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CampaignParticipant links one email to a campaign. Unique per
// campaign+email so concurrent registrations cannot duplicate an entry.
type CampaignParticipant struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	Email      string    `json:"email"`
	JoinedAt   time.Time `json:"joined_at"`
}

// CampaignStats is the derived participation view for one campaign.
type CampaignStats struct {
	Total          int `json:"total"`
	Sent           int `json:"sent"`
	Completed      int `json:"completed"`
	CompletionRate int `json:"completion_rate"`
}
