package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for invitation and campaign email dispatch.
const (
	EmailTypeInvitation     = "invitation"
	EmailTypeResend         = "invitation_resend"
	EmailTypeCampaignLaunch = "campaign_launch"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records one attempted email dispatch for an invitation.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	InvitationID   *uuid.UUID `json:"invitation_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
