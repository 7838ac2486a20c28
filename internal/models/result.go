package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AssessmentResult is the durable record of one completed assessment.
// ShareID is the sole lookup key for the public share page. Payload columns
// are opaque JSON produced by the assessment tools.
type AssessmentResult struct {
	ID              uuid.UUID       `json:"id"`
	InvitationID    uuid.UUID       `json:"invitation_id"`
	ToolID          string          `json:"tool_id"`
	ToolName        string          `json:"tool_name,omitempty"`
	Responses       json.RawMessage `json:"responses"`
	Scores          json.RawMessage `json:"scores,omitempty"`
	Summary         json.RawMessage `json:"summary,omitempty"`
	Insights        json.RawMessage `json:"insights,omitempty"`
	Recommendations json.RawMessage `json:"recommendations,omitempty"`
	UserSnapshot    json.RawMessage `json:"user_snapshot,omitempty"`
	ShareID         string          `json:"share_id"`
	PDFKey          string          `json:"-"`
	PDFURL          string          `json:"pdf_url,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
