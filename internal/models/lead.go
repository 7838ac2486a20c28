package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Lead is a pre-invitation marketing capture from a public form.
type Lead struct {
	ID        uuid.UUID       `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name,omitempty"`
	Source    string          `json:"source"`
	ToolID    string          `json:"tool_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
