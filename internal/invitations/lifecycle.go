package invitations

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/campfire-hq/backend/internal/models"
)

// Event is a tracking event reported by the assessment front-end.
type Event string

const (
	EventOpened    Event = "opened"
	EventStarted   Event = "started"
	EventCompleted Event = "completed"
)

// CodeLength is the invite and campaign code length.
const CodeLength = 8

// codeAlphabet omits ambiguous characters (0/O, 1/I/l).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateCode returns a random code of n characters.
func GenerateCode(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range b {
		sb.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
	}
	return sb.String(), nil
}

// InviteURL builds the public assessment link for an invite code.
func InviteURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/assess/" + code
}

// TargetStatus maps a tracking event to the status it requests.
func TargetStatus(e Event) (models.InvitationStatus, error) {
	switch e {
	case EventOpened:
		return models.InvitationOpened, nil
	case EventStarted:
		return models.InvitationStarted, nil
	case EventCompleted:
		return models.InvitationCompleted, nil
	default:
		return "", fmt.Errorf("unknown event %q", e)
	}
}

// NextStatus applies the forward-only transition rule: an event advances the
// status only when its target ranks later in the lifecycle order. Backward
// and duplicate events are no-ops, so a stale or replayed tracking call can
// never regress an invitation.
func NextStatus(current models.InvitationStatus, e Event) (models.InvitationStatus, bool, error) {
	target, err := TargetStatus(e)
	if err != nil {
		return current, false, err
	}
	if target.Rank() <= current.Rank() {
		return current, false, nil
	}
	return target, true, nil
}
