package invitations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfire-hq/backend/internal/models"
)

func TestNextStatusForwardOnly(t *testing.T) {
	tests := []struct {
		name        string
		current     models.InvitationStatus
		event       Event
		want        models.InvitationStatus
		wantChanged bool
	}{
		{"pending opened", models.InvitationPending, EventOpened, models.InvitationOpened, true},
		{"sent opened", models.InvitationSent, EventOpened, models.InvitationOpened, true},
		{"opened started", models.InvitationOpened, EventStarted, models.InvitationStarted, true},
		{"started completed", models.InvitationStarted, EventCompleted, models.InvitationCompleted, true},
		{"pending completed skips ahead", models.InvitationPending, EventCompleted, models.InvitationCompleted, true},
		{"opened replayed", models.InvitationOpened, EventOpened, models.InvitationOpened, false},
		{"started opened is backward", models.InvitationStarted, EventOpened, models.InvitationStarted, false},
		{"completed opened is backward", models.InvitationCompleted, EventOpened, models.InvitationCompleted, false},
		{"completed started is backward", models.InvitationCompleted, EventStarted, models.InvitationCompleted, false},
		{"completed replayed", models.InvitationCompleted, EventCompleted, models.InvitationCompleted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := NextStatus(tt.current, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestNextStatusUnknownEvent(t *testing.T) {
	got, changed, err := NextStatus(models.InvitationSent, Event("abandoned"))
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.InvitationSent, got)
}

func TestStatusRankOrdering(t *testing.T) {
	order := []models.InvitationStatus{
		models.InvitationPending,
		models.InvitationSent,
		models.InvitationOpened,
		models.InvitationStarted,
		models.InvitationCompleted,
	}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i].Rank(), order[i-1].Rank(), "%s must outrank %s", order[i], order[i-1])
	}
	assert.Equal(t, -1, models.InvitationStatus("BOGUS").Rank())
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateCode(CodeLength)
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch), "unexpected character %q", ch)
		}
		seen[code] = true
	}
	// 100 draws from a 31^8 space should never collide.
	assert.Len(t, seen, 100)
}

func TestInviteURL(t *testing.T) {
	assert.Equal(t, "https://app.example.com/assess/ABC23456", InviteURL("https://app.example.com", "ABC23456"))
	assert.Equal(t, "https://app.example.com/assess/ABC23456", InviteURL("https://app.example.com/", "ABC23456"))
}
