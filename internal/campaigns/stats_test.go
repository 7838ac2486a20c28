package campaigns

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campfire-hq/backend/internal/models"
)

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      int
	}{
		{"no participants", 0, 0, 0},
		{"none completed", 0, 10, 0},
		{"one of three", 1, 3, 33},
		{"two of three", 2, 3, 67},
		{"half", 5, 10, 50},
		{"all", 4, 4, 100},
		{"negative total", 1, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompletionRate(tt.completed, tt.total))
		})
	}
}

func TestCampaignTypeFromRole(t *testing.T) {
	assert.Equal(t, models.CampaignTypeHR, campaignType(string(models.RoleAdmin)))
	assert.Equal(t, models.CampaignTypeTeamShare, campaignType(string(models.RoleManager)))
	assert.Equal(t, models.CampaignTypeTeamShare, campaignType(string(models.RoleMember)))
	assert.Equal(t, models.CampaignTypeTeamShare, campaignType(""))
}
