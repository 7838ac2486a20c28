package worker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfire-hq/backend/internal/models"
)

func TestRenderReportHTML(t *testing.T) {
	res := &models.AssessmentResult{
		ToolName:  "Fire Starter",
		ShareID:   "ABCDEF234567",
		Summary:   json.RawMessage(`{"headline":"Strong communicator"}`),
		Scores:    json.RawMessage(`{"clarity":82}`),
		CreatedAt: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	html, err := RenderReportHTML(res)
	require.NoError(t, err)
	assert.Contains(t, html, "Fire Starter")
	assert.Contains(t, html, "ABCDEF234567")
	assert.Contains(t, html, "March 14, 2026")
	assert.Contains(t, html, "Strong communicator")
	assert.Contains(t, html, "clarity")
}

func TestRenderReportHTMLMinimal(t *testing.T) {
	res := &models.AssessmentResult{ShareID: "X", CreatedAt: time.Now()}
	html, err := RenderReportHTML(res)
	require.NoError(t, err)
	assert.Contains(t, html, "Assessment Report")
	assert.NotContains(t, html, "<h2>Scores</h2>")
}

func TestPrettyJSONInvalidFallsBack(t *testing.T) {
	assert.Equal(t, "not json", prettyJSON(json.RawMessage("not json")))
	assert.Equal(t, "", prettyJSON(nil))
}
