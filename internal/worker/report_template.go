package worker

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strings"

	"github.com/campfire-hq/backend/internal/models"
)

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: 'Helvetica Neue', Arial, sans-serif; color: #2d2a26; margin: 40px; }
  h1 { color: #e86c3a; border-bottom: 2px solid #e86c3a; padding-bottom: 8px; }
  h2 { margin-top: 32px; }
  .meta { color: #888; font-size: 13px; }
  pre { background: #f7f5f2; padding: 16px; border-radius: 6px; white-space: pre-wrap; font-size: 13px; }
</style>
</head>
<body>
  <h1>{{if .ToolName}}{{.ToolName}}{{else}}Assessment Report{{end}}</h1>
  <p class="meta">Generated {{.GeneratedAt}} · Report {{.ShareID}}</p>
  {{if .Summary}}<h2>Summary</h2><pre>{{.Summary}}</pre>{{end}}
  {{if .Scores}}<h2>Scores</h2><pre>{{.Scores}}</pre>{{end}}
  {{if .Insights}}<h2>Insights</h2><pre>{{.Insights}}</pre>{{end}}
  {{if .Recommendations}}<h2>Recommendations</h2><pre>{{.Recommendations}}</pre>{{end}}
</body>
</html>`))

type reportData struct {
	ToolName        string
	ShareID         string
	GeneratedAt     string
	Summary         string
	Scores          string
	Insights        string
	Recommendations string
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// RenderReportHTML builds the HTML document sent to the PDF renderer.
func RenderReportHTML(res *models.AssessmentResult) (string, error) {
	var b strings.Builder
	err := reportTmpl.Execute(&b, reportData{
		ToolName:        res.ToolName,
		ShareID:         res.ShareID,
		GeneratedAt:     res.CreatedAt.Format("January 2, 2006"),
		Summary:         prettyJSON(res.Summary),
		Scores:          prettyJSON(res.Scores),
		Insights:        prettyJSON(res.Insights),
		Recommendations: prettyJSON(res.Recommendations),
	})
	return b.String(), err
}
