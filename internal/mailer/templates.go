package mailer

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/campfire-hq/backend/internal/models"
)

var invitationTmpl = template.Must(template.New("invitation").Parse(`
<div style="font-family:sans-serif;max-width:560px;margin:0 auto">
  <h2>You're invited to an assessment</h2>
  <p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
  <p>{{.TenantName}} has invited you to complete a leadership assessment on Campfire.</p>
  {{if .Message}}<blockquote style="border-left:3px solid #ddd;padding-left:12px;color:#555">{{.Message}}</blockquote>{{end}}
  <p><a href="{{.InviteURL}}" style="background:#e86c3a;color:#fff;padding:10px 20px;border-radius:6px;text-decoration:none">Start your assessment</a></p>
  <p style="color:#888;font-size:12px">Or copy this link: {{.InviteURL}}</p>
</div>`))

var campaignTmpl = template.Must(template.New("campaign").Parse(`
<div style="font-family:sans-serif;max-width:560px;margin:0 auto">
  <h2>{{.CampaignName}}</h2>
  <p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
  <p>{{.TenantName}} is running the "{{.CampaignName}}" campaign{{if .ToolName}} using the {{.ToolName}} assessment{{end}}.</p>
  <p><a href="{{.InviteURL}}" style="background:#e86c3a;color:#fff;padding:10px 20px;border-radius:6px;text-decoration:none">Take part</a></p>
  <p style="color:#888;font-size:12px">Or copy this link: {{.InviteURL}}</p>
</div>`))

type invitationData struct {
	Name       string
	TenantName string
	Message    string
	InviteURL  string
}

type campaignData struct {
	Name         string
	TenantName   string
	CampaignName string
	ToolName     string
	InviteURL    string
}

// RenderInvitation builds the subject and HTML body for an invitation email.
func RenderInvitation(inv *models.Invitation, tenantName string) (subject, html string, err error) {
	subject = fmt.Sprintf("%s invited you to a Campfire assessment", tenantName)
	var b strings.Builder
	err = invitationTmpl.Execute(&b, invitationData{
		Name:       inv.Name,
		TenantName: tenantName,
		Message:    inv.Message,
		InviteURL:  inv.InviteURL,
	})
	return subject, b.String(), err
}

// RenderCampaignInvitation builds the subject and HTML body for a campaign launch email.
func RenderCampaignInvitation(inv *models.Invitation, campaign *models.Campaign, tenantName string) (subject, html string, err error) {
	subject = fmt.Sprintf("%s: %s", tenantName, campaign.Name)
	var b strings.Builder
	err = campaignTmpl.Execute(&b, campaignData{
		Name:         inv.Name,
		TenantName:   tenantName,
		CampaignName: campaign.Name,
		ToolName:     campaign.ToolName,
		InviteURL:    inv.InviteURL,
	})
	return subject, b.String(), err
}
