package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfire-hq/backend/config"
	"github.com/campfire-hq/backend/internal/models"
)

func testConfig() config.EmailConfig {
	return config.EmailConfig{
		FromAddress: "noreply@campfire.dev",
		FromName:    "Campfire",
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		SMTPUser:    "mailer",
		SMTPPass:    "secret",
	}
}

func TestSendDeliversMIMEMessage(t *testing.T) {
	m := New(testConfig(), nil, nil)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	inv := &models.Invitation{Email: "jo@acme.com", Name: "Jo", InviteURL: "https://app.campfire.dev/assess/ABC23456"}
	err := m.Send(context.Background(), inv, models.EmailTypeInvitation, inv.Email, "Your assessment", "<p>hello</p>")
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@campfire.dev", gotFrom)
	assert.Equal(t, []string{"jo@acme.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Your assessment\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/html")
	assert.Contains(t, gotMsg, "<p>hello</p>")
}

func TestSendReportsDeliveryError(t *testing.T) {
	m := New(testConfig(), nil, nil)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	inv := &models.Invitation{Email: "jo@acme.com"}
	err := m.Send(context.Background(), inv, models.EmailTypeInvitation, inv.Email, "s", "b")
	assert.ErrorContains(t, err, "connection refused")
}

func TestSendNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.SMTPHost = ""
	m := New(cfg, nil, nil)

	err := m.Send(context.Background(), nil, models.EmailTypeInvitation, "jo@acme.com", "s", "b")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRenderInvitation(t *testing.T) {
	inv := &models.Invitation{
		Name:      "Jo",
		Email:     "jo@acme.com",
		Message:   "Looking forward to your results",
		InviteURL: "https://app.campfire.dev/assess/ABC23456",
	}
	subject, html, err := RenderInvitation(inv, "Acme Corp")
	require.NoError(t, err)
	assert.Contains(t, subject, "Acme Corp")
	assert.Contains(t, html, "Hi Jo")
	assert.Contains(t, html, inv.InviteURL)
	assert.Contains(t, html, "Looking forward to your results")
}

func TestRenderInvitationWithoutName(t *testing.T) {
	inv := &models.Invitation{Email: "jo@acme.com", InviteURL: "https://x/assess/Y"}
	_, html, err := RenderInvitation(inv, "Acme Corp")
	require.NoError(t, err)
	assert.Contains(t, html, "Hi there")
}

func TestRenderCampaignInvitation(t *testing.T) {
	inv := &models.Invitation{Name: "Jo", InviteURL: "https://x/assess/Y"}
	cp := &models.Campaign{Name: "Q3 Leadership Pulse", ToolName: "Fire Starter"}
	subject, html, err := RenderCampaignInvitation(inv, cp, "Acme Corp")
	require.NoError(t, err)
	assert.Contains(t, subject, "Q3 Leadership Pulse")
	assert.Contains(t, html, "Fire Starter")
	assert.Contains(t, html, inv.InviteURL)
}

func TestRenderEscapesHTML(t *testing.T) {
	inv := &models.Invitation{
		Name:      "<script>alert(1)</script>",
		InviteURL: "https://x/assess/Y",
	}
	_, html, err := RenderInvitation(inv, "Acme")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.True(t, strings.Contains(html, "&lt;script&gt;"))
}
