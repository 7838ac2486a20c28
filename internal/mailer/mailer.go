package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campfire-hq/backend/config"
	"github.com/campfire-hq/backend/internal/emaillogs"
	"github.com/campfire-hq/backend/internal/models"
)

// ErrNotConfigured means SMTP settings are missing; sends fail fast.
var ErrNotConfigured = errors.New("mailer: smtp not configured")

// Mailer dispatches transactional email over SMTP and records every attempt
// in email_logs. Failures are reported to the caller and never retried here.
type Mailer struct {
	cfg    config.EmailConfig
	logs   *emaillogs.Repository
	logger *zap.Logger

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a mailer.
func New(cfg config.EmailConfig, logs *emaillogs.Repository, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logs: logs, logger: logger, send: smtp.SendMail}
}

// Send delivers one HTML email and records the attempt. The returned error
// reflects delivery only; logging failures are logged and swallowed.
func (m *Mailer) Send(ctx context.Context, inv *models.Invitation, emailType, to, subject, html string) error {
	sendErr := m.deliver(to, subject, html)

	log := &models.EmailLog{
		EmailType:      emailType,
		RecipientEmail: to,
		Subject:        subject,
	}
	if inv != nil {
		log.InvitationID = &inv.ID
	}
	if sendErr != nil {
		log.Status = models.EmailLogStatusFailed
		log.ErrorMessage = sendErr.Error()
	} else {
		now := time.Now()
		log.Status = models.EmailLogStatusSent
		log.SentAt = &now
	}
	if m.logs != nil {
		if err := m.logs.Record(ctx, log); err != nil {
			m.logger.Error("record email log failed", zap.Error(err), zap.String("recipient", to))
		}
	}
	return sendErr
}

func (m *Mailer) deliver(to, subject, html string) error {
	if m.cfg.SMTPHost == "" {
		return ErrNotConfigured
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}

	from := m.cfg.FromAddress
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", m.cfg.FromName, from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)

	if err := m.send(addr, auth, from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// SendInvitation delivers the invitation email for an invitation.
func (m *Mailer) SendInvitation(ctx context.Context, inv *models.Invitation, tenantName string) error {
	subject, html, err := RenderInvitation(inv, tenantName)
	if err != nil {
		return err
	}
	return m.Send(ctx, inv, models.EmailTypeInvitation, inv.Email, subject, html)
}

// SendInvitationResend delivers the resend variant.
func (m *Mailer) SendInvitationResend(ctx context.Context, inv *models.Invitation, tenantName string) error {
	subject, html, err := RenderInvitation(inv, tenantName)
	if err != nil {
		return err
	}
	return m.Send(ctx, inv, models.EmailTypeResend, inv.Email, subject, html)
}

// SendCampaignInvitation delivers a campaign launch email for one participant.
func (m *Mailer) SendCampaignInvitation(ctx context.Context, inv *models.Invitation, campaign *models.Campaign, tenantName string) error {
	subject, html, err := RenderCampaignInvitation(inv, campaign, tenantName)
	if err != nil {
		return err
	}
	return m.Send(ctx, inv, models.EmailTypeCampaignLaunch, inv.Email, subject, html)
}
