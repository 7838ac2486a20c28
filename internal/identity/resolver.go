package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/internal/models"
)

var (
	// ErrUnauthenticated means no verified identity was present on the request.
	ErrUnauthenticated = errors.New("identity: unauthenticated")
	// ErrNoEmail means the provider has no email for the identity; a profile
	// cannot be created without one.
	ErrNoEmail = errors.New("identity: provider user has no email")
)

// TenantDirectory is the slice of the tenant repository the resolver needs.
type TenantDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindByDomain(ctx context.Context, domain string) (*models.Tenant, error)
}

// OrgMembership adds users to provider organizations.
type OrgMembership interface {
	AddMember(ctx context.Context, orgID, externalUserID, role string) error
}

// UserSource fetches users from the identity provider.
type UserSource interface {
	GetUser(ctx context.Context, externalID string) (*ProviderUser, error)
}

// UserMetadata pushes platform attributes back to provider user records.
type UserMetadata interface {
	UpdateUserMetadata(ctx context.Context, externalUserID string, metadata map[string]string) error
}

// AssignOutcome describes the result of a domain-based tenant assignment.
type AssignOutcome string

const (
	AssignOutcomeAssigned     AssignOutcome = "assigned"
	AssignOutcomeManualNeeded AssignOutcome = "needs_manual_assignment"
)

// AssignResult is returned by AutoAssignTenantByEmailDomain.
type AssignResult struct {
	Outcome AssignOutcome  `json:"outcome"`
	Tenant  *models.Tenant `json:"tenant,omitempty"`
}

// Resolver maps an authenticated external identity to a profile and tenant.
type Resolver struct {
	repo    *Repository
	tenants TenantDirectory
	users   UserSource
	orgs    OrgMembership
	meta    UserMetadata
	logger  *zap.Logger
}

// NewResolver creates an identity resolver. users, orgs and meta may be nil
// when no identity provider is configured.
func NewResolver(repo *Repository, tenants TenantDirectory, users UserSource, orgs OrgMembership, meta UserMetadata, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{repo: repo, tenants: tenants, users: users, orgs: orgs, meta: meta, logger: logger}
}

// EmailDomain extracts the domain part of an email, prefixed with "@".
func EmailDomain(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", fmt.Errorf("no domain in email %q", email)
	}
	return "@" + strings.ToLower(email[at+1:]), nil
}

// ResolveCurrentUser returns the profile for the caller's external identity,
// creating it lazily from the provider's cached email and name. The external
// id comes from validated request context and is not re-verified here.
func (r *Resolver) ResolveCurrentUser(ctx context.Context, externalID string) (*models.UserProfile, error) {
	if externalID == "" {
		return nil, ErrUnauthenticated
	}
	profile, err := r.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile != nil {
		return profile, nil
	}
	if r.users == nil {
		return nil, fmt.Errorf("identity provider not configured, cannot create profile for %s", externalID)
	}

	pu, err := r.users.GetUser(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("fetch provider user: %w", err)
	}
	if pu.Email == "" {
		return nil, ErrNoEmail
	}

	// The invitee may already exist as an unclaimed profile from an earlier
	// invitation; claim it rather than inserting a duplicate email.
	profile = &models.UserProfile{
		ExternalID: &externalID,
		Email:      pu.Email,
		FirstName:  pu.FirstName,
		LastName:   pu.LastName,
	}
	if err := r.repo.ClaimByEmail(ctx, profile); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	r.logger.Info("profile created for identity", zap.String("external_id", externalID))
	return profile, nil
}

// ResolveTenantForUser fetches the profile's owning tenant. A nil result
// means "insufficient permissions", not an error.
func (r *Resolver) ResolveTenantForUser(ctx context.Context, profile *models.UserProfile) (*models.Tenant, error) {
	if profile == nil || profile.TenantID == nil {
		return nil, nil
	}
	return r.tenants.GetByID(ctx, *profile.TenantID)
}

// AutoAssignTenantByEmailDomain assigns the profile to the tenant claiming
// its email domain. Domain ownership is unique at write time, so the lookup
// is deterministic: zero matches means manual assignment is needed.
func (r *Resolver) AutoAssignTenantByEmailDomain(ctx context.Context, profile *models.UserProfile) (*AssignResult, error) {
	domain, err := EmailDomain(profile.Email)
	if err != nil {
		return nil, err
	}
	tenant, err := r.tenants.FindByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("find tenant by domain: %w", err)
	}
	if tenant == nil {
		return &AssignResult{Outcome: AssignOutcomeManualNeeded}, nil
	}

	if tenant.ExternalOrgID != nil && profile.ExternalID != nil && r.orgs != nil {
		if err := r.orgs.AddMember(ctx, *tenant.ExternalOrgID, *profile.ExternalID, string(models.RoleMember)); err != nil {
			return nil, fmt.Errorf("add org member: %w", err)
		}
	}
	if err := r.repo.UpdateTenant(ctx, profile.ID, tenant.ID); err != nil {
		return nil, fmt.Errorf("update profile tenant: %w", err)
	}
	profile.TenantID = &tenant.ID

	// Mirror the assignment onto the provider's user record; the local row is
	// authoritative, so a provider failure only warns.
	if r.meta != nil && profile.ExternalID != nil {
		md := map[string]string{"tenant_id": tenant.ID.String(), "tenant_name": tenant.Name}
		if err := r.meta.UpdateUserMetadata(ctx, *profile.ExternalID, md); err != nil {
			r.logger.Warn("push tenant metadata to provider failed", zap.Error(err),
				zap.String("external_id", *profile.ExternalID))
		}
	}
	return &AssignResult{Outcome: AssignOutcomeAssigned, Tenant: tenant}, nil
}
