package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrNotFound means the provider has no record for the given id.
	ErrNotFound = errors.New("identity: not found")
)

// ProviderUser is the provider's view of a user. The platform treats it as
// the source of truth for (external id, email, name).
type ProviderUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type providerOrg struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type providerError struct {
	Message string `json:"message"`
}

// Client talks to the external identity provider's management API.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates an identity provider client.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(apiKey)
	return &Client{http: httpClient, logger: logger}
}

// GetUser fetches a user by external id.
func (c *Client) GetUser(ctx context.Context, externalID string) (*ProviderUser, error) {
	var user ProviderUser
	var apiErr providerError
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&user).
		SetError(&apiErr).
		Get("/users/" + externalID)
	if err != nil {
		return nil, fmt.Errorf("identity get user: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("identity get user: status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return &user, nil
}

// CreateOrganization creates an organization at the provider and returns its id.
func (c *Client) CreateOrganization(ctx context.Context, name string) (string, error) {
	var org providerOrg
	var apiErr providerError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": name}).
		SetResult(&org).
		SetError(&apiErr).
		Post("/organizations")
	if err != nil {
		return "", fmt.Errorf("identity create org: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("identity create org: status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return org.ID, nil
}

// DeleteOrganization removes an organization at the provider. An organization
// that is already absent is not an error.
func (c *Client) DeleteOrganization(ctx context.Context, orgID string) error {
	var apiErr providerError
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Delete("/organizations/" + orgID)
	if err != nil {
		return fmt.Errorf("identity delete org: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	if resp.IsError() {
		return fmt.Errorf("identity delete org: status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return nil
}

// AddMember adds a user to an organization with a role.
func (c *Client) AddMember(ctx context.Context, orgID, externalUserID, role string) error {
	var apiErr providerError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"user_id": externalUserID, "role": role}).
		SetError(&apiErr).
		Post("/organizations/" + orgID + "/memberships")
	if err != nil {
		return fmt.Errorf("identity add member: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("identity add member: status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return nil
}

// UpdateUserMetadata writes platform metadata back to the provider's user record.
func (c *Client) UpdateUserMetadata(ctx context.Context, externalUserID string, metadata map[string]string) error {
	var apiErr providerError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"metadata": metadata}).
		SetError(&apiErr).
		Patch("/users/" + externalUserID)
	if err != nil {
		return fmt.Errorf("identity update metadata: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("identity update metadata: status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return nil
}
