// Package usage resolves the set of services an account actually pays for,
// by querying a cost/usage API over a trailing window. The resulting profile
// grounds the relevance classifier; it is advisory context, not a hard filter.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rowanlabs/cloudbrief/internal/backoff"
	"github.com/rowanlabs/cloudbrief/internal/models"
)

const httpTimeout = 30 * time.Second

// Scope selects which accounts the usage query covers.
type Scope string

const (
	// ScopeAccount queries the current account only.
	ScopeAccount Scope = "account"
	// ScopeConsolidated queries all accounts under a consolidated
	// billing group.
	ScopeConsolidated Scope = "consolidated"
)

// Resolver produces a usage profile for an account scope.
type Resolver interface {
	Resolve(ctx context.Context, windowDays int, scope Scope) (*models.UsageProfile, error)
}

// defaultServices are services almost certainly in use but that rarely show
// up as cost-incurring in billing data. They are merged into every profile.
// The list is not exhaustive.
var defaultServices = []string{
	"Amazon VPC",
	"AWS CloudFormation",
	"AWS Identity Management",
	"AWS Single Sign-On",
	"AWS STS",
	"AWS Organizations",
	"AWS Billing",
	"AWS Cost Management",
	"AWS Management Console",
	"AWS Artifact",
	"AWS Tag Editor",
	"AWS Resource Access Manager",
}

// Client resolves usage profiles from a cost aggregation HTTP API.
type Client struct {
	endpoint string
	apiToken string
	client   *http.Client
	retry    backoff.Policy
}

// Compile-time interface check.
var _ Resolver = (*Client)(nil)

// NewClient creates a usage client for the given API endpoint. The token is
// sent as a bearer credential on every request.
func NewClient(endpoint, apiToken string) *Client {
	return &Client{
		endpoint: endpoint,
		apiToken: apiToken,
		client:   &http.Client{Timeout: httpTimeout},
		retry:    backoff.Default,
	}
}

// costResponse is the JSON body returned by the cost API: cost aggregated by
// service dimension for the requested date range.
type costResponse struct {
	Results []struct {
		Service string  `json:"service"`
		Amount  float64 `json:"amount"`
	} `json:"results"`
}

// Resolve queries the cost API for services with any spend in the trailing
// window and merges in the default services. A service with zero usage in
// the window is simply absent, not an error. Throttling and transient
// network failures are retried with backoff; auth failures return a
// FatalError immediately.
func (c *Client) Resolve(ctx context.Context, windowDays int, scope Scope) (*models.UsageProfile, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -windowDays)

	q := url.Values{}
	q.Set("start", start.Format("2006-01-02"))
	q.Set("end", now.Format("2006-01-02"))
	q.Set("group_by", "service")
	q.Set("scope", string(scope))

	reqURL := c.endpoint + "/v1/costs?" + q.Encode()
	slog.Debug("querying usage source", "url", c.endpoint, "window_days", windowDays, "scope", scope)

	var resp costResponse
	err := c.retry.Do(ctx, func() error {
		return c.fetchCosts(ctx, reqURL, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("resolving usage profile: %w", err)
	}

	services := make([]string, 0, len(resp.Results)+len(defaultServices))
	for _, r := range resp.Results {
		if r.Service == "" {
			continue
		}
		services = append(services, r.Service)
	}
	billed := len(services)
	services = append(services, defaultServices...)

	profile := models.NewUsageProfile(services)
	slog.Info("resolved usage profile",
		"billed_services", billed,
		"total_services", profile.Len(),
	)
	return profile, nil
}

// fetchCosts performs one request against the cost API, classifying failures
// as retryable (throttling, server errors, network) or fatal (auth).
func (c *Client) fetchCosts(ctx context.Context, reqURL string, out *costResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return backoff.Retryable(fmt.Errorf("querying cost API: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return backoff.Retryable(fmt.Errorf("reading cost API response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &FatalError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", truncateBody(body)),
		}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		slog.Warn("usage source throttled or unavailable", "status", resp.StatusCode)
		return backoff.Retryable(fmt.Errorf("cost API returned %d: %s", resp.StatusCode, truncateBody(body)))
	default:
		return fmt.Errorf("cost API returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing cost API response: %w", err)
	}
	return nil
}

// truncateBody limits an error body to a loggable size.
func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
