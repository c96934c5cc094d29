// Package client is a small Go client for the Aegis console API, built
// around the provisioning polling contract: create a tenant, then poll
// its status with a local give-up timeout until it is active or failed.
// Polling is a pure read; giving up locally never mutates server state.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// FallbackFailedReason is shown when a failed tenant carries no reason text.
const FallbackFailedReason = "provisioning failed after multiple attempts"

// Sentinel errors returned by the client.
var (
	ErrNotFound    = errors.New("tenant not found")
	ErrWaitTimeout = errors.New("timed out waiting for provisioning")
)

// ResourceLimits bounds the compute resources of a tenant environment.
type ResourceLimits struct {
	CPUCores int `json:"cpuCores"`
	MemoryMB int `json:"memoryMb"`
	DiskGB   int `json:"diskGb"`
}

// Provisioning is the progress view of an in-flight or failed run.
type Provisioning struct {
	Step          string `json:"step"`
	Progress      int    `json:"progress"`
	Message       string `json:"message"`
	AttemptNumber int    `json:"attemptNumber"`
	StartedAt     string `json:"startedAt"`
	FailedReason  string `json:"failedReason,omitempty"`
}

// Tenant is the API representation of a tenant. Provisioning is nil once
// the tenant is active.
type Tenant struct {
	ID                string         `json:"id"`
	CompanyName       string         `json:"companyName"`
	Slug              string         `json:"slug"`
	AdminEmail        string         `json:"adminEmail"`
	Plan              string         `json:"plan"`
	Status            string         `json:"status"`
	ResourceLimits    ResourceLimits `json:"resourceLimits"`
	ContainerEndpoint string         `json:"containerEndpoint,omitempty"`
	Provisioning      *Provisioning  `json:"provisioning,omitempty"`
}

// FailedError reports a terminal provisioning failure observed while
// polling. Reason is never empty.
type FailedError struct {
	TenantID string
	Reason   string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("provisioning failed for tenant %q: %s", e.TenantID, e.Reason)
}

// Client calls the Aegis console API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the API served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateTenant creates a tenant and starts its provisioning run.
func (c *Client) CreateTenant(ctx context.Context, companyName, adminEmail, plan string, limits ResourceLimits) (Tenant, error) {
	payload, err := json.Marshal(map[string]any{
		"companyName":    companyName,
		"adminEmail":     adminEmail,
		"plan":           plan,
		"resourceLimits": limits,
	})
	if err != nil {
		return Tenant{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/tenants", strings.NewReader(string(payload)))
	if err != nil {
		return Tenant{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doTenant(req)
}

// GetTenant returns a tenant by ID. Pure read with no side effects; safe
// to call at any cadence.
func (c *Client) GetTenant(ctx context.Context, id string) (Tenant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tenants/"+id, nil)
	if err != nil {
		return Tenant{}, fmt.Errorf("creating request: %w", err)
	}
	return c.doTenant(req)
}

func (c *Client) doTenant(req *http.Request) (Tenant, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Tenant{}, fmt.Errorf("calling API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Tenant{}, ErrNotFound
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Tenant{}, fmt.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tenant Tenant
	if err := json.NewDecoder(resp.Body).Decode(&tenant); err != nil {
		return Tenant{}, fmt.Errorf("decoding tenant: %w", err)
	}
	return tenant, nil
}

// WaitOptions bounds the local polling loop. Zero values fall back to
// the listed defaults.
type WaitOptions struct {
	// Interval between polls. Default 2s. A light jitter of ±25% is
	// always applied so many waiters do not poll in lockstep.
	Interval time.Duration
	// Timeout is the local give-up bound. Hitting it is a display-only
	// condition: the server-side run keeps going. Default 4m.
	Timeout time.Duration
	// OnPoll, when set, observes every intermediate status read.
	OnPoll func(Tenant)
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 4 * time.Minute
	}
	return o
}

// WaitForProvisioning polls a tenant until its status leaves
// "provisioning" or the local timeout expires. It returns the last
// observed tenant; on terminal failure the error is a *FailedError whose
// Reason falls back to a readable sentence when the server supplied none.
func (c *Client) WaitForProvisioning(ctx context.Context, id string, opts WaitOptions) (Tenant, error) {
	opts = opts.withDefaults()

	deadline := time.Now().Add(opts.Timeout)
	var last Tenant

	for {
		tenant, err := c.GetTenant(ctx, id)
		if err != nil {
			return last, err
		}
		last = tenant

		switch tenant.Status {
		case "active":
			return tenant, nil
		case "failed":
			reason := FallbackFailedReason
			if tenant.Provisioning != nil && strings.TrimSpace(tenant.Provisioning.FailedReason) != "" {
				reason = tenant.Provisioning.FailedReason
			}
			return tenant, &FailedError{TenantID: id, Reason: reason}
		}

		if opts.OnPoll != nil {
			opts.OnPoll(tenant)
		}

		if time.Now().After(deadline) {
			return last, ErrWaitTimeout
		}

		// ±25% jitter around the configured interval.
		jittered := opts.Interval/2 + opts.Interval/4 + time.Duration(rand.Float64()*float64(opts.Interval)/2)

		timer := time.NewTimer(jittered)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-timer.C:
		}
	}
}
