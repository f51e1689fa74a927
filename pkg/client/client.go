// Package client provides a Go client for the Sealreg API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a Sealreg API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new Sealreg client
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Instance identifies a registry instance and its oracle keys.
type Instance struct {
	APIVersion      string `json:"apiVersion"`
	Backend         string `json:"backend"`
	InstanceID      string `json:"instanceId"`      // hex
	OracleBoxKey    string `json:"oracleBoxKey"`    // hex, X25519
	OraclePublicKey string `json:"oraclePublicKey"` // hex, Ed25519
}

// Bid is the public view of a bid record.
type Bid struct {
	Domain      string    `json:"domain"`
	Deposit     uint64    `json:"deposit"`
	Expiration  time.Time `json:"expiration"`
	Bidder      string    `json:"bidder"`
	PlacedAt    time.Time `json:"placedAt"`
	Verified    bool      `json:"verified"`
	ClearAmount uint64    `json:"clearAmount,omitempty"`
	Settled     bool      `json:"settled"`
}

// PlaceRequest is the request for placing a bid.
type PlaceRequest struct {
	Sealed     []byte    `json:"sealed"`
	Proof      []byte    `json:"proof"`
	Deposit    uint64    `json:"deposit"`
	Expiration time.Time `json:"expiration"`
}

// VerifyRequest is the request for verifying a bid.
type VerifyRequest struct {
	ClearAmount uint64 `json:"clearAmount"`
	Attestation []byte `json:"attestation"`
}

// Announcement is a published sealed amount in the feed.
type Announcement struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	Sealed    []byte    `json:"sealed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Feed is a page of the announcement feed.
type Feed struct {
	Announcements []Announcement `json:"announcements"`
	NextSeq       int64          `json:"nextSeq"`
}

// CheckRequest asks the registry to dry-run its gateway checks.
type CheckRequest struct {
	Backend     string `json:"backend,omitempty"`
	Sealed      []byte `json:"sealed"`
	Proof       []byte `json:"proof,omitempty"`
	ClearAmount uint64 `json:"clearAmount"`
	Attestation []byte `json:"attestation"`
}

// CheckResult reports the gateway check outcomes.
type CheckResult struct {
	Backend         string `json:"backend"`
	WellFormed      bool   `json:"wellFormed"`
	Attested        bool   `json:"attested"`
	WellFormedError string `json:"wellFormedError,omitempty"`
	AttestError     string `json:"attestError,omitempty"`
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// GetInstance fetches the registry's sealing identity.
func (c *Client) GetInstance(ctx context.Context) (*Instance, error) {
	var resp Instance
	if err := c.get(ctx, "/api/v1/instance", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Place places a bid on a domain.
func (c *Client) Place(ctx context.Context, domain string, req PlaceRequest) error {
	return c.post(ctx, "/api/v1/bids/"+url.PathEscape(domain), req, nil)
}

// Verify submits an oracle attestation for a bid.
func (c *Client) Verify(ctx context.Context, domain string, req VerifyRequest) error {
	return c.post(ctx, "/api/v1/bids/"+url.PathEscape(domain)+"/verify", req, nil)
}

// Register finalizes a verified bid.
func (c *Client) Register(ctx context.Context, domain string) error {
	return c.post(ctx, "/api/v1/bids/"+url.PathEscape(domain)+"/register", nil, nil)
}

// Withdraw reclaims the deposit of an expired bid.
func (c *Client) Withdraw(ctx context.Context, domain string) error {
	return c.post(ctx, "/api/v1/bids/"+url.PathEscape(domain)+"/withdraw", nil, nil)
}

// GetBid gets the public view of a bid.
func (c *Client) GetBid(ctx context.Context, domain string) (*Bid, error) {
	var resp Bid
	if err := c.get(ctx, "/api/v1/bids/"+url.PathEscape(domain), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSealed gets the opaque sealed amount for a bid.
func (c *Client) GetSealed(ctx context.Context, domain string) ([]byte, error) {
	var resp struct {
		Sealed []byte `json:"sealed"`
	}
	if err := c.get(ctx, "/api/v1/bids/"+url.PathEscape(domain)+"/sealed", &resp); err != nil {
		return nil, err
	}
	return resp.Sealed, nil
}

// ListActive lists domains with live bids.
func (c *Client) ListActive(ctx context.Context) ([]string, error) {
	var resp struct {
		Domains []string `json:"domains"`
	}
	if err := c.get(ctx, "/api/v1/bids", &resp); err != nil {
		return nil, err
	}
	return resp.Domains, nil
}

// IsRegistered reports whether a domain is registered.
func (c *Client) IsRegistered(ctx context.Context, domain string) (bool, error) {
	var resp struct {
		Registered bool `json:"registered"`
	}
	if err := c.get(ctx, "/api/v1/domains/"+url.PathEscape(domain), &resp); err != nil {
		return false, err
	}
	return resp.Registered, nil
}

// Announcements fetches a page of the announcement feed after sinceSeq.
func (c *Client) Announcements(ctx context.Context, sinceSeq int64, limit int) (*Feed, error) {
	path := "/api/v1/announcements?since=" + strconv.FormatInt(sinceSeq, 10)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var resp Feed
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckAttestation dry-runs the registry's gateway checks.
func (c *Client) CheckAttestation(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	var resp CheckResult
	if err := c.post(ctx, "/api/v1/attestations/check", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}
