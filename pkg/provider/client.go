// Package provider is the worker-side client: it signs in as a node, polls
// the jobs assigned to that node over the HTTP API, runs them and submits
// the results.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/greenmesh/greenmesh/api"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/attest"
)

// tokenSlack renews the token this long before it expires.
const tokenSlack = time.Minute

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status   int
	Response api.ErrorResponse
}

func (e *APIError) Error() string {
	r := e.Response
	if r.Codespace != "" {
		return fmt.Sprintf("api %d (%s/%d %s): %s", e.Status, r.Codespace, r.ABCICode, r.Kind, r.Error)
	}
	return fmt.Sprintf("api %d: %s", e.Status, r.Error)
}

// Client talks to the API on behalf of one node key.
type Client struct {
	baseURL string
	http    *http.Client
	key     *secp256k1.PrivateKey
	addr    sdk.AccAddress
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient returns a client for the API at baseURL. A nil httpClient uses
// a client with a 30s timeout.
func NewClient(baseURL string, key *secp256k1.PrivateKey, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		key:     key,
		addr:    attest.Address(key.PubKey()),
		now:     time.Now,
	}
}

// Address is the node address the client acts for.
func (c *Client) Address() sdk.AccAddress {
	return c.addr
}

// Login exchanges a signed statement for a bearer token.
func (c *Client) Login(ctx context.Context) error {
	req, err := api.SignLogin(c.key, c.now())
	if err != nil {
		return err
	}
	var resp api.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", req, &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.mu.Lock()
	c.token, c.expires = resp.Token, resp.ExpiresAt
	c.mu.Unlock()
	return nil
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expires := c.token, c.expires
	c.mu.Unlock()
	if token != "" && c.now().Add(tokenSlack).Before(expires) {
		return token, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

// AssignedJobs lists the jobs the node is assigned to, as primary or auditor.
func (c *Client) AssignedJobs(ctx context.Context) ([]schedulertypes.Job, error) {
	var resp api.JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/nodes/"+c.addr.String()+"/jobs", "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Ping refreshes the node's liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.authed(ctx, http.MethodPost, "/api/nodes/self/ping", nil)
}

// StartJob acknowledges execution of job id.
func (c *Client) StartJob(ctx context.Context, id uint64) error {
	return c.authed(ctx, http.MethodPost, jobPath(id, "start"), nil)
}

// CompleteJob submits a result for job id.
func (c *Client) CompleteJob(ctx context.Context, id uint64, resultHash []byte, resultRef string) error {
	return c.authed(ctx, http.MethodPost, jobPath(id, "complete"), api.CompleteJobRequest{
		ResultHash: resultHash,
		ResultRef:  resultRef,
	})
}

func jobPath(id uint64, action string) string {
	return "/api/jobs/" + strconv.FormatUint(id, 10) + "/" + action
}

func (c *Client) authed(ctx context.Context, method, path string, body any) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, token, body, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		bz, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(bz)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bz, err := io.ReadAll(io.LimitReader(resp.Body, api.MaxRequestSize))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(bz, &apiErr.Response); err != nil || apiErr.Response.Error == "" {
			apiErr.Response.Error = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(bz, out)
}
