// Package signupclient provides a client for the activity-signup backend's
// HTTP API.
//
// The backend exposes:
//
//	GET  /activities
//	POST /activities/{name}/signup?email={identifier}
//	POST /activities/{name}/unregister?email={identifier}
//
// Example usage:
//
//	client, err := signupclient.New("http://localhost:8000")
//	snapshot, err := client.ListActivities(ctx)
//	result, err := client.Signup(ctx, "Chess Club", "jane@mergington.edu")
package signupclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nomis52/rollcall/roster"
)

const (
	// DefaultTimeout bounds every request made by the client.
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries the action ID from ContextWithRequestID.
	RequestIDHeader = "X-Request-ID"

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 4 << 20
)

// Client talks to a signup backend.
// Use New() to create a client for a given base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout. A client passed to WithHTTPClient
// is copied, not modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client for the backend at baseURL. The URL must include the
// scheme (e.g. "http://localhost:8000").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: missing host", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListActivities fetches every activity and its participants. Any non-2xx
// answer is returned as a *StatusError and transport failures as a
// *NetworkError.
func (c *Client) ListActivities(ctx context.Context) (roster.Snapshot, error) {
	const op = "list activities"

	resp, body, err := c.do(ctx, op, http.MethodGet, c.baseURL+"/activities")
	if err != nil {
		return roster.Snapshot{}, err
	}
	if resp.StatusCode/100 != 2 {
		return roster.Snapshot{}, &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	var snapshot roster.Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return roster.Snapshot{}, fmt.Errorf("%s: failed to unmarshal response: %w", op, err)
	}
	return snapshot, nil
}

// Signup registers identifier for the named activity.
func (c *Client) Signup(ctx context.Context, activityName, identifier string) (ActionResult, error) {
	return c.action(ctx, "signup", activityName, identifier)
}

// Unregister removes identifier from the named activity.
func (c *Client) Unregister(ctx context.Context, activityName, identifier string) (ActionResult, error) {
	return c.action(ctx, "unregister", activityName, identifier)
}

// action posts to /activities/{name}/{verb}?email={identifier}. A 2xx body
// that is not valid JSON still counts as success, with an empty message.
func (c *Client) action(ctx context.Context, verb, activityName, identifier string) (ActionResult, error) {
	q := url.Values{}
	q.Set("email", identifier)
	u := fmt.Sprintf("%s/activities/%s/%s?%s", c.baseURL, url.PathEscape(activityName), verb, q.Encode())

	resp, body, err := c.do(ctx, verb, http.MethodPost, u)
	if err != nil {
		return ActionResult{}, err
	}

	if resp.StatusCode/100 != 2 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		return ActionResult{}, &ActionError{Op: verb, StatusCode: resp.StatusCode, Detail: eb.text()}
	}

	var result ActionResult
	_ = json.Unmarshal(body, &result)
	return result, nil
}

func (c *Client) do(ctx context.Context, op, method, u string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if id := requestIDFrom(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, &NetworkError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}
	return resp, body, nil
}
