//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oshokin/metadeploy/internal/config"
	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/version"
)

// maxResponseSize bounds how much of a response body is read into memory.
const maxResponseSize int64 = 32 << 20

// Client performs authenticated requests against the data API of one org.
type Client struct {
	// httpClient carries the requests; http.DefaultClient unless overridden.
	httpClient *http.Client
	// session provides the bearer token and the instance URL.
	session deploy.Session
	// apiVersion is inserted into every data API path.
	apiVersion string

	// callTimeout is the default timeout for individual requests.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for requests.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client, mostly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithAPIVersion overrides the data API version, e.g. "62.0".
func WithAPIVersion(apiVersion string) Option {
	return func(c *Client) {
		if apiVersion != "" {
			c.apiVersion = apiVersion
		}
	}
}

// errSessionRequired is returned when a client is built without a usable session.
var errSessionRequired = errors.New("session with token and instance url must be provided")

// NewClient returns a client bound to the session.
func NewClient(session deploy.Session, opts ...Option) (*Client, error) {
	if !session.Valid() {
		return nil, errSessionRequired
	}

	client := &Client{
		httpClient:  http.DefaultClient,
		session:     session,
		apiVersion:  config.DefaultAPIVersion,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// DataURL resolves a path below /services/data/v<version>/.
func (c *Client) DataURL(path string) string {
	return strings.TrimRight(c.session.InstanceURL, "/") +
		"/services/data/v" + c.apiVersion + "/" + strings.TrimLeft(path, "/")
}

// Request describes one call. Body may be nil.
type Request struct {
	Method      string
	URL         string
	Body        io.Reader
	ContentType string
}

// Do sends the request and decodes a JSON response into out when out is not nil.
// The whole exchange, body read included, runs under the call timeout.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	body := req.Body
	if body == nil {
		body = http.NoBody
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.session.AccessToken)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())

	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(req.Method, req.URL, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err = json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// Get is a shorthand for a GET decoded into out.
func (c *Client) Get(ctx context.Context, url string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url}, out)
}

// PostJSON marshals in, posts it and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		URL:         url,
		Body:        bytes.NewReader(payload),
		ContentType: "application/json",
	}, out)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
