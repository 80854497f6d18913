// Package apiclient issues requests against one API base address, attaching
// the locally stored session token as a bearer credential.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mfenderov/ledgerkit/internal/credstore"
)

// DefaultBaseURL is used when no API address is configured.
const DefaultBaseURL = "http://localhost:8080/api"

// ErrCredentialLookup marks requests rejected because the credential store
// could not be read. Such requests are never sent.
var ErrCredentialLookup = errors.New("credential lookup failed")

// StatusError is returned by the JSON helpers for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// Client is bound to one base address. Its HTTP client carries the bearer
// hook, so requests built elsewhere and sent through HTTPClient() are
// authorized the same way.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type config struct {
	httpClient *http.Client
	transport  http.RoundTripper
	tokenKey   string
	timeout    time.Duration
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*config)

// WithHTTPClient uses a copy of hc; its transport becomes the one the bearer
// hook wraps.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithTransport sets the transport the bearer hook wraps.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *config) { c.transport = rt }
}

// WithTokenKey changes the credential key (default "userToken").
func WithTokenKey(key string) Option {
	return func(c *config) { c.tokenKey = key }
}

// WithTimeout sets an overall per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithLogger sets the logger for request tracing at debug level.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New returns a client for baseURL that reads its bearer credential from
// creds on every request.
func New(baseURL string, creds credstore.Getter, opts ...Option) (*Client, error) {
	if creds == nil {
		return nil, errors.New("credential store is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be an absolute http(s) URL", baseURL)
	}

	cfg := config{tokenKey: credstore.TokenKey, logger: log.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	hc := &http.Client{}
	if cfg.httpClient != nil {
		cp := *cfg.httpClient
		hc = &cp
	}
	base := cfg.transport
	if base == nil {
		base = hc.Transport
	}
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = &bearerTransport{
		base:   base,
		origin: u,
		creds:  creds,
		key:    cfg.tokenKey,
		logger: cfg.logger,
	}
	if cfg.timeout > 0 {
		hc.Timeout = cfg.timeout
	}

	return &Client{baseURL: u, httpClient: hc}, nil
}

// BaseURL returns the address every path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// HTTPClient returns the underlying client, bearer hook included.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// URL resolves path (optionally carrying a query) against the base address.
func (c *Client) URL(path string) (string, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parsing path %q: %w", path, err)
	}
	if rel.IsAbs() || rel.Host != "" {
		return "", fmt.Errorf("path %q must be relative to the base URL", path)
	}
	u := c.baseURL.JoinPath(rel.Path)
	u.RawQuery = rel.RawQuery
	return u.String(), nil
}

// NewRequest builds a request for path relative to the base address.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	target, err := c.URL(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return req, nil
}

// Do sends req through the bearer hook. The caller closes the body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.Do(req)
}

func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, path, "", nil)
}

func (c *Client) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.send(ctx, http.MethodDelete, path, "", nil)
}

func (c *Client) Post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, path, contentType, body)
}

func (c *Client) Put(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	return c.send(ctx, http.MethodPut, path, contentType, body)
}

func (c *Client) Patch(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	return c.send(ctx, http.MethodPatch, path, contentType, body)
}

// GetJSON fetches path and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// PostJSON encodes in, posts it to path and decodes the response into out.
// out may be nil when the response body is not needed.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	jsonBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	resp, err := c.Post(ctx, path, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
