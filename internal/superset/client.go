// Package superset is a minimal client for the Superset REST API endpoints
// needed to import a dashboard export: login, CSRF token and dashboard import.
package superset

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/majorcontext/superset-import/internal/log"
)

// API paths, resolved against the base URL. They are absolute, so any
// path component of the base URL is replaced.
const (
	LoginPath  = "/api/v1/security/login"
	CSRFPath   = "/api/v1/security/csrf_token/"
	ImportPath = "/api/v1/dashboard/import/"
)

// ProviderDB is the Flask-AppBuilder auth provider for database users.
const ProviderDB = "db"

const (
	DefaultTimeout       = 60 * time.Second
	DefaultRetryInterval = 500 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	BaseURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool

	// RetryInterval is the initial backoff interval for LoginWithWait.
	RetryInterval time.Duration

	// HTTPClient replaces the default client. Its transport is reused by
	// authenticated sessions.
	HTTPClient *http.Client
}

// Client talks to one Superset instance. It holds no credentials; Login
// returns a Session that does.
type Client struct {
	base          *url.URL
	httpClient    *http.Client
	retryInterval time.Duration
}

// NewClient validates the base URL and builds the HTTP client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", opts.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must use http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed CI instances
		}
		hc = &http.Client{Transport: transport, Timeout: timeout}
	}

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	return &Client{base: base, httpClient: hc, retryInterval: interval}, nil
}

// BaseURL returns the configured Superset base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Endpoint resolves an API path against the base URL.
func (c *Client) Endpoint(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

// doJSON sends body (if non-nil) as JSON and decodes a 2xx response into dest.
func doJSON(ctx context.Context, hc *http.Client, method, endpoint string, headers map[string]string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Debug("sending request", "method", method, "url", endpoint)
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp, method, endpoint)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}
	return nil
}

// newAPIError reads the response body and extracts Superset's message.
func newAPIError(resp *http.Response, method, endpoint string) *APIError {
	apiErr := &APIError{
		Method:     method,
		URL:        endpoint,
		StatusCode: resp.StatusCode,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var payload apiErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != nil {
		switch m := payload.Message.(type) {
		case string:
			apiErr.Message = m
		default:
			if encoded, err := json.Marshal(m); err == nil {
				apiErr.Message = string(encoded)
			}
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if len(apiErr.Message) > 512 {
		apiErr.Message = apiErr.Message[:512] + "..."
	}
	return apiErr
}

func newCookieJar() http.CookieJar {
	// cookiejar.New never fails with nil options.
	jar, _ := cookiejar.New(nil)
	return jar
}
