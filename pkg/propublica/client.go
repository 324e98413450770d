// Package propublica provides a client for the ProPublica Nonprofit Explorer API v2.
package propublica

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/irs990-cli/internal/model"
)

// DefaultBaseURL is the organizations endpoint of API v2.
const DefaultBaseURL = "https://projects.propublica.org/nonprofits/api/v2/organizations"

// Client defines the Nonprofit Explorer operations.
type Client interface {
	// Organization fetches one organization and its filings by EIN.
	Organization(ctx context.Context, ein string) (*model.Record, error)
}

// FetchError reports a failed organization fetch. Callers treat it as "no
// data available" for that EIN rather than a batch failure.
type FetchError struct {
	EIN        string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("propublica: fetch %s: %s", e.EIN, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimiter paces outgoing requests.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a new Nonprofit Explorer client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   DefaultBaseURL,
		userAgent: "irs990-cli/1.0",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OrganizationURL returns the request URL for an EIN.
func OrganizationURL(baseURL, ein string) string {
	return fmt.Sprintf("%s/%s.json", strings.TrimRight(baseURL, "/"), ein)
}

func (c *httpClient) Organization(ctx context.Context, ein string) (*model.Record, error) {
	fail := func(status int, msg string, err error) error {
		return &FetchError{EIN: ein, StatusCode: status, Message: msg, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fail(0, "rate limiter wait", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, OrganizationURL(c.baseURL, ein), nil)
	if err != nil {
		return nil, fail(0, "create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fail(0, err.Error(), err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(resp.StatusCode, "read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return nil, fail(resp.StatusCode, msg, eris.New(msg))
	}

	rec, err := model.DecodeRecord(body)
	if err != nil {
		return nil, fail(resp.StatusCode, "decode response", err)
	}
	return rec, nil
}
