// Package profile fetches public Polymarket profile pages. The pages embed
// the account's wallet address and display name in their hydration data.
package profile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket"
)

const (
	// DefaultBaseURL is the public site root.
	DefaultBaseURL = polymarket.SiteURL

	source = "profile"

	maxPageBytes = 4 << 20
)

// Client fetches profile HTML.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a profile page client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(2), 2),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ByUsername fetches the page at /@username.
func (c *Client) ByUsername(ctx context.Context, username string) (string, error) {
	return c.page(ctx, "/@"+url.PathEscape(username))
}

// ByAddress fetches the page at /profile/{address}.
func (c *Client) ByAddress(ctx context.Context, address string) (string, error) {
	return c.page(ctx, "/profile/"+url.PathEscape(address))
}

func (c *Client) page(ctx context.Context, path string) (string, error) {
	const op = "profile.page"

	if err := c.limiter.Wait(ctx); err != nil {
		return "", errs.New(op, errs.KindUpstream, errs.WithSource(source), errs.WithCause(fmt.Errorf("rate limiter: %w", err)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	polymarket.SetBrowserHeaders(req.Header)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.New(op, errs.KindUpstream, errs.WithSource(source), errs.WithCause(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.FromStatus(op, source, resp.StatusCode, "")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", errs.New(op, errs.KindUpstream, errs.WithSource(source), errs.WithCause(err))
	}
	return string(body), nil
}
