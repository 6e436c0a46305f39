// Package clob provides a read-only client for the public Polymarket CLOB
// endpoints: quotes and market records.
package clob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket"
)

const source = "clob"

// Client is a CLOB API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithCLOBBaseURL sets a custom base URL.
func WithCLOBBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithCLOBHTTPClient sets a custom HTTP client.
func WithCLOBHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithCLOBRateLimit sets custom rate limiting. A non-positive rps disables it.
func WithCLOBRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewPublicClient creates a CLOB client for public (unauthenticated) operations.
func NewPublicClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetPrice fetches the quote for a token on the given side of the book.
func (c *Client) GetPrice(ctx context.Context, tokenID string, side PriceSide) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", string(side))

	var result struct {
		Price polymarket.JSONFloat `json:"price"`
	}
	if err := c.get(ctx, "GetPrice", "/price", params, &result); err != nil {
		return 0, err
	}
	return result.Price.Float64(), nil
}

// GetMarket fetches market info by condition ID.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*MarketInfo, error) {
	var market MarketInfo
	if err := c.get(ctx, "GetMarket", "/markets/"+url.PathEscape(conditionID), nil, &market); err != nil {
		return nil, err
	}
	return &market, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, result interface{}) error {
	op = "clob." + op

	if err := c.limiter.Wait(ctx); err != nil {
		return errs.New(op, errs.KindUpstream, errs.WithSource(source), errs.WithCause(fmt.Errorf("rate limiter: %w", err)))
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	polymarket.SetBrowserHeaders(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.New(op, errs.KindUpstream, errs.WithSource(source), errs.WithCause(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errs.FromStatus(op, source, resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errs.New(op, errs.KindUpstream, errs.WithSource(source), errs.WithCause(fmt.Errorf("decode response: %w", err)))
		}
	}

	return nil
}
