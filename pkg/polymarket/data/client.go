package data

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket"
)

const (
	// DefaultBaseURL is the Data API base URL
	DefaultBaseURL = polymarket.DataAPIURL

	source = "data-api"
)

// Client is a Data API client.
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

// WithRateLimit sets custom rate limiting. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new Data API client.
func NewClient(opts ...ClientOption) *Client {
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

// GetPositions fetches the open positions of a wallet whose size exceeds sizeGT.
func (c *Client) GetPositions(ctx context.Context, user string, sizeGT float64) ([]Position, error) {
	params := url.Values{}
	params.Set("user", user)
	if sizeGT > 0 {
		params.Set("size_gt", strconv.FormatFloat(sizeGT, 'f', -1, 64))
	}

	var positions []Position
	if err := c.get(ctx, "GetPositions", "/positions", params, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// GetMarket fetches a market by condition id.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*Market, error) {
	var market Market
	if err := c.get(ctx, "GetMarket", "/markets/"+url.PathEscape(conditionID), nil, &market); err != nil {
		return nil, err
	}
	return &market, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, result interface{}) error {
	op = "data." + op

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

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return errs.New(op, errs.KindUpstream, errs.WithSource(source), errs.WithCause(fmt.Errorf("decode response: %w", err)))
	}

	return nil
}
