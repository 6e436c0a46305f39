package gamma

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
	// DefaultBaseURL is the Gamma API base URL
	DefaultBaseURL = polymarket.GammaURL

	defaultRateLimit = 10.0 // requests per second
	defaultBurst     = 5

	source = "gamma"
)

// Client is a Gamma API client.
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

// NewClient creates a new Gamma API client.
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
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListEvents fetches events from the Gamma API.
func (c *Client) ListEvents(ctx context.Context, filter *EventsFilter) ([]Event, error) {
	params := url.Values{}
	if filter != nil {
		if filter.Slug != "" {
			params.Set("slug", filter.Slug)
		}
		if filter.Limit > 0 {
			params.Set("limit", strconv.Itoa(filter.Limit))
		}
		if filter.Offset > 0 {
			params.Set("offset", strconv.Itoa(filter.Offset))
		}
	}

	var events []Event
	if err := c.get(ctx, "ListEvents", "/events", params, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetEvent fetches a single event by ID.
func (c *Client) GetEvent(ctx context.Context, id string) (*Event, error) {
	var event Event
	if err := c.get(ctx, "GetEvent", "/events/"+url.PathEscape(id), nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// GetEventBySlug fetches an event by its slug.
func (c *Client) GetEventBySlug(ctx context.Context, slug string) (*Event, error) {
	events, err := c.ListEvents(ctx, &EventsFilter{Slug: slug, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errs.New("gamma.GetEventBySlug", errs.KindNotFound,
			errs.WithSource(source), errs.WithMessage("event not found: "+slug))
	}
	return &events[0], nil
}

// ListMarkets fetches markets from the Gamma API.
func (c *Client) ListMarkets(ctx context.Context, filter *MarketsFilter) ([]Market, error) {
	params := url.Values{}
	if filter != nil {
		if filter.ClobTokenIDs != "" {
			params.Set("clob_token_ids", filter.ClobTokenIDs)
		}
		if filter.ConditionID != "" {
			params.Set("condition_id", filter.ConditionID)
		}
		if filter.Slug != "" {
			params.Set("slug", filter.Slug)
		}
		if filter.Limit > 0 {
			params.Set("limit", strconv.Itoa(filter.Limit))
		}
		if filter.Offset > 0 {
			params.Set("offset", strconv.Itoa(filter.Offset))
		}
	}

	var markets []Market
	if err := c.get(ctx, "ListMarkets", "/markets", params, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// GetMarketByConditionID fetches the first market matching a condition id.
func (c *Client) GetMarketByConditionID(ctx context.Context, conditionID string) (*Market, error) {
	markets, err := c.ListMarkets(ctx, &MarketsFilter{ConditionID: conditionID})
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, errs.New("gamma.GetMarketByConditionID", errs.KindNotFound,
			errs.WithSource(source), errs.WithMessage("market not found: "+conditionID))
	}
	return &markets[0], nil
}

// GetMarketByTokenID fetches a market by one of its CLOB token IDs.
func (c *Client) GetMarketByTokenID(ctx context.Context, tokenID string) (*Market, error) {
	markets, err := c.ListMarkets(ctx, &MarketsFilter{ClobTokenIDs: tokenID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, errs.New("gamma.GetMarketByTokenID", errs.KindNotFound,
			errs.WithSource(source), errs.WithMessage("market not found for token: "+tokenID))
	}
	return &markets[0], nil
}

// get performs a GET request with rate limiting.
func (c *Client) get(ctx context.Context, op, path string, params url.Values, result interface{}) error {
	op = "gamma." + op

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
