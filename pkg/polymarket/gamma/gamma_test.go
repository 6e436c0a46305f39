package gamma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
)

func TestListMarketsByConditionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("Expected path /markets, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("condition_id"); got != "0xabc" {
			t.Errorf("Expected condition_id=0xabc, got %s", got)
		}
		if r.Header.Get("Origin") == "" {
			t.Error("Expected browser headers on request")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"id": "501",
			"question": "Will it rain?",
			"conditionId": "0xabc",
			"slug": "will-it-rain-123456",
			"clobTokenIds": "[\"111\",\"222\"]",
			"outcomes": "[\"Yes\",\"No\"]",
			"outcomePrices": "[\"0.3\",\"0.7\"]",
			"events": [{"id": 77, "slug": "weather-week"}]
		}]`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	market, err := client.GetMarketByConditionID(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetMarketByConditionID failed: %v", err)
	}

	if market.DisplayTitle() != "Will it rain?" {
		t.Errorf("Wrong title: %s", market.DisplayTitle())
	}
	if market.EventSlug() != "weather-week" {
		t.Errorf("Wrong event slug: %s", market.EventSlug())
	}
	if len(market.ClobTokenIDs) != 2 || market.ClobTokenIDs[1] != "222" {
		t.Errorf("Wrong token ids: %v", market.ClobTokenIDs)
	}
	if market.OutcomePrices.Float(1) != 0.7 {
		t.Errorf("Wrong NO price: %f", market.OutcomePrices.Float(1))
	}
}

func TestGetMarketByConditionIDEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.GetMarketByConditionID(context.Background(), "0xnone")
	if !errs.IsNotFound(err) {
		t.Fatalf("Expected not found, got %v", err)
	}
}

func TestGetMarketByTokenID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("clob_token_ids") != "999" {
			t.Errorf("Expected clob_token_ids=999, got %s", query.Get("clob_token_ids"))
		}
		if query.Get("limit") != "1" {
			t.Errorf("Expected limit=1, got %s", query.Get("limit"))
		}
		w.Write([]byte(`[{"question":"Token market","market_slug":"token-market","eventSlug":"token-event"}]`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	market, err := client.GetMarketByTokenID(context.Background(), "999")
	if err != nil {
		t.Fatalf("GetMarketByTokenID failed: %v", err)
	}
	if market.DisplaySlug() != "token-market" {
		t.Errorf("Wrong slug: %s", market.DisplaySlug())
	}
	if market.EventSlug() != "token-event" {
		t.Errorf("Wrong event slug: %s", market.EventSlug())
	}
}

func TestGetEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events/77" {
			t.Errorf("Expected path /events/77, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"77","slug":"weather-week","title":"Weather"}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	event, err := client.GetEvent(context.Background(), "77")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if event.Slug != "weather-week" {
		t.Errorf("Wrong slug: %s", event.Slug)
	}
}

func TestGetEventBySlug(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("slug") != "weather-week" {
			t.Errorf("Expected slug=weather-week, got %s", query.Get("slug"))
		}
		if query.Get("limit") != "1" {
			t.Errorf("Expected limit=1, got %s", query.Get("limit"))
		}
		w.Write([]byte(`[{"id":77,"slug":"weather-week"}]`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	event, err := client.GetEventBySlug(context.Background(), "weather-week")
	if err != nil {
		t.Fatalf("GetEventBySlug failed: %v", err)
	}
	if event.ID.String() != "77" {
		t.Errorf("Wrong id: %s", event.ID)
	}
}

func TestAPIErrorKinds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/events/missing" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.GetEvent(context.Background(), "missing")
	if !errs.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}

	_, err = client.ListMarkets(context.Background(), nil)
	if !errs.IsUpstream(err) {
		t.Errorf("Expected upstream error, got %v", err)
	}
}

func TestContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.ListMarkets(ctx, nil); err == nil {
		t.Error("Expected timeout error")
	}
}

func TestClientOptions(t *testing.T) {
	custom := &http.Client{Timeout: 5 * time.Second}
	client := NewClient(
		WithBaseURL("https://custom.gamma"),
		WithHTTPClient(custom),
		WithRateLimit(0, 0),
	)
	if client.baseURL != "https://custom.gamma" {
		t.Errorf("Wrong base URL: %s", client.baseURL)
	}
	if client.httpClient != custom {
		t.Error("HTTP client option not applied")
	}
	if !client.limiter.Allow() || !client.limiter.Allow() {
		t.Error("Zero rps should disable rate limiting")
	}
}
