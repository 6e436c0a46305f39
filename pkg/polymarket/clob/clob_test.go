package clob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
)

func TestNewPublicClientWithOptions(t *testing.T) {
	customClient := &http.Client{Timeout: 60 * time.Second}

	client := NewPublicClient(
		WithCLOBBaseURL("https://custom.clob.com"),
		WithCLOBHTTPClient(customClient),
	)

	if client.baseURL != "https://custom.clob.com" {
		t.Errorf("Wrong base URL: %s", client.baseURL)
	}
	if client.httpClient != customClient {
		t.Error("HTTP client option not applied")
	}
}

func TestGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price" {
			t.Errorf("Expected path /price, got %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("token_id") != "12345" {
			t.Errorf("Wrong token_id: %s", query.Get("token_id"))
		}
		switch query.Get("side") {
		case "bid":
			w.Write([]byte(`{"price":"0.48"}`))
		case "ask":
			w.Write([]byte(`{"price":0.52}`))
		default:
			w.Write([]byte(`{"price":"0.50"}`))
		}
	}))
	defer server.Close()

	client := NewPublicClient(WithCLOBBaseURL(server.URL))

	tests := []struct {
		side PriceSide
		want float64
	}{
		{SideBid, 0.48},
		{SideAsk, 0.52},
		{SideMid, 0.50},
	}
	for _, tt := range tests {
		got, err := client.GetPrice(context.Background(), "12345", tt.side)
		if err != nil {
			t.Fatalf("GetPrice(%s) failed: %v", tt.side, err)
		}
		if got != tt.want {
			t.Errorf("GetPrice(%s) = %f, want %f", tt.side, got, tt.want)
		}
	}
}

func TestGetMarketTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/0xcond" {
			t.Errorf("Expected path /markets/0xcond, got %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"condition_id": "0xcond",
			"question": "Who wins?",
			"market_slug": "who-wins",
			"tokens": [
				{"token_id": "t-yes", "outcome": "Yes", "price": 0.4},
				{"token_id": "t-no", "outcome": "No", "price": "0.6"}
			]
		}`))
	}))
	defer server.Close()

	client := NewPublicClient(WithCLOBBaseURL(server.URL))

	market, err := client.GetMarket(context.Background(), "0xcond")
	if err != nil {
		t.Fatalf("GetMarket failed: %v", err)
	}
	if market.DisplayTitle() != "Who wins?" {
		t.Errorf("Wrong title: %s", market.DisplayTitle())
	}
	if market.DisplaySlug() != "who-wins" {
		t.Errorf("Wrong slug: %s", market.DisplaySlug())
	}

	outcomes, ids := market.OutcomeTokens()
	if len(outcomes) != 2 || outcomes[0] != "Yes" || ids[1] != "t-no" {
		t.Errorf("Wrong outcome tokens: %v %v", outcomes, ids)
	}
}

func TestOutcomeTokensFallsBackToArrays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"description":"Fallback title","outcomes":"[\"Up\",\"Down\"]","clobTokenIds":["a","b"]}`))
	}))
	defer server.Close()

	client := NewPublicClient(WithCLOBBaseURL(server.URL))

	market, err := client.GetMarket(context.Background(), "0xcond")
	if err != nil {
		t.Fatalf("GetMarket failed: %v", err)
	}
	if market.DisplayTitle() != "Fallback title" {
		t.Errorf("Expected description fallback, got %s", market.DisplayTitle())
	}
	outcomes, ids := market.OutcomeTokens()
	if len(outcomes) != 2 || outcomes[1] != "Down" || ids[0] != "a" {
		t.Errorf("Wrong outcome tokens: %v %v", outcomes, ids)
	}
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/markets/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"market not found"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error"}`))
	}))
	defer server.Close()

	client := NewPublicClient(WithCLOBBaseURL(server.URL))

	if _, err := client.GetMarket(context.Background(), "missing"); !errs.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
	if _, err := client.GetPrice(context.Background(), "12345", SideMid); !errs.IsUpstream(err) {
		t.Errorf("Expected upstream error, got %v", err)
	}
}

func TestMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewPublicClient(WithCLOBBaseURL(server.URL))

	if _, err := client.GetPrice(context.Background(), "1", SideBid); !errs.IsUpstream(err) {
		t.Errorf("Expected upstream error for bad body, got %v", err)
	}
}
