package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
)

func TestGetPositions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/positions" {
			t.Errorf("Expected path /positions, got %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("user") != "0xabc" {
			t.Errorf("Wrong user: %s", query.Get("user"))
		}
		if query.Get("size_gt") != "0.01" {
			t.Errorf("Wrong size_gt: %s", query.Get("size_gt"))
		}
		w.Write([]byte(`[
			{"conditionId":"0xc1","asset":"a1","outcome":"Yes","size":10,"avgPrice":"0.4","title":"Market one"},
			{"condition_id":"0xc2","assetId":"a2","size":"3.5","avgPrice":0.2,
			 "market":{"question":"Embedded?","outcomePrices":"[\"0.25\",\"0.75\"]"}}
		]`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	positions, err := client.GetPositions(context.Background(), "0xabc", 0.01)
	if err != nil {
		t.Fatalf("GetPositions failed: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("Expected 2 positions, got %d", len(positions))
	}

	first := positions[0]
	if first.ConditionID() != "0xc1" || first.AssetID() != "a1" || first.Outcome() != "Yes" {
		t.Errorf("Wrong identity: %+v", first)
	}
	if first.Size.Float64() != 10 || first.AvgPrice.Float64() != 0.4 {
		t.Errorf("Wrong size/price: %v %v", first.Size, first.AvgPrice)
	}

	second := positions[1]
	if second.ConditionID() != "0xc2" || second.AssetID() != "a2" {
		t.Errorf("Alternate keys not read: %+v", second)
	}
	if second.Outcome() != "Unknown" {
		t.Errorf("Missing outcome should default to Unknown, got %s", second.Outcome())
	}
	if second.Market == nil || second.Market.Question != "Embedded?" {
		t.Fatalf("Embedded market not decoded: %+v", second.Market)
	}
	if second.Market.OutcomePrices.Float(1) != 0.75 {
		t.Errorf("Wrong outcome price: %v", second.Market.OutcomePrices)
	}
}

func TestGetPositionsMarketAsString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"conditionId":"0xc1","asset":"a1","size":2,"market":"0xc1"}]`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	positions, err := client.GetPositions(context.Background(), "0xabc", 0.01)
	if err != nil {
		t.Fatalf("GetPositions failed: %v", err)
	}
	if len(positions) != 1 || positions[0].Market == nil || positions[0].Market.Question != "" {
		t.Fatalf("Expected empty embedded market, got %+v", positions)
	}
}

func TestGetPositionsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	if _, err := client.GetPositions(context.Background(), "0xabc", 0.01); !errs.IsUpstream(err) {
		t.Fatalf("Expected upstream error, got %v", err)
	}
}

func TestGetMarket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/0xc1" {
			t.Errorf("Expected path /markets/0xc1, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"title":"Direct","market_slug":"direct-slug","parentSlug":"parent-event"}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	market, err := client.GetMarket(context.Background(), "0xc1")
	if err != nil {
		t.Fatalf("GetMarket failed: %v", err)
	}
	if market.DisplayTitle() != "Direct" || market.DisplaySlug() != "direct-slug" {
		t.Errorf("Wrong display fields: %+v", market)
	}
	if market.EventSlug() != "parent-event" {
		t.Errorf("Wrong event slug: %s", market.EventSlug())
	}
}
