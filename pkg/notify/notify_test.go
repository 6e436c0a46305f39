package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/activity"
)

func sampleDelivery() Delivery {
	return Delivery{
		Event: activity.ChangeEvent{
			ID:             "evt-1",
			Wallet:         "0x1234567890abcdef1234567890abcdef12345678",
			Kind:           activity.KindIncreased,
			Direction:      activity.Buy,
			MarketTitle:    "Will it rain?",
			Outcome:        "Yes",
			Price:          0.52,
			Quantity:       50,
			EventSlug:      "weather",
			MarketSlug:     "will-it-rain",
			OutcomeTokenID: "t-yes",
			Timestamp:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Username:   "alice",
		ChannelIDs: []string{"c1", "c2"},
	}
}

func TestMarketURL(t *testing.T) {
	e := sampleDelivery().Event
	require.Equal(t, "https://polymarket.com/event/weather/will-it-rain?tid=t-yes", MarketURL(e))

	e.OutcomeTokenID = ""
	e.MarketSlug = "weather"
	require.Equal(t, "https://polymarket.com/event/weather", MarketURL(e))

	e.EventSlug = ""
	require.Equal(t, "https://polymarket.com/profile/"+e.Wallet, MarketURL(e))
}

func TestBuildEmbed(t *testing.T) {
	embed := BuildEmbed(sampleDelivery())
	require.Equal(t, "BOUGHT (added)", embed.Title)
	require.Equal(t, colorBuy, embed.Color)
	require.Contains(t, embed.Description, "Will it rain?")
	require.Contains(t, embed.Description, "alice (0x1234...5678)")
	require.Equal(t, "$0.520", embed.Fields[0].Value)
	require.Equal(t, "50.0", embed.Fields[1].Value)
	require.Equal(t, "$26.00", embed.Fields[2].Value)
	require.Equal(t, "2025-03-01T12:00:00Z", embed.Timestamp)

	d := sampleDelivery()
	d.Event.Kind = activity.KindClosed
	d.Event.Direction = activity.Sell
	require.Equal(t, colorSell, BuildEmbed(d).Color)
}

type fakeSession struct {
	mu    sync.Mutex
	sent  []string
	fails map[string]bool
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, _ *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails[channelID] {
		return nil, errors.New("missing access")
	}
	f.sent = append(f.sent, channelID)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func TestDiscordContinuesPastFailingChannel(t *testing.T) {
	s := &fakeSession{fails: map[string]bool{"c1": true}}
	err := NewDiscord(s, nil).Notify(context.Background(), sampleDelivery())
	require.Error(t, err)
	require.Contains(t, err.Error(), "c1")
	require.Equal(t, []string{"c2"}, s.sent)
}

func TestWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("Invalid body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, time.Second).Notify(context.Background(), sampleDelivery())
	require.NoError(t, err)
	require.Equal(t, "BOUGHT (added)", got["label"])
	require.Equal(t, "https://polymarket.com/event/weather/will-it-rain?tid=t-yes", got["marketUrl"])
	event, ok := got["event"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "increased", event["kind"])
}

func TestWebhookNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, time.Second).Notify(context.Background(), sampleDelivery())
	require.Error(t, err)
}

func TestMultiJoinsErrors(t *testing.T) {
	var calls int
	ok := NotifierFunc(func(context.Context, Delivery) error { calls++; return nil })
	bad := NotifierFunc(func(context.Context, Delivery) error { calls++; return errors.New("down") })

	err := Multi{ok, nil, bad, ok}.Notify(context.Background(), sampleDelivery())
	require.Error(t, err)
	require.Equal(t, 3, calls)
}
