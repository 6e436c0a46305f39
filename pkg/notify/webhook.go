package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
)

// Webhook POSTs each delivery as JSON.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type webhookPayload struct {
	Delivery
	Label      string `json:"label"`
	MarketURL  string `json:"marketUrl"`
	ProfileURL string `json:"profileUrl"`
}

func (w *Webhook) Notify(ctx context.Context, d Delivery) error {
	const op = "notify.Webhook"

	body, err := json.Marshal(webhookPayload{
		Delivery:   d,
		Label:      Label(d.Event.Kind),
		MarketURL:  MarketURL(d.Event),
		ProfileURL: ProfileURL(d.Event.Wallet),
	})
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return errs.New(op, errs.KindUpstream, errs.WithSource("webhook"), errs.WithCause(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errs.FromStatus(op, "webhook", resp.StatusCode, string(msg))
	}
	return nil
}
