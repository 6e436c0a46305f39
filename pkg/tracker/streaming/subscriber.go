package streaming

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Frame is an Event as seen by a remote subscriber, with Data left raw.
type Frame struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Wallet    string          `json:"wallet,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Subscriber follows a hub's /ws endpoint and reconnects when the connection
// drops.
type Subscriber struct {
	url         string
	events      []string
	wallets     []string
	header      http.Header
	maxAttempts int
	minDelay    time.Duration
	maxDelay    time.Duration
	readTimeout time.Duration
	logger      *zap.Logger
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithFilter limits the stream to the given event types and wallets.
func WithFilter(events, wallets []string) SubscriberOption {
	return func(s *Subscriber) {
		s.events = events
		s.wallets = wallets
	}
}

func WithHeader(h http.Header) SubscriberOption {
	return func(s *Subscriber) { s.header = h }
}

// WithReconnect bounds reconnection. maxAttempts 0 retries forever.
func WithReconnect(maxAttempts int, minDelay, maxDelay time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		s.maxAttempts = maxAttempts
		if minDelay > 0 {
			s.minDelay = minDelay
		}
		if maxDelay > 0 {
			s.maxDelay = maxDelay
		}
	}
}

func WithSubscriberLogger(l *zap.Logger) SubscriberOption {
	return func(s *Subscriber) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSubscriber(url string, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		url:         url,
		minDelay:    time.Second,
		maxDelay:    30 * time.Second,
		readTimeout: 2 * pongWait,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run delivers frames to fn until ctx is done or reconnection gives up.
// It returns nil when ctx ends.
func (s *Subscriber) Run(ctx context.Context, fn func(Frame)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.minDelay
	bo.MaxInterval = s.maxDelay

	attempts := 0
	for {
		received, err := s.session(ctx, fn)
		if ctx.Err() != nil {
			return nil
		}
		if received {
			bo.Reset()
			attempts = 0
		}
		attempts++
		if s.maxAttempts > 0 && attempts > s.maxAttempts {
			return fmt.Errorf("stream %s: gave up after %d attempts: %w", s.url, s.maxAttempts, err)
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		s.logger.Warn("stream disconnected, reconnecting",
			zap.String("url", s.url),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// session runs one connection. received reports whether any frame arrived.
func (s *Subscriber) session(ctx context.Context, fn func(Frame)) (received bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if len(s.events) > 0 || len(s.wallets) > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(controlMessage{Type: "subscribe", Events: s.events, Wallets: s.wallets}); err != nil {
			return false, fmt.Errorf("subscribe: %w", err)
		}
	}
	s.logger.Info("stream connected", zap.String("url", s.url))

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return received, errors.New("closed by server")
			}
			return received, err
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			s.logger.Debug("bad frame", zap.Error(err))
			continue
		}
		received = true
		fn(f)
	}
}
