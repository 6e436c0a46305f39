// Package quote estimates a likely execution price for an outcome token.
package quote

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/clob"
)

// Intent is the trade direction being priced.
type Intent string

const (
	Buy  Intent = "BUY"
	Sell Intent = "SELL"
)

// PriceClient is the subset of the CLOB client the service needs.
type PriceClient interface {
	GetPrice(ctx context.Context, tokenID string, side clob.PriceSide) (float64, error)
}

// Service quotes prices. It holds no state between calls.
type Service struct {
	client  PriceClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewService creates a quote service. timeout bounds each upstream request.
func NewService(client PriceClient, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{client: client, timeout: timeout, logger: logger}
}

// Price returns the bid for a sell or the ask for a buy, falling back once
// to the midpoint. It returns 0 when neither yields a positive price.
func (s *Service) Price(ctx context.Context, assetID string, intent Intent) float64 {
	if assetID == "" {
		return 0
	}
	side := clob.SideAsk
	if intent == Sell {
		side = clob.SideBid
	}
	if p := s.fetch(ctx, assetID, side); p > 0 {
		return p
	}
	return s.fetch(ctx, assetID, clob.SideMid)
}

// Mid returns the midpoint, or 0.
func (s *Service) Mid(ctx context.Context, assetID string) float64 {
	if assetID == "" {
		return 0
	}
	return s.fetch(ctx, assetID, clob.SideMid)
}

func (s *Service) fetch(ctx context.Context, assetID string, side clob.PriceSide) float64 {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.client.GetPrice(ctx, assetID, side)
	if err != nil {
		s.logger.Debug("quote failed", zap.String("asset", assetID), zap.String("side", string(side)), zap.Error(err))
		return 0
	}
	if p <= 0 {
		return 0
	}
	return p
}
