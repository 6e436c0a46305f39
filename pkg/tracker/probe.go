package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/errs"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/identity"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/market"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/portfolio"
)

// ProbeSample is the first raw position returned for a wallet.
type ProbeSample struct {
	ConditionID    string  `json:"conditionId"`
	AssetID        string  `json:"assetId"`
	Outcome        string  `json:"outcome"`
	Size           float64 `json:"size"`
	MarketQuestion string  `json:"marketQuestion,omitempty"`
	MarketTitle    string  `json:"marketTitle,omitempty"`
	MarketSlug     string  `json:"marketSlug,omitempty"`
}

// ProbeReport describes what the upstream APIs return for a wallet.
type ProbeReport struct {
	Address     string           `json:"address"`
	OK          bool             `json:"ok"`
	ErrorKind   errs.Kind        `json:"errorKind,omitempty"`
	Error       string           `json:"error,omitempty"`
	Positions   int              `json:"positions"`
	Sample      *ProbeSample     `json:"sample,omitempty"`
	Metadata    *market.Metadata `json:"metadata,omitempty"`
	HasBaseline bool             `json:"hasBaseline"`
	Elapsed     time.Duration    `json:"elapsedNs"`
}

// Probe checks positions connectivity for address and resolves metadata for
// the first record. It never returns an error; failures land in the report.
func (t *Tracker) Probe(ctx context.Context, address string) (report ProbeReport) {
	address = identity.Normalize(address)
	start := time.Now()
	report = ProbeReport{Address: address, HasBaseline: t.HasBaseline(address)}
	defer func() {
		report.Elapsed = time.Since(start)
	}()

	pctx, cancel := context.WithTimeout(ctx, t.config.PositionsTimeout)
	raw, err := t.positions.GetPositions(pctx, address, portfolio.DustThreshold)
	cancel()
	if err != nil {
		report.ErrorKind = errs.KindOf(err)
		report.Error = err.Error()
		t.logger.Warn("probe failed", zap.String("wallet", address), zap.Error(err))
		return report
	}
	report.OK = true
	report.Positions = len(raw)
	if len(raw) == 0 {
		return report
	}

	first := &raw[0]
	sample := &ProbeSample{
		ConditionID: first.ConditionID(),
		AssetID:     first.AssetID(),
		Outcome:     first.Outcome(),
		Size:        first.Size.Float64(),
	}
	if first.Market != nil {
		sample.MarketQuestion = first.Market.Question
		sample.MarketTitle = first.Market.Title
		sample.MarketSlug = first.Market.Slug
	}
	report.Sample = sample

	if sample.ConditionID != "" {
		if m, ok := t.markets.Resolve(ctx, sample.ConditionID, sample.AssetID); ok {
			report.Metadata = &m
		}
	}
	return report
}
