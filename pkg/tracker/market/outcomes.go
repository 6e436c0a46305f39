package market

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OutcomeTokens holds a market's parallel outcome-name and token-id arrays.
type OutcomeTokens struct {
	Outcomes []string `json:"outcomes"`
	TokenIDs []string `json:"tokenIds"`
}

// TokenFor maps an outcome name to its token id: case-insensitive name match
// over equal-length arrays first, then the binary convention of "yes" at
// index 0 and anything else at index 1 when there are exactly two ids.
func (o OutcomeTokens) TokenFor(outcome string) (string, bool) {
	if len(o.Outcomes) == len(o.TokenIDs) {
		for i, name := range o.Outcomes {
			if strings.EqualFold(name, outcome) {
				return o.TokenIDs[i], true
			}
		}
	}
	if len(o.TokenIDs) == 2 {
		if strings.EqualFold(outcome, "yes") {
			return o.TokenIDs[0], true
		}
		return o.TokenIDs[1], true
	}
	return "", false
}

// OutcomeTokens returns the outcome/token arrays for marketID, cached for the
// resolver TTL. Not found when the CLOB returns neither array.
func (r *Resolver) OutcomeTokens(ctx context.Context, marketID string) (OutcomeTokens, bool) {
	if marketID == "" {
		return OutcomeTokens{}, false
	}
	if ot, ok, err := r.outcomes.Get(ctx, marketID); err == nil && ok {
		r.metrics.RecordCache("outcome_tokens", true)
		return ot, true
	}
	r.metrics.RecordCache("outcome_tokens", false)

	cctx, cancel := context.WithTimeout(ctx, r.timeouts.Outcome)
	defer cancel()

	start := time.Now()
	m, err := r.clob.GetMarket(cctx, marketID)
	r.metrics.RecordUpstream("clob-outcomes", err == nil, time.Since(start).Seconds())
	if err != nil {
		r.logger.Debug("outcome token lookup failed", zap.String("market", marketID), zap.Error(err))
		return OutcomeTokens{}, false
	}

	outcomes, ids := m.OutcomeTokens()
	if len(outcomes) == 0 && len(ids) == 0 {
		return OutcomeTokens{}, false
	}
	ot := OutcomeTokens{Outcomes: outcomes, TokenIDs: ids}
	if err := r.outcomes.Set(ctx, marketID, ot, r.ttl); err != nil {
		r.logger.Debug("outcome cache write failed", zap.Error(err))
	}
	return ot, true
}
