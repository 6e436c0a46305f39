package clob

import (
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket"
)

const (
	// DefaultBaseURL is the CLOB API base URL
	DefaultBaseURL = polymarket.CLOBURL
)

// PriceSide selects which side of the book /price quotes.
type PriceSide string

const (
	SideBid PriceSide = "bid"
	SideAsk PriceSide = "ask"
	SideMid PriceSide = "mid"
)

// MarketInfo represents market information from CLOB.
type MarketInfo struct {
	ConditionID   string  `json:"condition_id"`
	QuestionID    string  `json:"question_id"`
	Tokens        []Token `json:"tokens"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	EndDate       string  `json:"end_date"`
	QuestionTitle string  `json:"question"`
	Slug          string  `json:"slug"`
	MarketSlug    string  `json:"market_slug"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	NegRisk       bool    `json:"neg_risk"`

	// Some deployments return Gamma-style parallel arrays instead of tokens.
	Outcomes     polymarket.StringList `json:"outcomes"`
	ClobTokenIDs polymarket.StringList `json:"clobTokenIds"`

	polymarket.SlugHints
}

// Token represents a token in a market.
type Token struct {
	TokenID string               `json:"token_id"`
	Outcome string               `json:"outcome"`
	Price   polymarket.JSONFloat `json:"price"`
	Winner  bool                 `json:"winner"`
}

// DisplayTitle returns question, falling back to description.
func (m *MarketInfo) DisplayTitle() string {
	return polymarket.FirstNonEmpty(m.QuestionTitle, m.Description)
}

// DisplaySlug returns slug, falling back to market_slug.
func (m *MarketInfo) DisplaySlug() string {
	return polymarket.FirstNonEmpty(m.Slug, m.MarketSlug)
}

// OutcomeTokens returns the parallel outcome-name and token-id arrays,
// preferring the tokens list.
func (m *MarketInfo) OutcomeTokens() (outcomes, tokenIDs []string) {
	if len(m.Tokens) > 0 {
		outcomes = make([]string, 0, len(m.Tokens))
		tokenIDs = make([]string, 0, len(m.Tokens))
		for _, t := range m.Tokens {
			outcomes = append(outcomes, t.Outcome)
			tokenIDs = append(tokenIDs, t.TokenID)
		}
		return outcomes, tokenIDs
	}
	return []string(m.Outcomes), []string(m.ClobTokenIDs)
}
