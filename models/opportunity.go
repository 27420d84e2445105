package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityStatus tells the consumer whether the candidate clears the
// user's minimum profit threshold or is merely being tracked.
type OpportunityStatus string

const (
	StatusAvailable OpportunityStatus = "available"
	StatusAnalyzing OpportunityStatus = "analyzing"
)

// RecommendationTier buckets the risk score for display.
type RecommendationTier string

const (
	TierSafe     RecommendationTier = "safe"
	TierCaution  RecommendationTier = "caution"
	TierHighRisk RecommendationTier = "high_risk"
)

// Recommendation returns the display text for a tier. Derived, never stored.
func (t RecommendationTier) Recommendation() string {
	switch t {
	case TierSafe:
		return "Spread is stable and fees are covered; safe to execute."
	case TierCaution:
		return "Profitable but volatile; verify books before executing."
	default:
		return "Spread looks anomalous; likely stale data, do not execute."
	}
}

// Opportunity is one profitable cross-exchange candidate. Constructed fresh
// each evaluation cycle; immutable; never persisted by the engine itself.
type Opportunity struct {
	ID                  string             `json:"id"`
	Pair                string             `json:"pair"`
	BuyExchange         string             `json:"buy_exchange"`
	SellExchange        string             `json:"sell_exchange"`
	BuyVWAP             decimal.Decimal    `json:"buy_vwap"`
	SellVWAP            decimal.Decimal    `json:"sell_vwap"`
	GrossSpreadPct      decimal.Decimal    `json:"gross_spread_pct"`
	FeesPct             decimal.Decimal    `json:"fees_pct"`
	NetProfitPct        decimal.Decimal    `json:"net_profit_pct"`
	ExpectedProfitQuote decimal.Decimal    `json:"expected_profit_quote"`
	RiskScore           int                `json:"risk_score"`
	RecommendationTier  RecommendationTier `json:"recommendation_tier"`
	Status              OpportunityStatus  `json:"status"`
	CommonNetwork       string             `json:"common_network"`
	DetectedAt          time.Time          `json:"detected_at"`
}

// OpportunityView is the API-facing rendering: numeric fields are fixed
// decimal strings so downstream consumers never re-round floats.
type OpportunityView struct {
	ID                  string `json:"id"`
	Pair                string `json:"pair"`
	BuyExchange         string `json:"buy_exchange"`
	SellExchange        string `json:"sell_exchange"`
	BuyVWAP             string `json:"buy_vwap"`
	SellVWAP            string `json:"sell_vwap"`
	GrossSpreadPct      string `json:"gross_spread_pct"`
	FeesPct             string `json:"fees_pct"`
	NetProfitPct        string `json:"net_profit_pct"`
	ExpectedProfitQuote string `json:"expected_profit_quote"`
	RiskScore           int    `json:"risk_score"`
	RecommendationTier  string `json:"recommendation_tier"`
	Recommendation      string `json:"recommendation"`
	Status              string `json:"status"`
	CommonNetwork       string `json:"common_network"`
	DetectedAt          string `json:"detected_at"`
}

// Display renders the opportunity for the request/response boundary.
func (o Opportunity) Display() OpportunityView {
	return OpportunityView{
		ID:                  o.ID,
		Pair:                o.Pair,
		BuyExchange:         o.BuyExchange,
		SellExchange:        o.SellExchange,
		BuyVWAP:             o.BuyVWAP.StringFixed(8),
		SellVWAP:            o.SellVWAP.StringFixed(8),
		GrossSpreadPct:      o.GrossSpreadPct.StringFixed(4),
		FeesPct:             o.FeesPct.StringFixed(4),
		NetProfitPct:        o.NetProfitPct.StringFixed(4),
		ExpectedProfitQuote: o.ExpectedProfitQuote.StringFixed(2),
		RiskScore:           o.RiskScore,
		RecommendationTier:  string(o.RecommendationTier),
		Recommendation:      o.RecommendationTier.Recommendation(),
		Status:              string(o.Status),
		CommonNetwork:       o.CommonNetwork,
		DetectedAt:          o.DetectedAt.UTC().Format(time.RFC3339),
	}
}

// OpportunityBatch groups one scan cycle's output. Snapshots feeding a batch
// all come from the same aggregation pass.
type OpportunityBatch struct {
	CycleID       string        `json:"cycle_id"`
	Opportunities []Opportunity `json:"opportunities"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}
