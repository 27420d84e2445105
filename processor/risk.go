package processor

import (
	"github.com/shopspring/decimal"

	"arbflow/models"
)

// RiskConfig holds the scorer's thresholds and penalties. Zero values are
// replaced with defaults via Normalize so a partially configured section
// never silently disables a penalty.
type RiskConfig struct {
	BaseScore               int             `yaml:"base_score"`
	SpreadThresholdPct      decimal.Decimal `yaml:"spread_threshold_pct"`
	SpreadPenalty           int             `yaml:"spread_penalty"`
	ImplausibleProfitPct    decimal.Decimal `yaml:"implausible_profit_pct"`
	ImplausibleProfitPenalty int            `yaml:"implausible_profit_penalty"`
	UnhealthyWalletPenalty  int             `yaml:"unhealthy_wallet_penalty"`
}

// DefaultRiskConfig mirrors the tuning the dashboard shipped with: wide
// top-of-book spreads and too-good-to-be-true profits are treated as data
// quality problems, not windfalls.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		BaseScore:                15,
		SpreadThresholdPct:       decimal.RequireFromString("0.25"),
		SpreadPenalty:            25,
		ImplausibleProfitPct:     decimal.RequireFromString("6"),
		ImplausibleProfitPenalty: 40,
		UnhealthyWalletPenalty:   50,
	}
}

// Normalize fills unset fields from the defaults.
func (c RiskConfig) Normalize() RiskConfig {
	def := DefaultRiskConfig()
	if c.BaseScore <= 0 {
		c.BaseScore = def.BaseScore
	}
	if c.SpreadThresholdPct.Sign() <= 0 {
		c.SpreadThresholdPct = def.SpreadThresholdPct
	}
	if c.SpreadPenalty <= 0 {
		c.SpreadPenalty = def.SpreadPenalty
	}
	if c.ImplausibleProfitPct.Sign() <= 0 {
		c.ImplausibleProfitPct = def.ImplausibleProfitPct
	}
	if c.ImplausibleProfitPenalty <= 0 {
		c.ImplausibleProfitPenalty = def.ImplausibleProfitPenalty
	}
	if c.UnhealthyWalletPenalty <= 0 {
		c.UnhealthyWalletPenalty = def.UnhealthyWalletPenalty
	}
	return c
}

// Score rates a candidate 0-100. bookSpreadPct is the wider of the two
// venues' top-of-book spreads; netProfitQuote and tradeAmountQuote size the
// implied profit. Unhealthy wallets are filtered before scoring, but the
// scorer still penalizes them in case a caller skips that step.
func Score(cfg RiskConfig, bookSpreadPct, netProfitQuote, tradeAmountQuote decimal.Decimal, walletsHealthy bool) (int, models.RecommendationTier) {
	cfg = cfg.Normalize()
	score := cfg.BaseScore

	if bookSpreadPct.GreaterThan(cfg.SpreadThresholdPct) {
		score += cfg.SpreadPenalty
	}

	if tradeAmountQuote.Sign() > 0 {
		profitPct := netProfitQuote.Div(tradeAmountQuote).Mul(decimal.NewFromInt(100))
		if profitPct.GreaterThan(cfg.ImplausibleProfitPct) {
			score += cfg.ImplausibleProfitPenalty
		}
	}

	if !walletsHealthy {
		score += cfg.UnhealthyWalletPenalty
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return score, tierFor(score)
}

func tierFor(score int) models.RecommendationTier {
	switch {
	case score <= 30:
		return models.TierSafe
	case score <= 60:
		return models.TierCaution
	default:
		return models.TierHighRisk
	}
}
