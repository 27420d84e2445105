package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeIntent carries the user-configured parameters for one evaluation
// call: how much quote currency to simulate and what counts as actionable.
type TradeIntent struct {
	Pairs               []string        `json:"pairs"`
	TradeAmountQuote    decimal.Decimal `json:"trade_amount_quote"`
	MinProfitPercentage decimal.Decimal `json:"min_profit_percentage"`
	RiskPercentage      decimal.Decimal `json:"risk_percentage"`
	RiskRewardRatio     decimal.Decimal `json:"risk_reward_ratio"`
}

// Validate enforces the evaluator's input contract. A malformed intent is a
// caller error and fails the whole evaluation call, unlike per-venue data
// problems which are skipped.
func (i TradeIntent) Validate() error {
	if len(i.Pairs) == 0 {
		return fmt.Errorf("intent: at least one pair is required")
	}
	if i.TradeAmountQuote.Sign() <= 0 {
		return fmt.Errorf("intent: trade amount must be positive, got %s", i.TradeAmountQuote)
	}
	if i.MinProfitPercentage.Sign() < 0 {
		return fmt.Errorf("intent: min profit percentage cannot be negative, got %s", i.MinProfitPercentage)
	}
	if i.RiskPercentage.Sign() < 0 {
		return fmt.Errorf("intent: risk percentage cannot be negative, got %s", i.RiskPercentage)
	}
	if i.RiskRewardRatio.Sign() < 0 {
		return fmt.Errorf("intent: risk reward ratio cannot be negative, got %s", i.RiskRewardRatio)
	}
	return nil
}
