package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeLog is a persisted record of a user acting on an opportunity. The
// engine's role ends at producing the Opportunity; execution records are
// written by the trade log store on behalf of the request layer.
type TradeLog struct {
	ID               int64           `json:"id"`
	UserID           string          `json:"user_id"`
	Pair             string          `json:"pair"`
	BuyExchange      string          `json:"buy_exchange"`
	SellExchange     string          `json:"sell_exchange"`
	Amount           decimal.Decimal `json:"amount"`
	BuyPrice         decimal.Decimal `json:"buy_price"`
	SellPrice        decimal.Decimal `json:"sell_price"`
	ProfitQuote      decimal.Decimal `json:"profit_quote"`
	ProfitPercentage decimal.Decimal `json:"profit_percentage"`
	Status           string          `json:"status"` // executed, failed, simulated
	RiskScore        int             `json:"risk_score"`
	ExecutedAt       time.Time       `json:"executed_at"`
}

// BotSettings is the per-user scan configuration supplied by the settings
// store. The engine reads it each cycle and never writes it back.
type BotSettings struct {
	UserID              string          `json:"user_id"`
	IsActive            bool            `json:"is_active"`
	RiskLevel           string          `json:"risk_level"` // low, medium, high
	MinProfitPercentage decimal.Decimal `json:"min_profit_percentage"`
	TradeAmountQuote    decimal.Decimal `json:"trade_amount_quote"`
	RefreshRateSec      int             `json:"refresh_rate_sec"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// DashboardStats summarizes trade history for the dashboard endpoint.
type DashboardStats struct {
	TotalProfit decimal.Decimal `json:"total_profit"`
	TradesToday int             `json:"trades_today"`
}
