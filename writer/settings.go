package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"arbflow/models"
)

// SettingsStore reads and writes per-user scan configuration. The scanner
// only ever reads; writes come from the API layer.
type SettingsStore struct {
	pool *pgxpool.Pool
}

func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// DefaultSettings is returned when a user has never saved settings.
func DefaultSettings(userID string) models.BotSettings {
	return models.BotSettings{
		UserID:              userID,
		IsActive:            false,
		RiskLevel:           "medium",
		MinProfitPercentage: decimal.RequireFromString("0.8"),
		TradeAmountQuote:    decimal.RequireFromString("1000"),
		RefreshRateSec:      30,
	}
}

// Get loads a user's settings, falling back to defaults when none exist.
func (s *SettingsStore) Get(ctx context.Context, userID string) (models.BotSettings, error) {
	const query = `
		SELECT user_id, is_active, risk_level, min_profit_percentage,
			trade_amount_quote, refresh_rate_sec, updated_at
		FROM bot_settings
		WHERE user_id = $1`

	var bs models.BotSettings
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&bs.UserID, &bs.IsActive, &bs.RiskLevel, &bs.MinProfitPercentage,
		&bs.TradeAmountQuote, &bs.RefreshRateSec, &bs.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(userID), nil
	}
	if err != nil {
		return models.BotSettings{}, fmt.Errorf("postgres: get settings: %w", err)
	}
	return bs, nil
}

// Upsert saves a user's settings, overwriting any previous row.
func (s *SettingsStore) Upsert(ctx context.Context, bs models.BotSettings) error {
	const query = `
		INSERT INTO bot_settings (
			user_id, is_active, risk_level, min_profit_percentage,
			trade_amount_quote, refresh_rate_sec, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			is_active             = EXCLUDED.is_active,
			risk_level            = EXCLUDED.risk_level,
			min_profit_percentage = EXCLUDED.min_profit_percentage,
			trade_amount_quote    = EXCLUDED.trade_amount_quote,
			refresh_rate_sec      = EXCLUDED.refresh_rate_sec,
			updated_at            = EXCLUDED.updated_at`

	updatedAt := bs.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		bs.UserID, bs.IsActive, bs.RiskLevel, bs.MinProfitPercentage,
		bs.TradeAmountQuote, bs.RefreshRateSec, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert settings %s: %w", bs.UserID, err)
	}
	return nil
}
