package writer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"arbflow/config"
	"arbflow/logger"
)

// Schema bootstrap executed on connect. Idempotent; real migrations are a
// deployment concern, but a fresh database must be usable out of the box.
const schema = `
CREATE TABLE IF NOT EXISTS trade_logs (
	id                BIGSERIAL PRIMARY KEY,
	user_id           TEXT        NOT NULL,
	pair              TEXT        NOT NULL,
	buy_exchange      TEXT        NOT NULL,
	sell_exchange     TEXT        NOT NULL,
	amount            NUMERIC     NOT NULL,
	buy_price         NUMERIC     NOT NULL,
	sell_price        NUMERIC     NOT NULL,
	profit_quote      NUMERIC     NOT NULL,
	profit_percentage NUMERIC     NOT NULL,
	status            TEXT        NOT NULL,
	risk_score        INT         NOT NULL DEFAULT 0,
	executed_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS trade_logs_user_executed_idx
	ON trade_logs (user_id, executed_at DESC);

CREATE TABLE IF NOT EXISTS bot_settings (
	user_id               TEXT PRIMARY KEY,
	is_active             BOOLEAN     NOT NULL DEFAULT FALSE,
	risk_level            TEXT        NOT NULL DEFAULT 'medium',
	min_profit_percentage NUMERIC     NOT NULL,
	trade_amount_quote    NUMERIC     NOT NULL,
	refresh_rate_sec      INT         NOT NULL DEFAULT 30,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// NewPool connects to PostgreSQL and ensures the schema exists.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: bootstrap schema: %w", err)
	}

	logger.GetLogger().WithComponent("postgres").WithFields(logger.Fields{
		"max_conns": poolCfg.MaxConns,
	}).Info("postgres pool ready")

	return pool, nil
}
