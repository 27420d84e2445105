package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"arbflow/models"
)

// TradeLogStore persists execution records on behalf of the request layer.
type TradeLogStore struct {
	pool *pgxpool.Pool
}

func NewTradeLogStore(pool *pgxpool.Pool) *TradeLogStore {
	return &TradeLogStore{pool: pool}
}

const tradeLogCols = `id, user_id, pair, buy_exchange, sell_exchange,
	amount, buy_price, sell_price, profit_quote, profit_percentage,
	status, risk_score, executed_at`

// Insert stores one trade log and returns the assigned id.
func (s *TradeLogStore) Insert(ctx context.Context, tl models.TradeLog) (int64, error) {
	const query = `
		INSERT INTO trade_logs (
			user_id, pair, buy_exchange, sell_exchange,
			amount, buy_price, sell_price, profit_quote, profit_percentage,
			status, risk_score, executed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12
		) RETURNING id`

	executedAt := tl.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now().UTC()
	}

	var id int64
	err := s.pool.QueryRow(ctx, query,
		tl.UserID, tl.Pair, tl.BuyExchange, tl.SellExchange,
		tl.Amount, tl.BuyPrice, tl.SellPrice, tl.ProfitQuote, tl.ProfitPercentage,
		tl.Status, tl.RiskScore, executedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert trade log: %w", err)
	}
	return id, nil
}

// ListRecent returns the newest trade logs for a user, most recent first.
func (s *TradeLogStore) ListRecent(ctx context.Context, userID string, limit int) ([]models.TradeLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + tradeLogCols + `
		FROM trade_logs
		WHERE user_id = $1
		ORDER BY executed_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trade logs: %w", err)
	}
	defer rows.Close()

	var out []models.TradeLog
	for rows.Next() {
		var tl models.TradeLog
		if err := rows.Scan(
			&tl.ID, &tl.UserID, &tl.Pair, &tl.BuyExchange, &tl.SellExchange,
			&tl.Amount, &tl.BuyPrice, &tl.SellPrice, &tl.ProfitQuote, &tl.ProfitPercentage,
			&tl.Status, &tl.RiskScore, &tl.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade log: %w", err)
		}
		out = append(out, tl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate trade logs: %w", err)
	}
	return out, nil
}

// Stats aggregates a user's executed trades for the dashboard.
func (s *TradeLogStore) Stats(ctx context.Context, userID string) (models.DashboardStats, error) {
	const query = `
		SELECT
			COALESCE(SUM(profit_quote), 0),
			COUNT(*) FILTER (WHERE executed_at >= date_trunc('day', NOW()))
		FROM trade_logs
		WHERE user_id = $1 AND status = 'executed'`

	var stats models.DashboardStats
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&stats.TotalProfit, &stats.TradesToday); err != nil {
		return models.DashboardStats{}, fmt.Errorf("postgres: trade stats: %w", err)
	}
	return stats, nil
}
