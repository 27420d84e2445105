package processor

import (
	"github.com/shopspring/decimal"

	"arbflow/models"
)

// EstimateVWAP computes the effective fill price for a market order of
// targetNotional quote units against the given levels. Levels must already
// be ordered best-first (ascending asks, descending bids); the function
// walks them in that order, consuming from each level the lesser of its
// resting notional and the remaining unfilled amount.
//
// When the book is too shallow for the target, the unfilled remainder is
// priced at the worst level seen, biasing the estimate against the trader.
// Returns zero for an empty book or one with only zero-size levels.
func EstimateVWAP(levels []models.OrderBookLevel, targetNotional decimal.Decimal) decimal.Decimal {
	if targetNotional.Sign() <= 0 {
		return decimal.Zero
	}

	remaining := targetNotional
	totalCost := decimal.Zero
	totalVolume := decimal.Zero
	lastPrice := decimal.Zero

	for _, level := range levels {
		if level.Price.Sign() <= 0 || level.Size.Sign() <= 0 {
			continue
		}
		lastPrice = level.Price

		take := level.Notional()
		if take.GreaterThan(remaining) {
			take = remaining
		}

		totalCost = totalCost.Add(take)
		totalVolume = totalVolume.Add(take.Div(level.Price))
		remaining = remaining.Sub(take)

		if remaining.Sign() <= 0 {
			break
		}
	}

	// Shortfall: price the rest at the worst level reached.
	if remaining.Sign() > 0 && lastPrice.Sign() > 0 {
		totalCost = totalCost.Add(remaining)
		totalVolume = totalVolume.Add(remaining.Div(lastPrice))
	}

	if totalVolume.Sign() <= 0 {
		return decimal.Zero
	}
	return totalCost.Div(totalVolume)
}
