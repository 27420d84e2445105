package processor

import "github.com/shopspring/decimal"

// ComputeCosts returns the total round-trip cost in quote currency for
// buying tradeAmountQuote at buyVWAP on one venue and selling the acquired
// base on another at sellVWAP. Fee rates are fractions (0.001 = 0.1%); the
// withdrawal fee is a flat quote-currency amount covering the asset
// transfer between venues. Callers pass venue profiles through
// ExchangeProfile.Normalize so incomplete schedules fall back to documented
// defaults rather than zero.
func ComputeCosts(tradeAmountQuote, buyTakerFee, sellTakerFee, withdrawalFeeQuote, buyVWAP, sellVWAP decimal.Decimal) decimal.Decimal {
	if buyVWAP.Sign() <= 0 {
		return decimal.Zero
	}
	buyFee := tradeAmountQuote.Mul(buyTakerFee)
	baseAcquired := tradeAmountQuote.Div(buyVWAP)
	sellFee := sellVWAP.Mul(baseAcquired).Mul(sellTakerFee)
	return buyFee.Add(sellFee).Add(withdrawalFeeQuote)
}
