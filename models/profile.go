package models

import "github.com/shopspring/decimal"

// Default fee schedule applied when a venue profile is incomplete. The
// substitution is explicit: a missing rate becomes the default, never zero,
// so a half-configured venue cannot look artificially cheap.
var (
	DefaultMakerFee          = decimal.RequireFromString("0.001")
	DefaultTakerFee          = decimal.RequireFromString("0.001")
	DefaultWithdrawalFeeUsdt = decimal.RequireFromString("1.0")
)

// ExchangeProfile is static per-venue metadata. Owned by configuration; the
// evaluator only reads it.
type ExchangeProfile struct {
	Name              string          `json:"name"`
	MakerFee          decimal.Decimal `json:"maker_fee"`
	TakerFee          decimal.Decimal `json:"taker_fee"`
	WithdrawalFeeUsdt decimal.Decimal `json:"withdrawal_fee_usdt"`
	Networks          []string        `json:"networks"`
}

// Normalize returns a copy with default fees substituted for unset fields.
func (p ExchangeProfile) Normalize() ExchangeProfile {
	out := p
	if out.MakerFee.IsZero() {
		out.MakerFee = DefaultMakerFee
	}
	if out.TakerFee.IsZero() {
		out.TakerFee = DefaultTakerFee
	}
	if out.WithdrawalFeeUsdt.IsZero() {
		out.WithdrawalFeeUsdt = DefaultWithdrawalFeeUsdt
	}
	return out
}

// CurrencyStatus is the per-asset health a gateway reports for its venue.
type CurrencyStatus struct {
	WalletStatus WalletStatus `json:"wallet_status"`
	Networks     []string     `json:"networks"`
}

// CommonNetwork returns the lexicographically first settlement network both
// venues support, or "" when they share none. Deterministic so repeated
// evaluations of the same inputs emit identical opportunities.
func CommonNetwork(a, b []string) string {
	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	best := ""
	for _, n := range b {
		if _, ok := set[n]; !ok {
			continue
		}
		if best == "" || n < best {
			best = n
		}
	}
	return best
}
