package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WalletStatus reflects whether a venue can currently move the traded asset.
type WalletStatus string

const (
	WalletStatusOK          WalletStatus = "ok"
	WalletStatusDisabled    WalletStatus = "disabled"
	WalletStatusMaintenance WalletStatus = "maintenance"
)

// OrderBookLevel is a single price level. Immutable once built.
type OrderBookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Notional returns the quote-currency value resting at this level.
func (l OrderBookLevel) Notional() decimal.Decimal {
	return l.Price.Mul(l.Size)
}

// SnapshotKey identifies one (exchange, pair) book within a cycle.
type SnapshotKey struct {
	Exchange string
	Pair     string
}

func (k SnapshotKey) String() string {
	return fmt.Sprintf("%s:%s", k.Exchange, k.Pair)
}

// OrderBookSnapshot is a normalized view of one venue's book for one pair.
// Bids are sorted descending by price, asks ascending. A snapshot is created
// once per poll cycle and superseded, never mutated.
type OrderBookSnapshot struct {
	Exchange     string           `json:"exchange"`
	Pair         string           `json:"pair"`
	Timestamp    time.Time        `json:"timestamp"`
	Bids         []OrderBookLevel `json:"bids"`
	Asks         []OrderBookLevel `json:"asks"`
	WalletStatus WalletStatus     `json:"wallet_status"`
	Networks     []string         `json:"networks"`
}

// HasDepth reports whether both sides carry at least one level.
func (s *OrderBookSnapshot) HasDepth() bool {
	return s != nil && len(s.Bids) > 0 && len(s.Asks) > 0
}

// BestBid returns the top bid price, zero when the side is empty.
func (s *OrderBookSnapshot) BestBid() decimal.Decimal {
	if len(s.Bids) == 0 {
		return decimal.Zero
	}
	return s.Bids[0].Price
}

// BestAsk returns the top ask price, zero when the side is empty.
func (s *OrderBookSnapshot) BestAsk() decimal.Decimal {
	if len(s.Asks) == 0 {
		return decimal.Zero
	}
	return s.Asks[0].Price
}

// TopSpreadPct returns (bestAsk-bestBid)/bestBid*100. Used by the risk
// scorer as a staleness/volatility proxy. Zero when either side is empty.
func (s *OrderBookSnapshot) TopSpreadPct() decimal.Decimal {
	bid, ask := s.BestBid(), s.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero
	}
	return ask.Sub(bid).Div(bid).Mul(decimal.NewFromInt(100))
}

// Validate rejects books that would poison the evaluator: crossed tops,
// non-positive prices or sizes. Data-integrity anomalies are reported as
// errors so the caller can drop the snapshot and continue the cycle.
func (s *OrderBookSnapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("nil snapshot")
	}
	if s.Exchange == "" || s.Pair == "" {
		return fmt.Errorf("snapshot missing exchange or pair")
	}
	for _, l := range s.Bids {
		if l.Price.Sign() <= 0 || l.Size.Sign() < 0 {
			return fmt.Errorf("%s: non-positive bid level %s@%s", s.Pair, l.Size, l.Price)
		}
	}
	for _, l := range s.Asks {
		if l.Price.Sign() <= 0 || l.Size.Sign() < 0 {
			return fmt.Errorf("%s: non-positive ask level %s@%s", s.Pair, l.Size, l.Price)
		}
	}
	if s.HasDepth() && s.BestBid().GreaterThan(s.BestAsk()) {
		return fmt.Errorf("%s: crossed book, bid %s > ask %s", s.Pair, s.BestBid(), s.BestAsk())
	}
	return nil
}

// WalletsHealthy reports whether the venue can deposit and withdraw.
func (s *OrderBookSnapshot) WalletsHealthy() bool {
	return s.WalletStatus == WalletStatusOK
}
