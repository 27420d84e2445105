package processor

import (
	"testing"

	"github.com/shopspring/decimal"

	"arbflow/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func levels(pairs ...[2]string) []models.OrderBookLevel {
	out := make([]models.OrderBookLevel, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, models.OrderBookLevel{Price: d(p[0]), Size: d(p[1])})
	}
	return out
}

func TestEstimateVWAPExactFill(t *testing.T) {
	// 100 notional is fully covered by the first level.
	book := levels([2]string{"100", "1"}, [2]string{"101", "2"})
	got := EstimateVWAP(book, d("100"))
	if !got.Equal(d("100")) {
		t.Errorf("EstimateVWAP = %s, want 100", got)
	}
}

func TestEstimateVWAPSingleLevelSufficient(t *testing.T) {
	book := levels([2]string{"250.5", "10"})
	if got := EstimateVWAP(book, d("1000")); !got.Equal(d("250.5")) {
		t.Errorf("EstimateVWAP = %s, want 250.5", got)
	}
}

func TestEstimateVWAPWalksTheBook(t *testing.T) {
	// 150 notional: 100 from level one, 50 from level two at 101.
	book := levels([2]string{"100", "1"}, [2]string{"101", "2"})
	got := EstimateVWAP(book, d("150"))
	if !got.GreaterThan(d("100")) || !got.LessThan(d("101")) {
		t.Errorf("EstimateVWAP = %s, want between 100 and 101", got)
	}
}

func TestEstimateVWAPPessimisticFallback(t *testing.T) {
	// Single shallow level: shortfall priced at the only price seen.
	book := levels([2]string{"100", "1"})
	if got := EstimateVWAP(book, d("500")); !got.Equal(d("100")) {
		t.Errorf("EstimateVWAP = %s, want 100", got)
	}

	// Two levels, 300 target against 210 of depth: remaining 90 priced at 110.
	book = levels([2]string{"100", "1"}, [2]string{"110", "1"})
	got := EstimateVWAP(book, d("300"))
	// 300 / (1 + 1 + 90/110) = 106.45161290...
	if !got.Round(8).Equal(d("106.4516129")) {
		t.Errorf("EstimateVWAP = %s, want 106.45161290", got)
	}
	if !got.GreaterThan(d("105")) {
		t.Errorf("shortfall pricing must bias against the trader, got %s", got)
	}
}

func TestEstimateVWAPEmptyBook(t *testing.T) {
	if got := EstimateVWAP(nil, d("100")); !got.IsZero() {
		t.Errorf("EstimateVWAP(nil) = %s, want 0", got)
	}
	zeroSize := levels([2]string{"100", "0"})
	if got := EstimateVWAP(zeroSize, d("100")); !got.IsZero() {
		t.Errorf("EstimateVWAP(zero sizes) = %s, want 0", got)
	}
}

func TestEstimateVWAPMonotonicAsks(t *testing.T) {
	book := levels([2]string{"100", "2"}, [2]string{"105", "3"}, [2]string{"110", "5"})
	prev := decimal.Zero
	for _, target := range []string{"100", "300", "600", "1200"} {
		got := EstimateVWAP(book, d(target))
		if got.LessThan(prev) {
			t.Fatalf("ask VWAP decreased from %s to %s at target %s", prev, got, target)
		}
		prev = got
	}
}

func TestEstimateVWAPMonotonicBids(t *testing.T) {
	book := levels([2]string{"100", "2"}, [2]string{"95", "3"}, [2]string{"90", "5"})
	prev := d("1000000")
	for _, target := range []string{"100", "300", "600"} {
		got := EstimateVWAP(book, d(target))
		if got.GreaterThan(prev) {
			t.Fatalf("bid VWAP increased from %s to %s at target %s", prev, got, target)
		}
		prev = got
	}
}
