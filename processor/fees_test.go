package processor

import "testing"

func TestComputeCostsScenario(t *testing.T) {
	// 1000 quote at 0.1% taker on both legs plus a flat 1.0 withdrawal:
	// buy fee 1, sell fee 102*10*0.001 = 1.02, total 3.02.
	got := ComputeCosts(d("1000"), d("0.001"), d("0.001"), d("1"), d("100"), d("102"))
	if !got.Equal(d("3.02")) {
		t.Errorf("ComputeCosts = %s, want 3.02", got)
	}
}

func TestComputeCostsZeroBuyVWAP(t *testing.T) {
	if got := ComputeCosts(d("1000"), d("0.001"), d("0.001"), d("1"), d("0"), d("102")); !got.IsZero() {
		t.Errorf("ComputeCosts with zero buy VWAP = %s, want 0", got)
	}
}

func TestComputeCostsScalesWithAmount(t *testing.T) {
	small := ComputeCosts(d("100"), d("0.001"), d("0.001"), d("1"), d("100"), d("102"))
	large := ComputeCosts(d("10000"), d("0.001"), d("0.001"), d("1"), d("100"), d("102"))
	if !large.GreaterThan(small) {
		t.Errorf("fees must grow with notional: %s vs %s", small, large)
	}
}
