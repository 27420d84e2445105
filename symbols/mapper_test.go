package symbols

import "testing"

func TestToExchange(t *testing.T) {
	cases := []struct {
		exchange string
		pair     string
		want     string
	}{
		{"binance", "BTC/USDT", "BTCUSDT"},
		{"bybit", "ETH/USDT", "ETHUSDT"},
		{"kucoin", "BTC/USDT", "BTC-USDT"},
		{"okx", "SOL/USDT", "SOL-USDT"},
		{"binance", "btc/usdt", "BTCUSDT"},
		{"unknown", "BTC/USDT", "BTCUSDT"},
	}
	for _, c := range cases {
		if got := ToExchange(c.exchange, c.pair); got != c.want {
			t.Errorf("ToExchange(%q, %q) = %q, want %q", c.exchange, c.pair, got, c.want)
		}
	}
}

func TestToCanonical(t *testing.T) {
	cases := []struct {
		exchange string
		sym      string
		want     string
	}{
		{"kucoin", "BTC-USDT", "BTC/USDT"},
		{"okx", "SOL-USDT", "SOL/USDT"},
		{"binance", "BTCUSDT", "BTC/USDT"},
		{"bybit", "ETHUSDC", "ETH/USDC"},
	}
	for _, c := range cases {
		if got := ToCanonical(c.exchange, c.sym); got != c.want {
			t.Errorf("ToCanonical(%q, %q) = %q, want %q", c.exchange, c.sym, got, c.want)
		}
	}
}

func TestSplitMalformed(t *testing.T) {
	if _, _, ok := Split("BTCUSDT"); ok {
		t.Error("expected Split to reject pair without separator")
	}
	if base := BaseAsset("BTC/USDT"); base != "BTC" {
		t.Errorf("BaseAsset = %q", base)
	}
}
