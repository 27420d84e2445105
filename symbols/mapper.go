package symbols

import "strings"

// ToExchange converts a canonical "BASE/QUOTE" pair to the symbol format a
// venue expects. Binance and Bybit join the assets, KuCoin and OKX use a
// dash. Unknown venues get the joined form, which is the most common.
func ToExchange(exchange, pair string) string {
	base, quote, ok := Split(pair)
	if !ok {
		return strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
	}
	switch strings.ToLower(exchange) {
	case "kucoin", "okx":
		return base + "-" + quote
	default:
		return base + quote
	}
}

// Split breaks a canonical pair into its uppercase base and quote assets.
func Split(pair string) (base, quote string, ok bool) {
	parts := strings.SplitN(pair, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), true
}

// BaseAsset returns the traded asset of a canonical pair, "" when malformed.
func BaseAsset(pair string) string {
	base, _, ok := Split(pair)
	if !ok {
		return ""
	}
	return base
}

// ToCanonical converts a venue symbol back to "BASE/QUOTE". Dashed formats
// map directly; joined formats are resolved against the known quote asset
// suffixes used across the supported venues.
func ToCanonical(exchange, sym string) string {
	sym = strings.ToUpper(sym)
	if strings.Contains(sym, "-") {
		return strings.Replace(sym, "-", "/", 1)
	}
	for _, quote := range []string{"USDT", "USDC", "BUSD", "BTC", "ETH", "EUR"} {
		if strings.HasSuffix(sym, quote) && len(sym) > len(quote) {
			return sym[:len(sym)-len(quote)] + "/" + quote
		}
	}
	return sym
}
