package exchange

import "strings"

// VenueSymbol converts an engine symbol such as "BTC/USDT" to the market
// name a venue expects. An explicit override always wins. The live venues
// settle in USDC, so a USDT quote is rewritten to USDC.
func VenueSymbol(venue, symbol string, overrides map[string]string) string {
	if m, ok := overrides[symbol]; ok && m != "" {
		return m
	}

	base, quote, ok := strings.Cut(strings.ToUpper(symbol), "/")
	if !ok {
		return symbol
	}
	if quote == "USDT" {
		quote = "USDC"
	}

	switch venue {
	case VenueParadex:
		return base + "-" + quote + "-PERP"
	case VenueLighter:
		return base + "-" + quote
	default:
		return symbol
	}
}

// Mapper returns a symbol mapping function bound to venue and overrides.
func Mapper(venue string, overrides map[string]string) func(string) string {
	return func(symbol string) string {
		return VenueSymbol(venue, symbol, overrides)
	}
}
