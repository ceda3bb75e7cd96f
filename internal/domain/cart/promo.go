package cart

import "strings"

// promoTable is the fixed set of known codes. A networked variant would
// validate against the backend instead.
var promoTable = map[string]Promo{
	"WELCOME10": {Code: "WELCOME10", Kind: PromoPercentage, Value: 10, Description: "10% off your order"},
	"SAVE20":    {Code: "SAVE20", Kind: PromoPercentage, Value: 20, Description: "20% off your order"},
	"FIRST5":    {Code: "FIRST5", Kind: PromoFixed, Value: 5000, Description: "5000 off your first order"},
}

// LookupPromo resolves a code case-insensitively.
func LookupPromo(code string) (Promo, bool) {
	promo, ok := promoTable[strings.ToUpper(strings.TrimSpace(code))]
	return promo, ok
}
