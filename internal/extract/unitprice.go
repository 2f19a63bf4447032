package extract

import "math"

// DefaultCurrency is the currency of the supported market.
const DefaultCurrency = "EUR"

type unitBasis struct {
	scale float64
	base  string
}

var unitBases = map[string]unitBasis{
	"g":   {scale: 1000, base: "kg"},
	"kg":  {scale: 1, base: "kg"},
	"ml":  {scale: 1000, base: "l"},
	"l":   {scale: 1, base: "l"},
	"vnt": {scale: 1, base: "vnt"},
}

// UnitPrice normalizes price to EUR per kg, l or item.
// ok is false for an unknown unit or a non-positive pack.
func UnitPrice(price, packValue float64, packUnit string) (value float64, label string, ok bool) {
	return UnitPriceIn(DefaultCurrency, price, packValue, packUnit)
}

// UnitPriceIn is UnitPrice with an explicit currency in the label.
func UnitPriceIn(currency string, price, packValue float64, packUnit string) (float64, string, bool) {
	basis, known := unitBases[packUnit]
	if !known {
		return 0, "", false
	}
	divisor := packValue / basis.scale
	if divisor <= 0 {
		return 0, "", false
	}
	return round(price/divisor, 4), currency + "/" + basis.base, true
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
