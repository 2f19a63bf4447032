// Package extract turns raw leaflet text into structured, deduplicated offers.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CurrencySymbol marks a price token in leaflet text.
const CurrencySymbol = "€"

var (
	// 1-3 integer digits, '.' or ',', exactly two fractional digits, then the
	// currency symbol. The leading group keeps "100 1.99 €" from matching "00 1".
	priceRe = regexp.MustCompile(`(?:^|[^0-9])([0-9]{1,3}[.,][0-9]{2})\s*` + CurrencySymbol)

	packRe = regexp.MustCompile(`(?i)([0-9]+(?:[.,][0-9]+)?)\s+(kg|g|ml|l|vnt)\b`)
)

// PriceToken is a currency-marked price found in a line.
type PriceToken struct {
	// Text is the decimal with ',' replaced by '.', e.g. "1.99".
	Text string
	// Start and End delimit the token in the line, currency symbol included.
	Start int
	End   int
}

// Value parses the token text.
func (t PriceToken) Value() (float64, error) {
	v, err := strconv.ParseFloat(t.Text, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed price token %q: %w", t.Text, err)
	}
	return v, nil
}

// FindPrice returns the first price token in line.
func FindPrice(line string) (PriceToken, bool) {
	m := priceRe.FindStringSubmatchIndex(line)
	if m == nil {
		return PriceToken{}, false
	}
	return PriceToken{
		Text:  strings.Replace(line[m[2]:m[3]], ",", ".", 1),
		Start: m[2],
		End:   m[1],
	}, true
}

// HasPrice reports whether line carries a price token.
func HasPrice(line string) bool {
	return priceRe.MatchString(line)
}

// Pack is a quantity with its unit, e.g. 500 g.
type Pack struct {
	Value float64
	Unit  string
}

// FindPack returns the first quantity+unit token in text. Units are
// lowercased; only kg, g, l, ml and vnt are recognized.
func FindPack(text string) (Pack, bool) {
	m := packRe.FindStringSubmatch(text)
	if m == nil {
		return Pack{}, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return Pack{}, false
	}
	return Pack{Value: v, Unit: strings.ToLower(m[2])}, true
}
