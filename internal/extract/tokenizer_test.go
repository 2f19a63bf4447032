package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPrice(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		want  string
		found bool
	}{
		{"digits before price are not glued", "Pienas 100 1.99 €", "1.99", true},
		{"no space before symbol", "12.50€", "12.50", true},
		{"comma separator", "Sūris Edam 3,49 €", "3.49", true},
		{"first of two prices", "2.99 € 1.99 €", "2.99", true},
		{"four integer digits rejected", "1234.56 €", "", false},
		{"three fractional digits rejected", "1.999 €", "", false},
		{"no currency", "Pienas 1.99", "", false},
		{"plain integer", "Pienas 100 €", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, found := FindPrice(tt.line)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, tok.Text)
		})
	}
}

func TestPriceTokenSpan(t *testing.T) {
	line := "Sūris Edam 3.49 € /vnt"
	tok, found := FindPrice(line)
	require.True(t, found)
	assert.Equal(t, "3.49 €", line[tok.Start:tok.End])

	v, err := tok.Value()
	require.NoError(t, err)
	assert.InDelta(t, 3.49, v, 1e-9)
}

func TestFindPack(t *testing.T) {
	tests := []struct {
		text  string
		want  Pack
		found bool
	}{
		{"Pienas 2,5 % 1 l", Pack{Value: 1, Unit: "l"}, true},
		{"Sūris 500 g", Pack{Value: 500, Unit: "g"}, true},
		{"Sultys 1,5 L", Pack{Value: 1.5, Unit: "l"}, true},
		{"Jogurtas 330 ml", Pack{Value: 330, Unit: "ml"}, true},
		{"Bulvės 2 KG", Pack{Value: 2, Unit: "kg"}, true},
		{"Kiaušiniai 10 vnt.", Pack{Value: 10, Unit: "vnt"}, true},
		{"500 g ir 1 kg", Pack{Value: 500, Unit: "g"}, true},
		{"Duona 500g", Pack{}, false},
		{"Vanduo 1 litras", Pack{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			pack, found := FindPack(tt.text)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, pack)
		})
	}
}
