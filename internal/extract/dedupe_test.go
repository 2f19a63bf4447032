package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sjsage522/leafletworker/internal/model"
)

func TestDedupeKeepsFirstSeen(t *testing.T) {
	first := model.Offer{WeekID: "2024-W05", Store: "iki", Title: "Sūris Edam", Price: 3.49, SourceURL: "https://example.com/a"}
	second := first
	second.Title = "sūris edam"
	second.SourceURL = "https://example.com/b"
	other := first
	other.Price = 3.99

	out := Dedupe([]model.Offer{first, second, other})
	assert.Len(t, out, 2)
	assert.Equal(t, "https://example.com/a", out[0].SourceURL)
	assert.Equal(t, 3.99, out[1].Price)
}

func TestDeduperAcrossBatches(t *testing.T) {
	pv, unit := 500.0, "g"
	a := model.Offer{WeekID: "2024-W05", Store: "iki", Title: "Kava", Price: 5.99, PackValue: &pv, PackUnit: &unit}
	b := a
	pv2 := 250.0
	b.PackValue = &pv2

	d := NewDeduper()
	assert.Len(t, d.Filter([]model.Offer{a}), 1)
	assert.Len(t, d.Filter([]model.Offer{a, b}), 1)
	assert.Equal(t, 2, d.Len())
}
