package extract

import "sjsage522/leafletworker/internal/model"

// Deduper drops offers whose natural key was already seen. The first
// occurrence wins.
type Deduper struct {
	seen map[model.OfferKey]struct{}
}

// NewDeduper creates an empty deduper scoped to one extraction run.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[model.OfferKey]struct{})}
}

// Add records o and reports whether it is new.
func (d *Deduper) Add(o model.Offer) bool {
	k := o.Key()
	if _, dup := d.seen[k]; dup {
		return false
	}
	d.seen[k] = struct{}{}
	return true
}

// Filter returns the offers not seen before, preserving order.
func (d *Deduper) Filter(offers []model.Offer) []model.Offer {
	out := make([]model.Offer, 0, len(offers))
	for _, o := range offers {
		if d.Add(o) {
			out = append(out, o)
		}
	}
	return out
}

// Len is the number of distinct keys seen.
func (d *Deduper) Len() int {
	return len(d.seen)
}

// Dedupe collapses offers sharing a natural key.
func Dedupe(offers []model.Offer) []model.Offer {
	return NewDeduper().Filter(offers)
}
