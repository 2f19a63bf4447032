package model

import "strings"

// SourceKind tells whether a document's text came from a paginated PDF or
// from a rendered page's text blocks.
type SourceKind string

const (
	SourcePDF  SourceKind = "pdf"
	SourceHTML SourceKind = "html"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	return k == SourcePDF || k == SourceHTML
}

// Offer is one normalized price observation.
type Offer struct {
	WeekID        string     `json:"week_id"`
	Store         string     `json:"store"`
	Title         string     `json:"title"`
	Category      *string    `json:"category"`
	Price         float64    `json:"price"`
	OldPrice      *float64   `json:"old_price"`
	Currency      string     `json:"currency"`
	PackValue     *float64   `json:"pack_value"`
	PackUnit      *string    `json:"pack_unit"`
	UnitPrice     *float64   `json:"unit_price"`
	UnitPriceUnit *string    `json:"unit_price_unit"`
	DiscountPct   *float64   `json:"discount_pct"`
	ValidFrom     *string    `json:"valid_from"`
	ValidTo       *string    `json:"valid_to"`
	SourceURL     string     `json:"source_url"`
	SourceType    SourceKind `json:"source_type"`
}

// OfferKey is the natural key used for in-batch dedupe and storage conflicts.
type OfferKey struct {
	WeekID    string
	Store     string
	TitleKey  string
	Price     float64
	HasPack   bool
	PackValue float64
	PackUnit  string
}

// TitleKey is the lowercased title stored alongside the offer.
func (o Offer) TitleKey() string {
	return strings.ToLower(o.Title)
}

// Key returns the natural key of the offer.
func (o Offer) Key() OfferKey {
	k := OfferKey{
		WeekID:   o.WeekID,
		Store:    o.Store,
		TitleKey: o.TitleKey(),
		Price:    o.Price,
	}
	if o.PackValue != nil {
		k.HasPack = true
		k.PackValue = *o.PackValue
	}
	if o.PackUnit != nil {
		k.PackUnit = *o.PackUnit
	}
	return k
}
