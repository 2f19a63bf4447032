package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"sjsage522/leafletworker/internal/model"
	"sjsage522/leafletworker/logger"
	pipelineerrors "sjsage522/leafletworker/pkg/errors"
)

// MinTitleLength is the minimum title length in characters.
const MinTitleLength = 3

const titleSeparators = "-–•| \t"

// Params identify the run an extraction belongs to.
type Params struct {
	WeekID   string
	Store    string
	Currency string
}

// Batch is the outcome of extracting one document.
type Batch struct {
	Offers []model.Offer
	// Skipped counts price lines rejected for a short title or a malformed token.
	Skipped int
}

// layout holds the heuristics tuned for one source kind.
type layout struct {
	title       func(lines []string, i int, tok PriceToken) string
	packContext func(lines []string, i int) string
}

var layouts = map[model.SourceKind]layout{
	model.SourceHTML: {title: titleFromPreviousLine, packContext: surroundingLines},
	model.SourcePDF:  {title: titleFromSameLine, packContext: sameLine},
}

// Extractor converts normalized lines into offer candidates.
type Extractor struct {
	params Params
}

// NewExtractor creates an extractor for one run.
func NewExtractor(p Params) *Extractor {
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	return &Extractor{params: p}
}

// Extract scans doc for price lines and returns the candidates in document
// order. Duplicates are not removed here.
func (e *Extractor) Extract(doc Document) (Batch, error) {
	lay, ok := layouts[doc.Kind]
	if !ok {
		return Batch{}, pipelineerrors.NewParsing(doc.Store, fmt.Sprintf("unsupported source kind %q", doc.Kind), nil)
	}

	var batch Batch
	for lines := range Blocks(doc) {
		for i, line := range lines {
			tok, found := FindPrice(line)
			if !found {
				continue
			}
			offer, err := e.candidate(doc, lay, lines, i, tok)
			if err != nil {
				logger.Debug("skip candidate in %s: %v", doc.URL, err)
				batch.Skipped++
				continue
			}
			batch.Offers = append(batch.Offers, offer)
		}
	}
	return batch, nil
}

func (e *Extractor) candidate(doc Document, lay layout, lines []string, i int, tok PriceToken) (model.Offer, error) {
	price, err := tok.Value()
	if err != nil {
		return model.Offer{}, pipelineerrors.NewExtraction(doc.Store, "price", err)
	}

	title := lay.title(lines, i, tok)
	if utf8.RuneCountInString(title) < MinTitleLength {
		return model.Offer{}, pipelineerrors.NewExtraction(doc.Store, fmt.Sprintf("title %q too short", title), nil)
	}

	offer := model.Offer{
		WeekID:     e.params.WeekID,
		Store:      e.params.Store,
		Title:      title,
		Price:      round(price, 2),
		Currency:   e.params.Currency,
		SourceURL:  doc.URL,
		SourceType: doc.Kind,
	}

	if pack, found := FindPack(lay.packContext(lines, i)); found {
		value, unit := pack.Value, pack.Unit
		offer.PackValue = &value
		offer.PackUnit = &unit
		if up, label, ok := UnitPriceIn(e.params.Currency, offer.Price, value, unit); ok {
			offer.UnitPrice = &up
			offer.UnitPriceUnit = &label
		}
	}
	return offer, nil
}

// titleFromPreviousLine uses the preceding line when it looks like a product
// name, else falls back to the price line itself.
func titleFromPreviousLine(lines []string, i int, tok PriceToken) string {
	if i > 0 {
		prev := lines[i-1]
		if utf8.RuneCountInString(prev) >= MinTitleLength && !HasPrice(prev) {
			return prev
		}
	}
	return titleFromSameLine(lines, i, tok)
}

// titleFromSameLine strips the price token and separator noise from the line.
func titleFromSameLine(lines []string, i int, tok PriceToken) string {
	line := lines[i]
	rest := line[:tok.Start] + " " + line[tok.End:]
	rest = strings.Join(strings.Fields(rest), " ")
	return strings.Trim(rest, titleSeparators)
}

// surroundingLines joins lines [i-2, i+2).
func surroundingLines(lines []string, i int) string {
	lo, hi := max(0, i-2), min(len(lines), i+2)
	return strings.Join(lines[lo:hi], " ")
}

func sameLine(lines []string, i int) string {
	return lines[i]
}
