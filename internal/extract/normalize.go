package extract

import (
	"iter"
	"strings"

	"sjsage522/leafletworker/internal/model"
)

// Document is the text of one fetched leaflet: one blob per PDF page or per
// rendered page region, in document order.
type Document struct {
	Kind  model.SourceKind
	Store string
	URL   string
	Blobs []string
}

// Blocks yields, per retained blob, its trimmed non-empty lines. HTML blobs
// without a currency symbol are dropped; PDF pages are all kept. The
// sequence can be ranged over any number of times.
func Blocks(doc Document) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		for _, blob := range doc.Blobs {
			if doc.Kind == model.SourceHTML && !strings.Contains(blob, CurrencySymbol) {
				continue
			}
			lines := splitLines(blob)
			if len(lines) == 0 {
				continue
			}
			if !yield(lines) {
				return
			}
		}
	}
}

func splitLines(blob string) []string {
	var lines []string
	for _, line := range strings.Split(blob, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
