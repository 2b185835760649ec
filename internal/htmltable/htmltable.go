// Package htmltable extracts table rows from an HTML document.
package htmltable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"gdqnow/internal/model"
)

// DefaultSelector matches the body rows of the GDQ run table.
const DefaultSelector = "#runTable tbody tr"

// ErrEmptyDocument is returned for a blank document.
var ErrEmptyDocument = errors.New("htmltable: empty document")

// Querier selects rows with a fixed CSS selector.
type Querier struct {
	Selector string
}

// New returns a Querier for selector, or DefaultSelector when empty.
func New(selector string) *Querier {
	if strings.TrimSpace(selector) == "" {
		selector = DefaultSelector
	}
	return &Querier{Selector: selector}
}

// Rows implements the refresh row query using q.Selector.
func (q *Querier) Rows(doc string) ([]model.RawRow, error) {
	return Query(doc, q.Selector)
}

// Query parses doc and returns every row matching selector. Each row holds
// the trimmed text of its direct td/th children in document order. A
// document that cannot be read fails as a whole.
func Query(doc, selector string) ([]model.RawRow, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, ErrEmptyDocument
	}

	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("htmltable: parse document: %w", err)
	}

	var rows []model.RawRow
	d.Find(selector).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td, th")
		row := make(model.RawRow, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		rows = append(rows, row)
	})

	return rows, nil
}
