// Package page models the exchange trading page as an external collaborator.
// Everything the bot knows about the page is read from goquery snapshots and
// every change goes through the Page interface.
package page

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrDetached = errors.New("page detached")
	// ErrChanged means the node at an element's path is no longer the one
	// found in the snapshot.
	ErrChanged = errors.New("element changed since snapshot")
)

// Page is the live trading page. Document returns a fresh snapshot on every
// call; elements found in a snapshot are addressed by their CSS path when
// passed back to mutate the page.
type Page interface {
	Document(ctx context.Context) (*goquery.Document, error)
	// SetFieldValue sets a form control's value and fires input/change so
	// the page's own bindings observe it.
	SetFieldValue(ctx context.Context, el Element, value string) error
	Click(ctx context.Context, el Element) error
	// Value reads the current value of a form control.
	Value(ctx context.Context, el Element) (string, error)
}

// Find is a single-shot lookup of the first element matching loc.
func Find(ctx context.Context, p Page, loc Locator) (Element, bool, error) {
	doc, err := p.Document(ctx)
	if err != nil {
		return Element{}, false, err
	}
	sel := loc.Lookup(doc)
	if sel.Length() == 0 {
		return Element{}, false, nil
	}
	return NewElement(sel.First()), true, nil
}

// ReadText returns the trimmed text of the first element matching loc, or ""
// when nothing matches.
func ReadText(ctx context.Context, p Page, loc Locator) (string, error) {
	el, ok, err := Find(ctx, p, loc)
	if err != nil || !ok {
		return "", err
	}
	return el.Text(), nil
}

// Rows returns the data rows of a table selection, skipping hidden and
// measurement rows that only exist for layout.
func Rows(sel *goquery.Selection) []Element {
	var rows []Element
	sel.Each(func(_ int, s *goquery.Selection) {
		if IsStructuralRow(s) {
			return
		}
		rows = append(rows, NewElement(s))
	})
	return rows
}

func IsStructuralRow(s *goquery.Selection) bool {
	if v, ok := s.Attr("aria-hidden"); ok && v == "true" {
		return true
	}
	return s.HasClass("bn-web-table-measure-row") || s.HasClass("measure-row")
}
