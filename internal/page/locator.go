package page

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type locatorKind int

const (
	kindCSS locatorKind = iota + 1
	kindResolver
)

// Locator addresses elements either by CSS selector or by a resolver over
// the whole document.
type Locator struct {
	kind    locatorKind
	css     string
	desc    string
	resolve func(*goquery.Document) *goquery.Selection
}

func CSS(selector string) Locator {
	return Locator{kind: kindCSS, css: selector}
}

// Resolve wraps fn as a locator. desc names it in errors and logs.
func Resolve(desc string, fn func(*goquery.Document) *goquery.Selection) Locator {
	return Locator{kind: kindResolver, desc: desc, resolve: fn}
}

// WithText matches elements of selector whose trimmed text contains text.
func WithText(selector, text string) Locator {
	return Resolve(selector+` containing "`+text+`"`, func(doc *goquery.Document) *goquery.Selection {
		return doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(strings.TrimSpace(s.Text()), text)
		})
	})
}

// WithExactText matches elements of selector whose trimmed text equals text.
func WithExactText(selector, text string) Locator {
	return Resolve(selector+` = "`+text+`"`, func(doc *goquery.Document) *goquery.Selection {
		return doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.TrimSpace(s.Text()) == text
		})
	})
}

// Within narrows inner to descendants of the first outer match.
func Within(outer, inner string) Locator {
	return Resolve(outer+" "+inner, func(doc *goquery.Document) *goquery.Selection {
		return doc.Find(outer).First().Find(inner)
	})
}

// Lookup evaluates the locator against doc. It never returns nil.
func (l Locator) Lookup(doc *goquery.Document) *goquery.Selection {
	if doc == nil {
		return &goquery.Selection{}
	}
	switch l.kind {
	case kindCSS:
		return doc.Find(l.css)
	case kindResolver:
		if sel := l.resolve(doc); sel != nil {
			return sel
		}
	}
	return &goquery.Selection{}
}

func (l Locator) String() string {
	if l.kind == kindCSS {
		return l.css
	}
	return l.desc
}
