package page

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element is a handle to a node of one page snapshot. Path is a CSS selector
// that uniquely addresses the node in that snapshot.
type Element struct {
	Path string
	sel  *goquery.Selection
}

func NewElement(sel *goquery.Selection) Element {
	var n *html.Node
	if sel != nil && sel.Length() > 0 {
		n = sel.Get(0)
	}
	return Element{Path: NodePath(n), sel: sel}
}

func (e Element) IsZero() bool {
	return e.sel == nil || e.sel.Length() == 0
}

func (e Element) Selection() *goquery.Selection {
	if e.sel == nil {
		return &goquery.Selection{}
	}
	return e.sel
}

func (e Element) Text() string {
	return strings.TrimSpace(e.Selection().Text())
}

func (e Element) Attr(name string) (string, bool) {
	return e.Selection().Attr(name)
}

func (e Element) HasClass(class string) bool {
	return e.Selection().HasClass(class)
}

func (e Element) String() string {
	return e.Path
}

// Fingerprint identifies the node a path pointed at in its snapshot. Pages
// check it before acting, since a re-render can move another node onto the
// same nth-child path.
type Fingerprint struct {
	Tag string
	ID  string
	// Text is the whitespace-collapsed text, empty when the node has none or
	// when it is too long to be a stable label.
	Text string
}

const maxFingerprintText = 80

func (e Element) Fingerprint() Fingerprint {
	if e.IsZero() {
		return Fingerprint{}
	}
	return FingerprintOf(e.sel.First())
}

func FingerprintOf(sel *goquery.Selection) Fingerprint {
	if sel.Length() == 0 {
		return Fingerprint{}
	}
	fp := Fingerprint{Tag: goquery.NodeName(sel)}
	fp.ID, _ = sel.Attr("id")
	if text := CollapseSpace(sel.Text()); len(text) <= maxFingerprintText {
		fp.Text = text
	}
	return fp
}

// Matches reports whether sel is still the node fp was taken from. A zero
// fingerprint matches anything.
func (fp Fingerprint) Matches(sel *goquery.Selection) bool {
	if fp.Tag == "" {
		return true
	}
	if sel.Length() == 0 {
		return false
	}
	cur := FingerprintOf(sel.First())
	return cur.Tag == fp.Tag && cur.ID == fp.ID && (fp.Text == "" || cur.Text == fp.Text)
}

// CollapseSpace trims s and joins its whitespace runs with single spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NodePath builds "html > body:nth-child(2) > div:nth-child(1) ..." for n.
// The path is only valid for the snapshot it came from; see Fingerprint.
func NodePath(n *html.Node) string {
	var parts []string
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			parts = append(parts, n.Data)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", n.Data, childIndex(n)))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func childIndex(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			idx++
		}
	}
	return idx
}
