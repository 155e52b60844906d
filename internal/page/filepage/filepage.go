// Package filepage serves saved order-history pages as a read-only Page.
// Pages are loaded through colly with a file transport so saved snapshots go
// through the same fetch path as live ones.
package filepage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/store"
)

var ErrReadOnly = errors.New("saved page is read-only")

// Page holds saved history pages, first page first. Clicking a numbered
// pagination item switches to that page and the reset control goes back to
// the first one. Every other click is accepted and ignored.
type Page struct {
	sel   store.Selectors
	pages [][]byte

	mu      sync.Mutex
	current int
}

var _ page.Page = (*Page)(nil)

func FromHTML(sel store.Selectors, pages ...string) *Page {
	p := &Page{sel: sel}
	for _, h := range pages {
		p.pages = append(p.pages, []byte(h))
	}
	return p
}

// LoadDir loads every .html/.htm file in dir, ordered by file name.
func LoadDir(ctx context.Context, sel store.Selectors, dir string) (*Page, error) {
	var paths []string
	for _, pattern := range []string{"*.html", "*.htm"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, m...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no saved pages in %s", dir)
	}
	sort.Strings(paths)
	return LoadFiles(ctx, sel, paths...)
}

// LoadFiles loads the given files in order.
func LoadFiles(ctx context.Context, sel store.Selectors, paths ...string) (*Page, error) {
	t := &http.Transport{}
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))

	// Saved pages carry the exchange's inline bundles; a truncated body would
	// silently drop history rows.
	c := colly.NewCollector(colly.AllowURLRevisit(), colly.MaxBodySize(0))
	c.WithTransport(t)

	bodies := make(map[string][]byte, len(paths))
	var visitErr error
	c.OnResponse(func(r *colly.Response) {
		bodies[r.Request.URL.Path] = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("load %s: %w", r.Request.URL.Path, err)
	})

	urlPaths := make([]string, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		urlPath := filepath.ToSlash(abs)
		if !strings.HasPrefix(urlPath, "/") {
			urlPath = "/" + urlPath
		}
		if err := c.Visit("file://" + urlPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if visitErr != nil {
			return nil, visitErr
		}
		urlPaths = append(urlPaths, urlPath)
	}
	c.Wait()

	p := &Page{sel: sel}
	for i, up := range urlPaths {
		body, ok := bodies[up]
		if !ok {
			return nil, fmt.Errorf("load %s: empty response", paths[i])
		}
		p.pages = append(p.pages, body)
	}
	return p, nil
}

func (p *Page) Len() int {
	return len(p.pages)
}

func (p *Page) Document(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc()
}

// doc parses the current page. Caller holds mu.
func (p *Page) doc() (*goquery.Document, error) {
	if len(p.pages) == 0 {
		return goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(p.pages[p.current]))
}

func (p *Page) Click(ctx context.Context, el page.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.doc()
	if err != nil {
		return err
	}
	target := doc.Find(el.Path).First()
	if target.Length() == 0 {
		return fmt.Errorf("%w: %s", page.ErrDetached, el.Path)
	}
	if !el.Fingerprint().Matches(target) {
		return fmt.Errorf("%w: %s", page.ErrChanged, el.Path)
	}

	switch {
	case p.sel.PageItem != "" && target.Is(p.sel.PageItem):
		n, err := strconv.Atoi(strings.TrimSpace(target.Text()))
		if err == nil && n >= 1 && n <= len(p.pages) {
			p.current = n - 1
		}
	case p.isReset(target):
		p.current = 0
	}
	return nil
}

func (p *Page) isReset(s *goquery.Selection) bool {
	if p.sel.ResetButton != "" && (s.Is(p.sel.ResetButton) || s.Closest(p.sel.ResetButton).Length() > 0) {
		return true
	}
	return p.sel.ResetText != "" && s.Is("button") && strings.Contains(s.Text(), p.sel.ResetText)
}

func (p *Page) SetFieldValue(ctx context.Context, el page.Element, value string) error {
	return fmt.Errorf("%w: %s", ErrReadOnly, el.Path)
}

func (p *Page) Value(ctx context.Context, el page.Element) (string, error) {
	doc, err := p.Document(ctx)
	if err != nil {
		return "", err
	}
	v, _ := doc.Find(el.Path).First().Attr("value")
	return v, nil
}
