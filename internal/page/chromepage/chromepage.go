// Package chromepage drives the live trading page in a Chrome tab over the
// DevTools protocol.
package chromepage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/page"
)

type Options struct {
	// URL of the trading page. Empty keeps whatever the new tab shows.
	URL string
	// RemoteURL attaches to a running browser (ws://host:9222) instead of
	// launching one. Use it to reuse a logged-in session.
	RemoteURL   string
	UserDataDir string
	Headless    bool
	// ActionInterval is the minimum gap between clicks and field updates.
	ActionInterval time.Duration
}

type Page struct {
	tab     context.Context
	close   func()
	limiter *rate.Limiter
}

var _ page.Page = (*Page)(nil)

// Open starts or attaches to a browser and opens the trading page in a new
// tab. Close releases both.
func Open(ctx context.Context, opts Options) (*Page, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		flags := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
		)
		if opts.UserDataDir != "" {
			flags = append(flags, chromedp.UserDataDir(opts.UserDataDir))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, flags...)
	}

	tab, cancelTab := chromedp.NewContext(allocCtx)
	p := &Page{
		tab: tab,
		close: func() {
			cancelTab()
			cancelAlloc()
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	if opts.ActionInterval > 0 {
		p.limiter = rate.NewLimiter(rate.Every(opts.ActionInterval), 1)
	}

	actions := []chromedp.Action{}
	if opts.URL != "" {
		actions = append(actions, chromedp.Navigate(opts.URL), chromedp.WaitReady("body", chromedp.ByQuery))
	}
	if err := chromedp.Run(tab, actions...); err != nil {
		p.close()
		return nil, fmt.Errorf("open trading page: %w", err)
	}
	logger.Info(ctx, "Trading page opened", "url", opts.URL, "remote", opts.RemoteURL != "")
	return p, nil
}

func (p *Page) Close() {
	p.close()
}

// run executes actions in the tab, bounded by the caller's ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *Page) Document(ctx context.Context) (*goquery.Document, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (p *Page) Click(ctx context.Context, el page.Element) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.eval(ctx, el, clickScript(el))
}

func (p *Page) SetFieldValue(ctx context.Context, el page.Element, value string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.eval(ctx, el, setValueScript(el, value))
}

func (p *Page) Value(ctx context.Context, el page.Element) (string, error) {
	var v *string
	if err := p.run(ctx, chromedp.Evaluate(valueScript(el.Path), &v)); err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("%w: %s", page.ErrDetached, el.Path)
	}
	return *v, nil
}

// Script results.
const (
	resultOK      = "ok"
	resultMissing = "missing"
	resultChanged = "changed"
)

func (p *Page) eval(ctx context.Context, el page.Element, script string) error {
	var res string
	if err := p.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return err
	}
	switch res {
	case resultOK:
		return nil
	case resultChanged:
		return fmt.Errorf("%w: %s", page.ErrChanged, el.Path)
	default:
		return fmt.Errorf("%w: %s", page.ErrDetached, el.Path)
	}
}

func jsString(s string) string {
	return jsValue(s)
}

func jsValue(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return strings.TrimSuffix(b.String(), "\n")
}

type jsFingerprint struct {
	Tag  string `json:"tag"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

// locateScript resolves el and binds it to `el`, returning early when the
// node is gone or no longer matches its snapshot fingerprint. Text is
// collapsed the same way as page.CollapseSpace.
func locateScript(el page.Element) string {
	fp := el.Fingerprint()
	return fmt.Sprintf(`const el = document.querySelector(%s);
  if (!el) return %q;
  const fp = %s;
  if (fp.tag) {
    const text = (el.textContent || "").replace(/\s+/g, " ").trim();
    if (el.tagName.toLowerCase() !== fp.tag || (el.id || "") !== fp.id || (fp.text !== "" && text !== fp.text)) return %q;
  }`, jsString(el.Path), resultMissing, jsValue(jsFingerprint{Tag: fp.Tag, ID: fp.ID, Text: fp.Text}), resultChanged)
}

func clickScript(el page.Element) string {
	return fmt.Sprintf(`(() => {
  %s
  el.click();
  return %q;
})()`, locateScript(el), resultOK)
}

// setValueScript types the value the way a user would: focus, clear, set
// through the native setter so framework bindings see it, then blur so
// inputs that commit on blur keep it.
func setValueScript(el page.Element, value string) string {
	return fmt.Sprintf(`(() => {
  %s
  const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
  const setter = Object.getOwnPropertyDescriptor(proto, "value").set;
  el.focus();
  setter.call(el, "");
  el.dispatchEvent(new Event("input", { bubbles: true }));
  setter.call(el, %s);
  el.dispatchEvent(new Event("input", { bubbles: true }));
  el.dispatchEvent(new Event("change", { bubbles: true }));
  el.blur();
  return %q;
})()`, locateScript(el), jsString(value), resultOK)
}

func valueScript(path string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  return el ? String(el.value) : null;
})()`, jsString(path))
}
