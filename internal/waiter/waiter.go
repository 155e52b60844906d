// Package waiter polls the page until an element appears.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alpha-volume-bot/internal/ctxutil"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/page"
)

var ErrNotFound = errors.New("element not found")

// NotFoundError is returned when every attempt came up empty.
type NotFoundError struct {
	Locator  string
	Attempts int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element %q not found after %d attempts", e.Locator, e.Attempts)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Options bound a single wait.
type Options struct {
	MaxAttempts  int
	Interval     time.Duration
	InitialDelay time.Duration
}

// Default polls 10 times at 500ms after a 500ms head start.
var Default = Options{
	MaxAttempts:  10,
	Interval:     500 * time.Millisecond,
	InitialDelay: 500 * time.Millisecond,
}

// Predicate filters candidate elements. A nil predicate accepts all.
type Predicate func(page.Element) bool

type Waiter struct {
	page page.Page
}

func New(p page.Page) *Waiter {
	return &Waiter{page: p}
}

func (w *Waiter) Page() page.Page {
	return w.page
}

// WaitFor returns the first element matched by loc that satisfies pred. Each
// attempt takes a fresh snapshot. Calls are independent of each other.
func (w *Waiter) WaitFor(ctx context.Context, loc page.Locator, pred Predicate, opts Options) (page.Element, error) {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if err := ctxutil.Sleep(ctx, opts.InitialDelay); err != nil {
		return page.Element{}, err
	}

	for attempt := 1; ; attempt++ {
		if el, ok, err := w.try(ctx, loc, pred); err != nil {
			return page.Element{}, err
		} else if ok {
			logger.Debug(ctx, "Element found", "locator", loc.String(), "attempt", attempt)
			return el, nil
		}

		if attempt >= opts.MaxAttempts {
			return page.Element{}, &NotFoundError{Locator: loc.String(), Attempts: attempt}
		}
		if err := ctxutil.Sleep(ctx, opts.Interval); err != nil {
			return page.Element{}, err
		}
	}
}

func (w *Waiter) try(ctx context.Context, loc page.Locator, pred Predicate) (page.Element, bool, error) {
	doc, err := w.page.Document(ctx)
	if err != nil {
		return page.Element{}, false, err
	}

	var found page.Element
	ok := false
	sel := loc.Lookup(doc)
	for i := 0; i < sel.Length() && !ok; i++ {
		el := page.NewElement(sel.Eq(i))
		if pred == nil || pred(el) {
			found, ok = el, true
		}
	}
	return found, ok, nil
}

// Optional waits like WaitFor but reports absence as ok=false instead of an
// error. Other failures, including cancellation, are still returned.
func (w *Waiter) Optional(ctx context.Context, loc page.Locator, pred Predicate, opts Options) (page.Element, bool, error) {
	el, err := w.WaitFor(ctx, loc, pred, opts)
	if errors.Is(err, ErrNotFound) {
		return page.Element{}, false, nil
	}
	if err != nil {
		return page.Element{}, false, err
	}
	return el, true, nil
}
