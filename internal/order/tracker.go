package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alpha-volume-bot/internal/ctxutil"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/types"
)

type TrackerOptions struct {
	InitialDelay time.Duration
	PollInterval time.Duration
	Jitter       time.Duration
	MaxInterval  time.Duration
}

var DefaultTrackerOptions = TrackerOptions{
	InitialDelay: time.Second,
	PollInterval: 500 * time.Millisecond,
	Jitter:       500 * time.Millisecond,
	MaxInterval:  3 * time.Second,
}

// Tracker watches the open-orders view until the page reports no pending
// orders.
type Tracker struct {
	page page.Page
	sel  store.Selectors
	opts TrackerOptions
}

func NewTracker(p page.Page, sel store.Selectors, opts TrackerOptions) *Tracker {
	return &Tracker{page: p, sel: sel, opts: opts}
}

// AwaitCompletion returns completed once the no-pending-orders tip shows up,
// or a timeout result when it does not within timeout. Only page failures and
// cancellation of ctx are returned as errors.
func (t *Tracker) AwaitCompletion(ctx context.Context, timeout time.Duration) (types.OrderResult, error) {
	if err := t.openView(ctx); err != nil {
		return types.OrderResult{}, err
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tip := page.WithText(t.sel.NoOrdersTip, t.sel.NoOrdersText)
	delay := t.opts.InitialDelay
	for polls := 0; ; polls++ {
		if err := ctxutil.Sleep(tctx, delay); err != nil {
			return t.expired(ctx, timeout, polls, err)
		}

		_, ok, err := page.Find(tctx, t.page, tip)
		if err != nil {
			return t.expired(ctx, timeout, polls, err)
		}
		if ok {
			logger.Debug(ctx, "No pending orders", "polls", polls+1)
			return types.OrderResult{Status: types.StatusCompleted}, nil
		}

		delay = ctxutil.Jitter(t.opts.PollInterval, t.opts.Jitter)
		if t.opts.MaxInterval > 0 && delay > t.opts.MaxInterval {
			delay = t.opts.MaxInterval
		}
	}
}

// expired turns a poll failure into the timeout result when only the order
// deadline ran out.
func (t *Tracker) expired(ctx context.Context, timeout time.Duration, polls int, err error) (types.OrderResult, error) {
	if ctx.Err() != nil {
		return types.OrderResult{}, ctx.Err()
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return types.OrderResult{}, fmt.Errorf("checking order status: %w", err)
	}
	logger.Warn(ctx, "Order not filled in time", "timeout", timeout.String(), "polls", polls)
	return types.OrderResult{
		Status:  types.StatusTimeout,
		Message: fmt.Sprintf("order not filled within %s, manual intervention required", timeout),
	}, nil
}

func (t *Tracker) openView(ctx context.Context) error {
	for _, css := range []string{t.sel.OpenOrdersTab, t.sel.OpenLimitTab} {
		if css == "" {
			continue
		}
		el, ok, err := page.Find(ctx, t.page, page.CSS(css))
		if err != nil {
			return fmt.Errorf("opening open-orders view: %w", err)
		}
		if !ok {
			logger.Debug(ctx, "Open-orders control missing", "selector", css)
			continue
		}
		if err := t.page.Click(ctx, el); err != nil {
			return fmt.Errorf("opening open-orders view: %w", err)
		}
	}
	return nil
}
