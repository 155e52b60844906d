// Package order places limit orders through the trading page and tracks them
// until they leave the open-orders list.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/types"
	"alpha-volume-bot/internal/waiter"
)

// Timings bound the waits of one order.
type Timings struct {
	Step    waiter.Options // required controls
	Confirm waiter.Options // slippage warning
	Dialog  waiter.Options // fee disclosure and continue buttons
}

var DefaultTimings = Timings{
	Step:    waiter.Default,
	Confirm: waiter.Options{MaxAttempts: 3, Interval: 500 * time.Millisecond, InitialDelay: 500 * time.Millisecond},
	Dialog:  waiter.Options{MaxAttempts: 5, Interval: time.Second},
}

// Request is one limit order. Volume is ignored for sells, which always
// sell the full available balance.
type Request struct {
	Side           types.Side
	Price          decimal.Decimal
	Volume         decimal.Decimal
	AbortOnWarning bool
	Timeout        time.Duration
}

type Submitter struct {
	w       *waiter.Waiter
	sel     store.Selectors
	tracker *Tracker
	timings Timings
}

func NewSubmitter(w *waiter.Waiter, sel store.Selectors, tracker *Tracker, timings Timings) *Submitter {
	return &Submitter{w: w, sel: sel, tracker: tracker, timings: timings}
}

// PlaceOrder drives the order form and waits for the outcome. Business
// outcomes (timeout, no_stock, aborted) come back as results; a required
// control that never shows up is returned as an error wrapping
// *waiter.NotFoundError.
func (s *Submitter) PlaceOrder(ctx context.Context, req Request) (types.OrderResult, error) {
	res, err := s.placeOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Order attempt failed", err, "side", string(req.Side), "price", req.Price.String())
		return types.OrderResult{}, err
	}
	logger.Order(ctx, string(req.Side), req.Price.String(), req.Volume.String(), string(res.Status), "message", res.Message)
	return res, nil
}

func (s *Submitter) placeOrder(ctx context.Context, req Request) (types.OrderResult, error) {
	p := s.w.Page()

	tabText := s.sel.BuyTabText
	button := s.sel.BuyButton
	if req.Side == types.SideSell {
		tabText = s.sel.SellTabText
		button = s.sel.SellButton
	}

	// 1. side tab
	tabLoc := page.WithExactText(s.sel.SideTab, tabText)
	tab, err := s.required(ctx, req.Side, "side tab", tabLoc, nil)
	if err != nil {
		return types.OrderResult{}, err
	}
	if err := p.Click(ctx, tab); err != nil {
		return types.OrderResult{}, err
	}
	if _, err := s.required(ctx, req.Side, "active side tab", tabLoc, s.isActiveTab); err != nil {
		return types.OrderResult{}, err
	}

	// 2. limit mode
	limit, err := s.required(ctx, req.Side, "limit tab", page.CSS(s.sel.LimitTab), nil)
	if err != nil {
		return types.OrderResult{}, err
	}
	if err := p.Click(ctx, limit); err != nil {
		return types.OrderResult{}, err
	}

	// 3. sells use the whole balance
	if req.Side == types.SideSell && s.sel.SellSlider != "" {
		if res, done, err := s.maxSlider(ctx); err != nil || done {
			return res, err
		}
	}

	// 4. price, and volume for buys
	if err := s.fill(ctx, req.Side, "price input", s.sel.PriceInput, req.Price.String()); err != nil {
		return types.OrderResult{}, err
	}
	if req.Side == types.SideBuy {
		if err := s.fill(ctx, req.Side, "volume input", s.sel.VolumeInput, req.Volume.String()); err != nil {
			return types.OrderResult{}, err
		}
	}

	// 5. submit
	btn, err := s.required(ctx, req.Side, "action button", page.CSS(button), nil)
	if err != nil {
		return types.OrderResult{}, err
	}
	if err := p.Click(ctx, btn); err != nil {
		return types.OrderResult{}, err
	}

	// 6. dialogs; absence is normal
	warned, err := s.dialog(ctx, page.WithText(s.sel.ConfirmModal, s.sel.ConfirmText), s.timings.Confirm, req.AbortOnWarning)
	if err != nil {
		return types.OrderResult{}, err
	}
	if warned && req.AbortOnWarning {
		logger.Warn(ctx, "Slippage warning shown, aborting order", "side", string(req.Side))
		return types.OrderResult{Status: types.StatusAborted, Message: "slippage warning shown, order aborted"}, nil
	}
	if _, err := s.dialog(ctx, page.WithText(s.sel.FeeModal, s.sel.FeeText), s.timings.Dialog, false); err != nil {
		return types.OrderResult{}, err
	}

	// 7. wait for the fill
	return s.tracker.AwaitCompletion(ctx, req.Timeout)
}

func (s *Submitter) required(ctx context.Context, side types.Side, step string, loc page.Locator, pred waiter.Predicate) (page.Element, error) {
	el, err := s.w.WaitFor(ctx, loc, pred, s.timings.Step)
	if err != nil {
		return page.Element{}, fmt.Errorf("%s order: %s: %w", side, step, err)
	}
	return el, nil
}

func (s *Submitter) isActiveTab(el page.Element) bool {
	selected, _ := el.Attr("aria-selected")
	return el.HasClass(s.sel.ActiveClass) && selected == "true"
}

func (s *Submitter) fill(ctx context.Context, side types.Side, step, css, value string) error {
	el, err := s.required(ctx, side, step, page.CSS(css), nil)
	if err != nil {
		return err
	}
	if err := s.w.Page().SetFieldValue(ctx, el, value); err != nil {
		return fmt.Errorf("%s order: %s: %w", side, step, err)
	}
	return nil
}

// maxSlider moves the amount slider to 100% and reports no_stock when the
// page leaves it at zero.
func (s *Submitter) maxSlider(ctx context.Context) (types.OrderResult, bool, error) {
	p := s.w.Page()
	slider, ok, err := page.Find(ctx, p, page.CSS(s.sel.SellSlider))
	if err != nil || !ok {
		return types.OrderResult{}, false, err
	}
	if err := p.SetFieldValue(ctx, slider, "100"); err != nil {
		return types.OrderResult{}, false, err
	}
	v, err := p.Value(ctx, slider)
	if err != nil {
		return types.OrderResult{}, false, err
	}
	if strings.TrimSpace(v) == "0" {
		logger.Warn(ctx, "Nothing available to sell")
		return types.OrderResult{Status: types.StatusNoStock, Message: "no balance available to sell"}, true, nil
	}
	return types.OrderResult{}, false, nil
}

// dialog waits for an optional modal. When it shows up and stop is false the
// continue button is pressed.
func (s *Submitter) dialog(ctx context.Context, loc page.Locator, opts waiter.Options, stop bool) (bool, error) {
	_, ok, err := s.w.Optional(ctx, loc, nil, opts)
	if err != nil || !ok {
		return false, err
	}
	logger.Info(ctx, "Dialog shown", "dialog", loc.String())
	if stop {
		return true, nil
	}

	btn, ok, err := s.w.Optional(ctx, s.continueButton(), nil, s.timings.Dialog)
	if err != nil {
		return true, err
	}
	if ok {
		if err := s.w.Page().Click(ctx, btn); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (s *Submitter) continueButton() page.Locator {
	return page.Resolve("dialog continue button", func(doc *goquery.Document) *goquery.Selection {
		return doc.Find(s.sel.Dialog).Find("button").FilterFunction(func(_ int, b *goquery.Selection) bool {
			return strings.Contains(b.Text(), s.sel.ContinueText)
		})
	})
}
