// Package pricing resolves the limit prices for one round, either from
// configuration or from the modal price of the recent trade tape.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/types"
	"alpha-volume-bot/internal/waiter"
)

const (
	// Places kept when rounding prices.
	Places = 8
	// SampleSize is how many recent prints per side feed the mode.
	SampleSize = 20
)

var (
	MaxSpread    = decimal.RequireFromString("0.01")
	MaxDeviation = decimal.RequireFromString("0.1")

	numberRe = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)`)
)

type Oracle struct {
	w    *waiter.Waiter
	sel  store.Selectors
	wait waiter.Options
}

func New(w *waiter.Waiter, sel store.Selectors) *Oracle {
	opts := waiter.Default
	opts.MaxAttempts = 5
	return &Oracle{w: w, sel: sel, wait: opts}
}

// WithWait overrides how long Resolve waits for the trade tape.
func (o *Oracle) WithWait(opts waiter.Options) *Oracle {
	o.wait = opts
	return o
}

// Resolve returns the prices for the next round. Validation failures are
// returned as *types.PriceError; the caller decides between falling back to
// the static prices and stopping.
func (o *Oracle) Resolve(ctx context.Context, t store.Trading) (types.Quote, error) {
	if !t.DynamicPricing {
		return Static(t), nil
	}

	tape := page.CSS(o.sel.TapeBuy + ", " + o.sel.TapeSell)
	if _, err := o.w.WaitFor(ctx, tape, nil, o.wait); err != nil {
		if errors.Is(err, waiter.ErrNotFound) {
			return types.Quote{}, &types.PriceError{Bound: types.BoundNoTape, Reason: "no trade-tape prints on the page"}
		}
		return types.Quote{}, err
	}

	doc, err := o.w.Page().Document(ctx)
	if err != nil {
		return types.Quote{}, err
	}
	buys := texts(doc.Find(o.sel.TapeBuy))
	sells := texts(doc.Find(o.sel.TapeSell))

	q, err := Compute(buys, sells, t)
	if err != nil {
		logger.Warn(ctx, "Dynamic price rejected", "error", err.Error(), "buy_prints", len(buys), "sell_prints", len(sells))
		return types.Quote{}, err
	}
	logger.Info(ctx, "Dynamic price resolved",
		"buy", q.Buy.String(), "sell", q.Sell.String(),
		"modal_buy", q.ModalBuy.String(), "modal_buy_count", q.ModalBuyCount,
		"modal_sell", q.ModalSell.String(), "modal_sell_count", q.ModalSellCount,
	)
	return q, nil
}

func Static(t store.Trading) types.Quote {
	return types.Quote{Buy: t.BuyPrice, Sell: t.SellPrice, Source: types.SourceStatic}
}

func texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

// Compute derives a validated quote from tape prints, most recent first.
func Compute(buyTexts, sellTexts []string, t store.Trading) (types.Quote, error) {
	if len(buyTexts) == 0 && len(sellTexts) == 0 {
		return types.Quote{}, &types.PriceError{Bound: types.BoundNoTape, Reason: "no trade-tape prints on the page"}
	}
	buys, sells := ParsePrices(buyTexts), ParsePrices(sellTexts)
	if len(buys) == 0 && len(sells) == 0 {
		return types.Quote{}, &types.PriceError{Bound: types.BoundUnparseable, Reason: "no trade-tape price could be parsed"}
	}

	q := types.Quote{Buy: t.BuyPrice, Sell: t.SellPrice, Source: types.SourceDynamic}
	if m, n, ok := Modal(buys, SampleSize); ok {
		q.ModalBuy, q.ModalBuyCount = m, n
		q.Buy = m.Add(t.PriceOffset).Round(Places)
	}
	if m, n, ok := Modal(sells, SampleSize); ok {
		q.ModalSell, q.ModalSellCount = m, n
		q.Sell = m.Sub(t.PriceOffset).Round(Places)
	}

	if err := Validate(q.Buy, q.Sell, t); err != nil {
		return types.Quote{}, err
	}
	return q, nil
}

// ParsePrices reads the leading number of each text, skipping the ones that
// have none.
func ParsePrices(ss []string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(ss))
	for _, s := range ss {
		m := numberRe.FindString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
		if m == "" {
			continue
		}
		d, err := decimal.NewFromString(m)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Modal returns the most frequent of the first n prices after rounding to
// Places. Ties go to the price seen first.
func Modal(prices []decimal.Decimal, n int) (decimal.Decimal, int, bool) {
	if len(prices) > n {
		prices = prices[:n]
	}
	type bucket struct {
		price decimal.Decimal
		count int
	}
	var buckets []*bucket
	index := make(map[string]*bucket)
	for _, p := range prices {
		r := p.Round(Places)
		b, ok := index[r.String()]
		if !ok {
			b = &bucket{price: r}
			index[r.String()] = b
			buckets = append(buckets, b)
		}
		b.count++
	}

	var best *bucket
	for _, b := range buckets {
		if best == nil || b.count > best.count {
			best = b
		}
	}
	if best == nil {
		return decimal.Zero, 0, false
	}
	return best.price, best.count, true
}

// Validate applies the sanity bounds to a resolved price pair.
func Validate(buy, sell decimal.Decimal, t store.Trading) error {
	if !buy.IsPositive() || !sell.IsPositive() {
		return &types.PriceError{
			Bound:  types.BoundNonPositive,
			Reason: fmt.Sprintf("buy=%s sell=%s", buy, sell),
		}
	}

	spread := buy.Sub(sell).Abs().Div(decimal.Min(buy, sell))
	if spread.GreaterThan(MaxSpread) {
		return &types.PriceError{
			Bound:  types.BoundSpread,
			Reason: fmt.Sprintf("buy=%s sell=%s spread=%s%%", buy, sell, spread.Mul(decimal.NewFromInt(100)).StringFixed(2)),
		}
	}

	buyDev := buy.Sub(t.BuyPrice).Abs().Div(t.BuyPrice)
	sellDev := sell.Sub(t.SellPrice).Abs().Div(t.SellPrice)
	if buyDev.GreaterThan(MaxDeviation) || sellDev.GreaterThan(MaxDeviation) {
		return &types.PriceError{
			Bound:  types.BoundDeviation,
			Reason: fmt.Sprintf("buy=%s (configured %s) sell=%s (configured %s)", buy, t.BuyPrice, sell, t.SellPrice),
		}
	}
	return nil
}
