package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/page/pagetest"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/types"
	"alpha-volume-bot/internal/waiter"
)

func trading(buy, sell string) store.Trading {
	return store.Trading{
		BuyPrice:       decimal.RequireFromString(buy),
		SellPrice:      decimal.RequireFromString(sell),
		DynamicPricing: true,
		OrderVolume:    decimal.NewFromInt(10),
		MaxRounds:      1,
		OrderTimeoutMs: 60000,
	}
}

func boundOf(t *testing.T, err error) types.PriceBound {
	t.Helper()
	var pe *types.PriceError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected *types.PriceError, got %v", err)
	}
	return pe.Bound
}

func TestModalTieGoesToFirstSeen(t *testing.T) {
	prices := ParsePrices([]string{"1.2", "1.3", "1.3", "1.2", "1.4"})
	m, n, ok := Modal(prices, SampleSize)
	if !ok {
		t.Fatal("Expected a modal price")
	}
	if !m.Equal(decimal.RequireFromString("1.2")) || n != 2 {
		t.Errorf("Expected 1.2 x2, got %s x%d", m, n)
	}
}

func TestModalUsesRecentSample(t *testing.T) {
	var texts []string
	for i := 0; i < SampleSize; i++ {
		texts = append(texts, "2.0")
	}
	// Older prints beyond the sample must not count.
	for i := 0; i < 30; i++ {
		texts = append(texts, "9.0")
	}
	m, n, _ := Modal(ParsePrices(texts), SampleSize)
	if !m.Equal(decimal.RequireFromString("2")) || n != SampleSize {
		t.Errorf("Expected 2 x%d, got %s x%d", SampleSize, m, n)
	}
}

func TestModalRoundsToEightPlaces(t *testing.T) {
	prices := ParsePrices([]string{"1.000000001", "1.000000004", "1.1"})
	m, n, _ := Modal(prices, SampleSize)
	if !m.Equal(decimal.NewFromInt(1)) || n != 2 {
		t.Errorf("Expected 1 x2 after rounding, got %s x%d", m, n)
	}
}

func TestComputeAppliesOffset(t *testing.T) {
	tr := trading("1.00", "1.00")
	tr.PriceOffset = decimal.RequireFromString("0.001")

	q, err := Compute([]string{"1.000", "1.000", "0.999"}, []string{"1.002", "1.002"}, tr)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !q.Buy.Equal(decimal.RequireFromString("1.001")) {
		t.Errorf("Expected buy 1.001, got %s", q.Buy)
	}
	if !q.Sell.Equal(decimal.RequireFromString("1.001")) {
		t.Errorf("Expected sell 1.001, got %s", q.Sell)
	}
	if q.Source != types.SourceDynamic {
		t.Errorf("Expected dynamic source, got %s", q.Source)
	}
}

func TestComputeEmptySideUsesConfiguredPrice(t *testing.T) {
	tr := trading("1.00", "0.999")
	q, err := Compute([]string{"1.001"}, nil, tr)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !q.Sell.Equal(tr.SellPrice) {
		t.Errorf("Expected configured sell %s, got %s", tr.SellPrice, q.Sell)
	}
}

func TestComputeRejects(t *testing.T) {
	tests := []struct {
		name  string
		buys  []string
		sells []string
		tr    store.Trading
		bound types.PriceBound
	}{
		{"no tape", nil, nil, trading("1", "1"), types.BoundNoTape},
		{"unparseable", []string{"--"}, []string{"n/a"}, trading("1", "1"), types.BoundUnparseable},
		{"zero price", []string{"0"}, []string{"1"}, trading("1", "1"), types.BoundNonPositive},
		{"spread over 1%", []string{"1.00"}, []string{"1.02"}, trading("1", "1"), types.BoundSpread},
		{"deviation over 10%", []string{"1.20"}, []string{"1.20"}, trading("1", "1"), types.BoundDeviation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Compute(tt.buys, tt.sells, tt.tr)
			if err == nil {
				t.Fatalf("Expected error, got quote %+v", q)
			}
			if got := boundOf(t, err); got != tt.bound {
				t.Errorf("Expected bound %s, got %s", tt.bound, got)
			}
		})
	}
}

func TestSpreadAtLimitPasses(t *testing.T) {
	if err := Validate(decimal.RequireFromString("1.01"), decimal.NewFromInt(1), trading("1", "1")); err != nil {
		t.Errorf("Expected exactly 1%% spread to pass, got %v", err)
	}
}

func TestResolveStatic(t *testing.T) {
	tr := trading("1.5", "1.49")
	tr.DynamicPricing = false

	q, err := New(nil, store.DefaultSelectors()).Resolve(context.Background(), tr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if q.Source != types.SourceStatic || !q.Buy.Equal(tr.BuyPrice) || !q.Sell.Equal(tr.SellPrice) {
		t.Errorf("Expected configured prices, got %+v", q)
	}
}

func TestResolveFromPage(t *testing.T) {
	x := pagetest.NewExchange()
	x.TapeBuy = []string{"0.0523", "0.0523", "0.0522"}
	x.TapeSell = []string{"0.0522", "0.0521", "0.0522"}

	o := New(waiter.New(x), store.DefaultSelectors()).
		WithWait(waiter.Options{MaxAttempts: 2, Interval: time.Millisecond})
	q, err := o.Resolve(context.Background(), trading("0.05", "0.05"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !q.Buy.Equal(decimal.RequireFromString("0.0523")) || !q.Sell.Equal(decimal.RequireFromString("0.0522")) {
		t.Errorf("Expected 0.0523/0.0522, got %s/%s", q.Buy, q.Sell)
	}
	if q.ModalBuyCount != 2 || q.ModalSellCount != 2 {
		t.Errorf("Expected counts 2/2, got %d/%d", q.ModalBuyCount, q.ModalSellCount)
	}
}

func TestResolveWideSpreadFromPage(t *testing.T) {
	x := pagetest.NewExchange()
	x.TapeBuy = []string{"1.05"}
	x.TapeSell = []string{"1.00"}

	o := New(waiter.New(x), store.DefaultSelectors()).
		WithWait(waiter.Options{MaxAttempts: 2, Interval: time.Millisecond})
	_, err := o.Resolve(context.Background(), trading("1", "1"))
	if got := boundOf(t, err); got != types.BoundSpread {
		t.Errorf("Expected spread bound, got %s", got)
	}
}

func TestResolveNoTapeOnPage(t *testing.T) {
	x := pagetest.NewExchange()

	o := New(waiter.New(x), store.DefaultSelectors()).
		WithWait(waiter.Options{MaxAttempts: 2, Interval: time.Millisecond})
	_, err := o.Resolve(context.Background(), trading("1", "1"))
	if got := boundOf(t, err); got != types.BoundNoTape {
		t.Errorf("Expected no_tape bound, got %s", got)
	}
}
