package engine

import (
	"context"
	"errors"
	"fmt"

	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/order"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/pricing"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/types"
)

// orderExecutor runs one buy-then-sell round while holding the page.
type orderExecutor struct {
	oracle   PriceOracle
	orders   OrderPlacer
	lock     *page.Lock
	fallback string
}

func newOrderExecutor(oracle PriceOracle, orders OrderPlacer, lock *page.Lock, fallback string) *orderExecutor {
	return &orderExecutor{
		oracle:   oracle,
		orders:   orders,
		lock:     lock,
		fallback: fallback,
	}
}

// executeRound prices the round, buys, and sells only after the buy
// completed. A non-completed result ends the round early without error.
func (oe *orderExecutor) executeRound(ctx context.Context, seq int, t store.Trading) (types.TradeRound, *types.Quote, error) {
	round := types.TradeRound{Seq: seq}

	if err := oe.lock.Acquire(ctx); err != nil {
		return round, nil, err
	}
	defer oe.lock.Release()

	quote, err := oe.quote(ctx, t)
	if err != nil {
		return round, nil, err
	}
	round.BuyPrice, round.SellPrice = quote.Buy, quote.Sell

	req := order.Request{
		Side:           types.SideBuy,
		Price:          quote.Buy,
		Volume:         t.OrderVolume,
		AbortOnWarning: t.AbortOnPriceWarning,
		Timeout:        t.OrderTimeout(),
	}
	round.Buy, err = oe.orders.PlaceOrder(ctx, req)
	if err != nil || !round.Buy.Completed() {
		return round, &quote, err
	}

	req.Side = types.SideSell
	req.Price = quote.Sell
	round.Sell, err = oe.orders.PlaceOrder(ctx, req)
	return round, &quote, err
}

// quote resolves the round's prices. A rejected dynamic quote falls back to
// the configured prices unless the fallback is abort.
func (oe *orderExecutor) quote(ctx context.Context, t store.Trading) (types.Quote, error) {
	q, err := oe.oracle.Resolve(ctx, t)
	if err == nil {
		return q, nil
	}
	var pe *types.PriceError
	if !errors.As(err, &pe) {
		return q, err
	}
	if oe.fallback == store.FallbackAbort {
		return q, fmt.Errorf("dynamic price rejected: %w", err)
	}
	logger.Warn(ctx, "Dynamic price rejected, trading at configured prices",
		"bound", string(pe.Bound),
		"reason", pe.Reason,
	)
	return pricing.Static(t), nil
}
