// Package engine runs the trade cycle: a volume gate followed by buy-then-sell
// rounds until the round target is reached, a stop is requested or an order
// does not complete.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"alpha-volume-bot/internal/ctxutil"
	"alpha-volume-bot/internal/interfaces"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/order"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/trace"
	"alpha-volume-bot/internal/tradelog"
	"alpha-volume-bot/internal/types"
	"alpha-volume-bot/internal/waiter"
)

var ErrAlreadyRunning = errors.New("engine: a run is already in progress")

type PriceOracle interface {
	Resolve(ctx context.Context, t store.Trading) (types.Quote, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req order.Request) (types.OrderResult, error)
}

// StatsRefresher collects fresh daily statistics, taking the page lock
// itself.
type StatsRefresher interface {
	Refresh(ctx context.Context) (*types.DailyStats, error)
}

// Deps are the collaborators of an engine. Stats, TradeLog, Notifier and Eod
// are optional.
type Deps struct {
	Waiter    *waiter.Waiter
	Selectors store.Selectors
	Settings  *store.Settings
	Lock      *page.Lock
	Oracle    PriceOracle
	Orders    OrderPlacer

	Stats    StatsRefresher
	TradeLog *tradelog.Log
	Notifier interfaces.Notifier
	Eod      interfaces.EodSummarizer
}

type Options struct {
	// Fallback decides what a rejected dynamic quote does: store.FallbackStatic
	// trades at the configured prices, store.FallbackAbort fails the run.
	Fallback string
	// StatsEvery collects statistics after every N completed rounds. Zero
	// collects only before the first and after the last round.
	StatsEvery int
	// Pause between rounds is PauseMin plus up to PauseSpread.
	PauseMin    time.Duration
	PauseSpread time.Duration
	// Gate bounds the wait for the 24h volume figure.
	Gate waiter.Options
	Now  func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Fallback:    store.FallbackStatic,
		StatsEvery:  3,
		PauseMin:    time.Second,
		PauseSpread: time.Second,
		Gate:        waiter.Options{MaxAttempts: 5, Interval: 500 * time.Millisecond},
		Now:         time.Now,
	}
}

type Engine struct {
	d    Deps
	opts Options
	exec *orderExecutor

	running atomic.Bool
	stopReq atomic.Bool
	wg      sync.WaitGroup

	status *runStatus
}

func newEngine(d Deps, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fallback == "" {
		opts.Fallback = store.FallbackStatic
	}
	return &Engine{
		d:      d,
		opts:   opts,
		exec:   newOrderExecutor(d.Oracle, d.Orders, d.Lock, opts.Fallback),
		status: newRunStatus(),
	}
}

var _ interfaces.Engine = (*Engine)(nil)

// Run executes one run in the caller's goroutine. Every halt, failed ones
// included, is described by the report; the error is only ErrAlreadyRunning.
func (e *Engine) Run(ctx context.Context) (types.RunReport, error) {
	if !e.running.CompareAndSwap(false, true) {
		return e.Status(), ErrAlreadyRunning
	}
	defer e.running.Store(false)

	e.stopReq.Store(false)
	runID := uuid.NewString()
	e.status.reset(runID, e.d.Settings.Snapshot().MaxRounds, e.opts.Now())
	return e.run(ctx, runID), nil
}

// Start launches a run in the background. ctx must outlive the run; cancel
// it to shut down.
func (e *Engine) Start(ctx context.Context) (string, error) {
	if !e.running.CompareAndSwap(false, true) {
		return "", ErrAlreadyRunning
	}
	e.stopReq.Store(false)
	runID := uuid.NewString()
	e.status.reset(runID, e.d.Settings.Snapshot().MaxRounds, e.opts.Now())

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.running.Store(false)
		e.run(ctx, runID)
	}()
	return runID, nil
}

// Stop asks the current run to halt before its next round.
func (e *Engine) Stop() {
	e.stopReq.Store(true)
	if e.running.Load() {
		e.status.stopping()
	}
}

// Wait blocks until a run launched by Start has halted.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) Status() types.RunReport {
	return e.status.snapshot()
}

func (e *Engine) run(ctx context.Context, runID string) types.RunReport {
	ctx = trace.WithRun(ctx, runID)
	t := e.d.Settings.Snapshot()
	logger.Info(ctx, "Run starting",
		"run_id", runID,
		"target_rounds", t.MaxRounds,
		"dynamic_pricing", t.DynamicPricing,
		"order_volume", t.OrderVolume.String(),
	)

	g, err := e.checkGate(ctx, t)
	if err != nil {
		return e.halt(ctx, outcomeOf(ctx), "volume gate: "+err.Error(), err)
	}
	if g.checked {
		e.status.update(func(r *types.RunReport) { r.VolumeM = g.volumeM.InexactFloat64() })
	}
	if !g.passed {
		return e.halt(ctx, types.OutcomeRejected, g.reason, nil)
	}

	e.status.update(func(r *types.RunReport) {
		if r.State != types.StateStopping {
			r.State = types.StateRunning
		}
	})
	e.collectStats(ctx, "before first round")

	completed := 0
	for {
		// Settings changes apply from the next round on.
		t = e.d.Settings.Snapshot()
		e.status.update(func(r *types.RunReport) { r.TargetRounds = t.MaxRounds })

		if completed >= t.MaxRounds {
			return e.halt(ctx, types.OutcomeCompleted, "round target reached", nil)
		}
		if e.stopReq.Load() {
			return e.halt(ctx, types.OutcomeStopped, "stop requested", nil)
		}
		if ctx.Err() != nil {
			return e.halt(ctx, types.OutcomeStopped, "shutting down", nil)
		}

		rctx, span := trace.StartRound(ctx, completed+1)
		round, quote, err := e.exec.executeRound(rctx, completed+1, t)
		span.End()
		e.status.update(func(r *types.RunReport) {
			r.LastRound = &round
			if quote != nil {
				r.LastQuote = quote
			}
		})
		if err != nil {
			return e.halt(ctx, outcomeOf(ctx), fmt.Sprintf("round %d: %v", round.Seq, err), err)
		}
		if res, side := unfinished(round); side != "" {
			return e.halt(ctx, types.OutcomeFailed, describe(side, res), nil)
		}

		completed++
		e.status.update(func(r *types.RunReport) { r.CompletedRounds = completed })
		logger.Round(ctx, round.Seq, t.MaxRounds, string(round.Buy.Status), string(round.Sell.Status),
			"buy_price", round.BuyPrice.String(),
			"sell_price", round.SellPrice.String(),
		)
		if e.d.TradeLog != nil {
			if err := e.d.TradeLog.AppendRound(runID, t.MaxRounds, round); err != nil {
				logger.ErrorWithErr(ctx, "Failed to append round log", err, "seq", round.Seq)
			}
		}

		if completed < t.MaxRounds {
			if e.opts.StatsEvery > 0 && completed%e.opts.StatsEvery == 0 {
				e.collectStats(ctx, fmt.Sprintf("after round %d", completed))
			}
			if err := ctxutil.Sleep(ctx, ctxutil.Jitter(e.opts.PauseMin, e.opts.PauseSpread)); err != nil {
				logger.Debug(ctx, "Pause between rounds interrupted", "error", err)
			}
		}
	}
}

// halt finishes the run: final statistics and report, round log, notice.
func (e *Engine) halt(ctx context.Context, outcome types.RunOutcome, reason string, cause error) types.RunReport {
	cur := e.status.snapshot()
	msg := fmt.Sprintf("%s (%d/%d rounds)", reason, cur.CompletedRounds, cur.TargetRounds)

	if cur.CompletedRounds > 0 && ctx.Err() == nil {
		if stats := e.collectStats(ctx, "after last round"); stats != nil && e.d.Eod != nil {
			if _, err := e.d.Eod.WriteDay(stats); err != nil {
				logger.ErrorWithErr(ctx, "Failed to write EOD report", err, "day", stats.Day)
			}
		}
	}

	rep := e.status.update(func(r *types.RunReport) {
		r.State = types.StateHalted
		r.Outcome = outcome
		r.Message = msg
		if cause != nil {
			r.Error = cause.Error()
		}
		r.FinishedAt = e.opts.Now()
	})

	logger.Halt(ctx, string(outcome), rep.CompletedRounds, rep.TargetRounds, "run_id", rep.RunID, "message", msg)
	if e.d.TradeLog != nil {
		if err := e.d.TradeLog.AppendHalt(rep); err != nil {
			logger.ErrorWithErr(ctx, "Failed to append halt log", err)
		}
	}
	if e.d.Notifier != nil {
		// The notice must go out even when ctx is being torn down.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := e.d.Notifier.Notify(nctx, haltNotice(rep, e.opts.Now())); err != nil {
			logger.ErrorWithErr(ctx, "Failed to send halt notice", err)
		}
	}
	return rep
}

func (e *Engine) collectStats(ctx context.Context, when string) *types.DailyStats {
	if e.d.Stats == nil {
		return nil
	}
	stats, err := e.d.Stats.Refresh(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Statistics collection failed", err, "when", when)
		return nil
	}
	logger.Info(ctx, "Statistics collected",
		"when", when,
		"day", stats.Day,
		"trades", stats.TradeCount,
		"buy_value", stats.TotalBuyValue.String(),
		"wear_loss", stats.WearLoss.String(),
	)
	return stats
}
