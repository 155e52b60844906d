package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/order"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/page/pagetest"
	"alpha-volume-bot/internal/pricing"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/types"
	"alpha-volume-bot/internal/waiter"
)

var fast = waiter.Options{MaxAttempts: 3, Interval: time.Millisecond}

func trading() store.Trading {
	return store.Trading{
		BuyPrice:       decimal.RequireFromString("1.5"),
		SellPrice:      decimal.RequireFromString("1.49"),
		OrderVolume:    decimal.NewFromInt(10),
		MaxRounds:      5,
		OrderTimeoutMs: 1000,
	}
}

type harness struct {
	x        *pagetest.Exchange
	deps     Deps
	opts     Options
	settings *store.Settings
}

func newHarness(t *testing.T, tr store.Trading) *harness {
	t.Helper()
	x := pagetest.NewExchange()
	sel := store.DefaultSelectors()
	w := waiter.New(x)
	settings, err := store.NewSettings(tr)
	if err != nil {
		t.Fatalf("NewSettings failed: %v", err)
	}
	tracker := order.NewTracker(x, sel, order.TrackerOptions{
		InitialDelay: time.Millisecond,
		PollInterval: time.Millisecond,
		Jitter:       time.Millisecond,
		MaxInterval:  5 * time.Millisecond,
	})
	return &harness{
		x:        x,
		settings: settings,
		deps: Deps{
			Waiter:    w,
			Selectors: sel,
			Settings:  settings,
			Lock:      page.NewLock(),
			Oracle:    pricing.New(w, sel).WithWait(fast),
			Orders:    order.NewSubmitter(w, sel, tracker, order.Timings{Step: fast, Confirm: fast, Dialog: fast}),
		},
		opts: Options{Fallback: store.FallbackStatic, StatsEvery: 3, Gate: fast},
	}
}

func (h *harness) engine() *Engine {
	return newEngine(h.deps, h.opts)
}

func (h *harness) orderEvents() []string {
	var out []string
	for _, e := range h.x.Events() {
		if strings.HasPrefix(e, "submit ") || strings.HasPrefix(e, "fill ") {
			out = append(out, e)
		}
	}
	return out
}

// hookPlacer calls hook before every order.
type hookPlacer struct {
	inner OrderPlacer
	calls int
	hook  func(call int, req order.Request)
}

func (h *hookPlacer) PlaceOrder(ctx context.Context, req order.Request) (types.OrderResult, error) {
	h.calls++
	if h.hook != nil {
		h.hook(h.calls, req)
	}
	return h.inner.PlaceOrder(ctx, req)
}

func TestRunCompletesTargetRounds(t *testing.T) {
	h := newHarness(t, trading())

	rep, err := h.engine().Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Outcome != types.OutcomeCompleted {
		t.Errorf("Expected completed, got %s (%s)", rep.Outcome, rep.Message)
	}
	if rep.CompletedRounds != 5 || rep.TargetRounds != 5 {
		t.Errorf("Expected 5/5 rounds, got %d/%d", rep.CompletedRounds, rep.TargetRounds)
	}
	if rep.State != types.StateHalted {
		t.Errorf("Expected halted, got %s", rep.State)
	}
	if !strings.Contains(rep.Message, "(5/5 rounds)") {
		t.Errorf("Expected round count in message, got %q", rep.Message)
	}
	if rep.RunID == "" {
		t.Error("Expected a run id")
	}
}

func TestRoundsAreStrictlySequential(t *testing.T) {
	tr := trading()
	tr.MaxRounds = 3
	h := newHarness(t, tr)

	if _, err := h.engine().Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	round := []string{"submit buy 1.5 10", "fill buy 1.5 10", "submit sell 1.49 all", "fill sell 1.49 all"}
	var want []string
	for i := 0; i < 3; i++ {
		want = append(want, round...)
	}
	got := h.orderEvents()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected order events\n%v\ngot\n%v", want, got)
	}
}

func TestTimeoutHaltsRun(t *testing.T) {
	h := newHarness(t, trading())
	h.x.FillAfter = -1

	rep, err := h.engine().Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Outcome != types.OutcomeFailed {
		t.Errorf("Expected failed, got %s", rep.Outcome)
	}
	if rep.CompletedRounds != 0 {
		t.Errorf("Expected 0 rounds, got %d", rep.CompletedRounds)
	}
	if !strings.Contains(rep.Message, "manual intervention") || !strings.Contains(rep.Message, "(0/5 rounds)") {
		t.Errorf("Expected timeout message with round count, got %q", rep.Message)
	}
	if len(h.x.EventsWithPrefix("submit sell")) != 0 {
		t.Error("Expected no sell after a timed out buy")
	}
	if rep.LastRound == nil || rep.LastRound.Buy.Status != types.StatusTimeout {
		t.Errorf("Expected last round with buy timeout, got %+v", rep.LastRound)
	}
}

func TestMissingControlFailsRun(t *testing.T) {
	h := newHarness(t, trading())
	h.x.Hide(pagetest.PartBuyButton)

	rep, _ := h.engine().Run(context.Background())
	if rep.Outcome != types.OutcomeFailed {
		t.Errorf("Expected failed, got %s", rep.Outcome)
	}
	if !strings.Contains(rep.Error, "not found") {
		t.Errorf("Expected not-found error in report, got %q", rep.Error)
	}
}

func TestStopTakesEffectAtRoundBoundary(t *testing.T) {
	h := newHarness(t, trading())
	placer := &hookPlacer{inner: h.deps.Orders}
	h.deps.Orders = placer
	e := h.engine()
	placer.hook = func(call int, req order.Request) {
		// first order of round 2
		if call == 3 {
			e.Stop()
		}
	}

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Outcome != types.OutcomeStopped {
		t.Errorf("Expected stopped, got %s", rep.Outcome)
	}
	if rep.CompletedRounds != 2 {
		t.Errorf("Expected round 2 to finish before stopping, got %d rounds", rep.CompletedRounds)
	}
	if placer.calls != 4 {
		t.Errorf("Expected 4 orders, got %d", placer.calls)
	}
}

func TestSettingsApplyFromNextRound(t *testing.T) {
	h := newHarness(t, trading())
	h.deps.Orders = &hookPlacer{inner: h.deps.Orders, hook: func(call int, req order.Request) {
		if call == 1 {
			if err := h.settings.SetMaxRounds(2); err != nil {
				t.Errorf("SetMaxRounds failed: %v", err)
			}
		}
	}}

	rep, _ := h.engine().Run(context.Background())
	if rep.Outcome != types.OutcomeCompleted || rep.CompletedRounds != 2 || rep.TargetRounds != 2 {
		t.Errorf("Expected 2/2 completed, got %s %d/%d", rep.Outcome, rep.CompletedRounds, rep.TargetRounds)
	}
}

func TestVolumeGate(t *testing.T) {
	tests := []struct {
		name    string
		min     string
		hide    bool
		want    types.RunOutcome
		submits int
	}{
		{"below minimum", "1000", false, types.OutcomeRejected, 0},
		{"above minimum", "500", false, types.OutcomeCompleted, 2},
		{"disabled", "0", true, types.OutcomeCompleted, 2},
		{"figure missing", "500", true, types.OutcomeRejected, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := trading()
			tr.MaxRounds = 1
			tr.MinVolumeM = decimal.RequireFromString(tt.min)
			h := newHarness(t, tr)
			if tt.hide {
				h.x.Hide(pagetest.PartVolume24h)
			}

			rep, _ := h.engine().Run(context.Background())
			if rep.Outcome != tt.want {
				t.Errorf("Expected %s, got %s (%s)", tt.want, rep.Outcome, rep.Message)
			}
			if got := len(h.x.EventsWithPrefix("submit")); got != tt.submits {
				t.Errorf("Expected %d submissions, got %d", tt.submits, got)
			}
		})
	}
}

func TestGateRecordsVolume(t *testing.T) {
	tr := trading()
	tr.MinVolumeM = decimal.NewFromInt(1000)
	h := newHarness(t, tr)

	rep, _ := h.engine().Run(context.Background())
	if rep.VolumeM != 812.5 {
		t.Errorf("Expected 812.5M recorded, got %v", rep.VolumeM)
	}
	if !strings.Contains(rep.Message, "below minimum") {
		t.Errorf("Expected rejection reason, got %q", rep.Message)
	}
}

type blockingPlacer struct {
	inner   OrderPlacer
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingPlacer) PlaceOrder(ctx context.Context, req order.Request) (types.OrderResult, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.inner.PlaceOrder(ctx, req)
}

func TestSecondRunIsRejected(t *testing.T) {
	tr := trading()
	tr.MaxRounds = 1
	h := newHarness(t, tr)
	bp := &blockingPlacer{inner: h.deps.Orders, entered: make(chan struct{}), release: make(chan struct{})}
	h.deps.Orders = bp
	e := h.engine()

	runID, err := e.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-bp.entered

	if _, err := e.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning from Run, got %v", err)
	}
	if _, err := e.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning from Start, got %v", err)
	}
	if st := e.Status(); st.State != types.StateRunning || st.RunID != runID {
		t.Errorf("Expected running status for %s, got %+v", runID, st)
	}

	close(bp.release)
	e.Wait()

	if st := e.Status(); st.Outcome != types.OutcomeCompleted {
		t.Errorf("Expected completed after release, got %s", st.Outcome)
	}
	if _, err := e.Run(context.Background()); err != nil {
		t.Errorf("Expected a new run to be accepted, got %v", err)
	}
}

func TestCancelStopsRun(t *testing.T) {
	h := newHarness(t, trading())
	h.x.FillAfter = -1
	ctx, cancel := context.WithCancel(context.Background())
	h.deps.Orders = &hookPlacer{inner: h.deps.Orders, hook: func(call int, req order.Request) {
		time.AfterFunc(20*time.Millisecond, cancel)
	}}

	rep, _ := h.engine().Run(ctx)
	if rep.Outcome != types.OutcomeStopped {
		t.Errorf("Expected stopped on cancel, got %s (%s)", rep.Outcome, rep.Message)
	}
}

func TestDynamicPriceFallback(t *testing.T) {
	tr := trading()
	tr.MaxRounds = 1
	tr.DynamicPricing = true

	t.Run("static", func(t *testing.T) {
		h := newHarness(t, tr)
		h.x.TapeBuy = []string{"1.5"}
		h.x.TapeSell = []string{"1.3"}

		rep, _ := h.engine().Run(context.Background())
		if rep.Outcome != types.OutcomeCompleted {
			t.Fatalf("Expected completed with fallback, got %s (%s)", rep.Outcome, rep.Message)
		}
		if len(h.x.EventsWithPrefix("submit sell 1.49 ")) != 1 {
			t.Errorf("Expected sell at configured price, got %v", h.orderEvents())
		}
	})

	t.Run("abort", func(t *testing.T) {
		h := newHarness(t, tr)
		h.opts.Fallback = store.FallbackAbort
		h.x.TapeBuy = []string{"1.5"}
		h.x.TapeSell = []string{"1.3"}

		rep, _ := h.engine().Run(context.Background())
		if rep.Outcome != types.OutcomeFailed {
			t.Errorf("Expected failed, got %s", rep.Outcome)
		}
		if !strings.Contains(rep.Error, "spread") {
			t.Errorf("Expected spread error, got %q", rep.Error)
		}
		if len(h.x.EventsWithPrefix("submit")) != 0 {
			t.Error("Expected no orders")
		}
	})
}

type countingStats struct {
	calls int
}

func (c *countingStats) Refresh(ctx context.Context) (*types.DailyStats, error) {
	c.calls++
	return &types.DailyStats{Day: "2025-06-10", TradeCount: 2 * c.calls}, nil
}

type recordingEod struct {
	days []string
}

func (r *recordingEod) WriteDay(stats *types.DailyStats) (string, error) {
	r.days = append(r.days, stats.Day)
	return "/tmp/" + stats.Day + ".csv", nil
}

func (r *recordingEod) ReportPath(day string) string { return "/tmp/" + day + ".csv" }

type recordingNotifier struct {
	notices []types.Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, n types.Notice) error {
	r.notices = append(r.notices, n)
	return nil
}

func TestStatsCadenceAndHaltReporting(t *testing.T) {
	tr := trading()
	tr.MaxRounds = 7
	h := newHarness(t, tr)
	stats := &countingStats{}
	eod := &recordingEod{}
	notes := &recordingNotifier{}
	h.deps.Stats = stats
	h.deps.Eod = eod
	h.deps.Notifier = notes

	rep, _ := h.engine().Run(context.Background())
	if rep.Outcome != types.OutcomeCompleted {
		t.Fatalf("Expected completed, got %s", rep.Outcome)
	}
	// before round 1, after rounds 3 and 6, after the last round
	if stats.calls != 4 {
		t.Errorf("Expected 4 stats collections, got %d", stats.calls)
	}
	if len(eod.days) != 1 {
		t.Errorf("Expected one EOD report, got %v", eod.days)
	}
	if len(notes.notices) != 1 || notes.notices[0].Level != types.NoticeInfo {
		t.Errorf("Expected one info notice, got %+v", notes.notices)
	}
}

func TestFailedRunNotifiesError(t *testing.T) {
	h := newHarness(t, trading())
	h.x.SellableZero = true
	notes := &recordingNotifier{}
	h.deps.Notifier = notes

	rep, _ := h.engine().Run(context.Background())
	if rep.Outcome != types.OutcomeFailed || !strings.Contains(rep.Message, "no_stock") {
		t.Errorf("Expected failed with no_stock, got %s (%s)", rep.Outcome, rep.Message)
	}
	if len(notes.notices) != 1 || notes.notices[0].Level != types.NoticeError {
		t.Errorf("Expected one error notice, got %+v", notes.notices)
	}
}

func TestStatusIdleBeforeFirstRun(t *testing.T) {
	h := newHarness(t, trading())
	if st := h.engine().Status(); st.State != types.StateIdle {
		t.Errorf("Expected idle, got %s", st.State)
	}
}
