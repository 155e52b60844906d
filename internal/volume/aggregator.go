// Package volume reconciles filled orders from the order-history view into
// per-trading-day volume and wear-loss statistics.
package volume

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"alpha-volume-bot/internal/ctxutil"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/types"
	"alpha-volume-bot/internal/waiter"
)

// Reasons a scan stopped paginating.
const (
	StopNoNext      = "no_next"
	StopEmptyPage   = "empty_page"
	StopStaleDay    = "stale_day"
	StopPageCeiling = "page_ceiling"
	StopTurnFailed  = "turn_failed"
)

type Options struct {
	// MaxPages caps one scan. Reaching it ends the scan early without error.
	MaxPages int
	// Step bounds waits for required history controls.
	Step waiter.Options
	// Filter bounds waits after clicking optional filters and reset.
	Filter waiter.Options
	// PageTurn bounds the wait for the next page to become active.
	PageTurn waiter.Options
	// Location is the exchange display time zone.
	Location *time.Location
	Now      func() time.Time
}

func DefaultOptions() Options {
	return Options{
		MaxPages: 50,
		Step:     waiter.Default,
		Filter:   waiter.Options{MaxAttempts: 5, Interval: 500 * time.Millisecond, InitialDelay: 500 * time.Millisecond},
		PageTurn: waiter.Options{MaxAttempts: 10, Interval: 300 * time.Millisecond, InitialDelay: 200 * time.Millisecond},
		Location: time.Local,
		Now:      time.Now,
	}
}

type Aggregator struct {
	w      *waiter.Waiter
	sel    store.Selectors
	parser *Parser
	opts   Options
}

func NewAggregator(w *waiter.Waiter, sel store.Selectors, opts Options) *Aggregator {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{w: w, sel: sel, parser: NewParser(sel, opts.Location), opts: opts}
}

// Today is the current trading day.
func (a *Aggregator) Today() string {
	return TradingDay(a.opts.Now().In(a.opts.Location))
}

// CollectTodayStats scans history from the first page and aggregates the
// current trading day.
func (a *Aggregator) CollectTodayStats(ctx context.Context) (*types.DailyStats, error) {
	today := a.Today()
	records, info, err := a.Scan(ctx, today)
	if err != nil {
		return nil, err
	}
	stats := ComputeDailyStats(today, records)
	stats.Scan = info
	logger.Info(ctx, "Daily stats collected",
		"day", today,
		"trades", stats.TradeCount,
		"buy_value", stats.TotalBuyValue.String(),
		"sell_value", stats.TotalSellValue.String(),
		"wear_loss", stats.WearLoss.String(),
		"pages", info.Pages,
		"stop_reason", info.StopReason,
	)
	return stats, nil
}

// Scan walks the history pages and returns every accepted record. It stops
// at the first page holding a row older than today, which assumes the
// history is listed newest first. An empty today disables that stop.
func (a *Aggregator) Scan(ctx context.Context, today string) ([]types.TradeRecord, types.ScanInfo, error) {
	var info types.ScanInfo
	if err := a.openHistory(ctx); err != nil {
		return nil, info, err
	}
	if err := a.reset(ctx); err != nil {
		return nil, info, err
	}

	var records []types.TradeRecord
	for {
		doc, err := a.w.Page().Document(ctx)
		if err != nil {
			return nil, info, err
		}
		info.Pages++

		rows, accepted, stale := a.parsePage(doc, today)
		info.Rows += rows
		info.Records += len(accepted)
		records = append(records, accepted...)
		logger.Debug(ctx, "History page parsed", "page", info.Pages, "rows", rows, "records", len(accepted), "stale", stale)

		if len(accepted) == 0 {
			info.StopReason = StopEmptyPage
			break
		}
		if stale {
			info.StopReason = StopStaleDay
			break
		}
		if info.Pages >= a.opts.MaxPages {
			info.StopReason = StopPageCeiling
			logger.Warn(ctx, "History page ceiling reached", "max_pages", a.opts.MaxPages)
			break
		}

		current, next, ok := a.nextPage(doc)
		if !ok {
			info.StopReason = StopNoNext
			break
		}
		turned, err := a.turnPage(ctx, next, current+1)
		if err != nil {
			return nil, info, err
		}
		if !turned {
			info.StopReason = StopTurnFailed
			break
		}
	}
	return records, info, nil
}

func (a *Aggregator) openHistory(ctx context.Context) error {
	p := a.w.Page()
	tab, err := a.w.WaitFor(ctx, page.CSS(a.sel.HistoryTab), nil, a.opts.Step)
	if err != nil {
		return fmt.Errorf("order history tab: %w", err)
	}
	if err := p.Click(ctx, tab); err != nil {
		return fmt.Errorf("order history tab: %w", err)
	}
	if a.sel.HistoryRegion != "" {
		if _, err := a.w.WaitFor(ctx, page.CSS(a.sel.HistoryRegion), nil, a.opts.Step); err != nil {
			return fmt.Errorf("order history region: %w", err)
		}
	}

	// Optional filters: limit orders and the one-week range.
	var filters []page.Locator
	if a.sel.HistoryLimitTab != "" {
		filters = append(filters, page.Within(a.sel.HistoryRegion, a.sel.HistoryLimitTab))
	}
	if a.sel.RangeText != "" {
		filters = append(filters, page.WithExactText(a.sel.HistoryRegion+" div", a.sel.RangeText))
	}
	for _, loc := range filters {
		el, ok, err := page.Find(ctx, p, loc)
		if err != nil {
			return err
		}
		if !ok {
			logger.Debug(ctx, "History filter missing", "filter", loc.String())
			continue
		}
		if err := p.Click(ctx, el); err != nil {
			return err
		}
	}
	return nil
}

// reset returns the history view to its first page.
func (a *Aggregator) reset(ctx context.Context) error {
	p := a.w.Page()
	doc, err := p.Document(ctx)
	if err != nil {
		return err
	}
	if current, ok := a.activePage(doc); !ok || current == 1 {
		return nil
	}

	btn := a.resetButton().Lookup(doc)
	if btn.Length() == 0 {
		btn = a.pageItem(doc, 1)
	}
	if btn.Length() == 0 {
		logger.Warn(ctx, "No way back to the first history page")
		return nil
	}
	if err := p.Click(ctx, page.NewElement(btn.First())); err != nil {
		return err
	}
	if _, ok, err := a.w.Optional(ctx, page.CSS(a.sel.PageActive), a.isActive(1), a.opts.Filter); err != nil {
		return err
	} else if !ok {
		logger.Warn(ctx, "History reset not confirmed")
	}
	return nil
}

func (a *Aggregator) resetButton() page.Locator {
	return page.Resolve("history reset button", func(doc *goquery.Document) *goquery.Selection {
		if a.sel.ResetButton != "" {
			if sel := doc.Find(a.sel.ResetButton); sel.Length() > 0 {
				return sel
			}
		}
		return doc.Find("button").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return a.sel.ResetText != "" && strings.Contains(s.Text(), a.sel.ResetText)
		})
	})
}

// parsePage returns the number of data rows, the accepted records and
// whether any row belongs to an earlier trading day.
func (a *Aggregator) parsePage(doc *goquery.Document, today string) (int, []types.TradeRecord, bool) {
	sel := doc.Find(a.sel.Rows)
	if sel.Length() == 0 && a.sel.RowsFallback != "" {
		sel = doc.Find(a.sel.RowsFallback)
	}
	rows := page.Rows(sel)

	var accepted []types.TradeRecord
	stale := false
	for _, row := range rows {
		cells := a.cells(row.Selection())
		if t, ok := a.parser.RowTime(cells); ok && TradingDay(t) < today {
			stale = true
		}
		if rec, ok := a.parser.ParseRow(cells); ok {
			accepted = append(accepted, rec)
		}
	}
	return len(rows), accepted, stale
}

func (a *Aggregator) cells(row *goquery.Selection) []string {
	sel := row.Find(a.sel.Cells)
	if sel.Length() == 0 && a.sel.CellsFallback != "" {
		sel = row.Find(a.sel.CellsFallback)
	}
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func (a *Aggregator) activePage(doc *goquery.Document) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(doc.Find(a.sel.PageActive).First().Text()))
	return n, err == nil
}

func (a *Aggregator) pageItem(doc *goquery.Document, n int) *goquery.Selection {
	want := strconv.Itoa(n)
	return doc.Find(a.sel.PageItem).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == want
	})
}

// nextPage finds the control for the page after the active one. There is a
// next page when the active page number is below the highest one listed.
func (a *Aggregator) nextPage(doc *goquery.Document) (int, page.Element, bool) {
	current, ok := a.activePage(doc)
	if !ok {
		return 0, page.Element{}, false
	}
	highest := 0
	doc.Find(a.sel.PageItem).Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > highest {
			highest = n
		}
	})
	if current >= highest {
		return current, page.Element{}, false
	}
	next := a.pageItem(doc, current+1)
	if next.Length() == 0 {
		return current, page.Element{}, false
	}
	return current, page.NewElement(next.First()), true
}

func (a *Aggregator) turnPage(ctx context.Context, next page.Element, want int) (bool, error) {
	if err := a.w.Page().Click(ctx, next); err != nil {
		return false, err
	}
	_, ok, err := a.w.Optional(ctx, page.CSS(a.sel.PageActive), a.isActive(want), a.opts.PageTurn)
	if err != nil {
		return false, err
	}
	if !ok {
		logger.Warn(ctx, "History page did not turn", "want", want)
		return false, nil
	}
	// Let the rows of the new page render.
	return true, ctxutil.Sleep(ctx, a.opts.PageTurn.Interval)
}

func (a *Aggregator) isActive(n int) waiter.Predicate {
	want := strconv.Itoa(n)
	return func(el page.Element) bool {
		return el.Text() == want
	}
}
