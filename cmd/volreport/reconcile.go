package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/page/filepage"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/types"
	"alpha-volume-bot/internal/volume"
	"alpha-volume-bot/internal/waiter"
)

// reconcile scans the saved history pages in dir and aggregates every
// trading day found, or only day when set.
func reconcile(ctx context.Context, cfg *store.Config, dir, day string) ([]volume.Summary, []*types.DailyStats, error) {
	p, err := filepage.LoadDir(ctx, cfg.Selectors, dir)
	if err != nil {
		return nil, nil, err
	}

	// Saved pages never change after a click.
	opts := volume.DefaultOptions()
	opts.MaxPages = max(cfg.Stats.MaxPages, p.Len())
	opts.Step = waiter.Options{MaxAttempts: 1}
	opts.Filter = waiter.Options{MaxAttempts: 1}
	opts.PageTurn = waiter.Options{MaxAttempts: 2, Interval: 10 * time.Millisecond}

	if day != "" {
		d, err := time.ParseInLocation(time.DateOnly, day, opts.Location)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid -day %q: %w", day, err)
		}
		// Noon falls inside the trading day that starts at 08:00.
		noon := d.Add(12 * time.Hour)
		opts.Now = func() time.Time { return noon }
	}

	agg := volume.NewAggregator(waiter.New(p), cfg.Selectors, opts)
	records, info, err := agg.Scan(ctx, day)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning saved pages: %w", err)
	}

	days := volume.Days(records)
	if day != "" {
		days = []string{day}
	}

	points := decimal.NewFromFloat(cfg.Stats.PointsMultiplier)
	var sums []volume.Summary
	var all []*types.DailyStats
	for _, d := range days {
		stats := volume.ComputeDailyStats(d, records)
		if stats.TradeCount == 0 {
			continue
		}
		stats.Scan = info
		all = append(all, stats)
		sums = append(sums, volume.Summarize(stats, points))
	}
	return sums, all, nil
}
