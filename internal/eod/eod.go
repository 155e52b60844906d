// Package eod writes the end-of-day volume report for a trading day.
package eod

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/interfaces"
	"alpha-volume-bot/internal/types"
	"alpha-volume-bot/internal/volume"
)

type eodSummarizer struct {
	dir              string
	pointsMultiplier decimal.Decimal
}

var _ interfaces.EodSummarizer = (*eodSummarizer)(nil)

func (s *eodSummarizer) ReportPath(day string) string {
	return reportPath(s.dir, day)
}

// WriteDay writes one row per filled trade, oldest first, followed by the
// per-side totals, the wear loss when both sides traded and the
// points-weighted volume. Days without trades produce no file and an empty
// path.
func (s *eodSummarizer) WriteDay(stats *types.DailyStats) (string, error) {
	if stats == nil || stats.TradeCount == 0 {
		return "", nil
	}
	sum := volume.Summarize(stats, s.pointsMultiplier)

	trades := make([]types.TradeRecord, 0, stats.TradeCount)
	trades = append(trades, stats.BuyTrades...)
	trades = append(trades, stats.SellTrades...)
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Time.Before(trades[j].Time)
	})

	outPath := s.ReportPath(stats.Day)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	tmp := outPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		out.Close()
		return "", err
	}
	for _, tr := range trades {
		rec := []string{
			tr.Time.Format("2006-01-02 15:04:05"),
			string(tr.Side),
			fixed(tr.FilledVolume),
			fixed(tr.Price),
			fixed(tr.TotalValue),
			tr.Status,
		}
		if err := w.Write(rec); err != nil {
			out.Close()
			return "", err
		}
	}
	for _, rec := range summaryRows(sum) {
		if err := w.Write(rec); err != nil {
			out.Close()
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, outPath); err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}
	return outPath, nil
}

func summaryRows(sum volume.Summary) [][]string {
	rows := [][]string{
		{rowTotal, string(types.SideBuy), fixed(sum.TotalBuyVolume), fixed(sum.AvgBuyPrice), fixed(sum.TotalBuyValue), strconv.Itoa(sum.BuyCount)},
		{rowTotal, string(types.SideSell), fixed(sum.TotalSellVolume), fixed(sum.AvgSellPrice), fixed(sum.TotalSellValue), strconv.Itoa(sum.SellCount)},
	}
	if sum.HasWearLoss {
		rows = append(rows, []string{rowWearLoss, "", "", "", fixed(sum.WearLoss), fixed(sum.WearLossPercentage) + "%"})
	}
	rows = append(rows, []string{rowPoints, "", "", "", fixed(sum.PointsVolume), ""})
	return rows
}
