package volume

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/types"
)

func record(at time.Time, side types.Side, volume, value string) types.TradeRecord {
	return types.TradeRecord{
		Time:         at,
		Side:         side,
		FilledVolume: decimal.RequireFromString(volume),
		TotalValue:   decimal.RequireFromString(value),
		Status:       "已成交",
	}
}

func TestWearLossExample(t *testing.T) {
	at := time.Date(2025, 6, 10, 10, 0, 0, 0, cst)
	records := []types.TradeRecord{
		record(at, types.SideBuy, "60", "300.00000000"),
		record(at, types.SideBuy, "40", "200.00000000"),
		record(at, types.SideSell, "100", "498.50000000"),
	}

	s := ComputeDailyStats("2025-06-10", records)

	if !s.TotalBuyValue.Equal(decimal.NewFromInt(500)) || !s.TotalBuyVolume.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Unexpected buy totals %s / %s", s.TotalBuyValue, s.TotalBuyVolume)
	}
	if !s.WearLoss.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Expected wear loss 1.5, got %s", s.WearLoss)
	}
	if !s.WearLossPercentage.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("Expected wear loss 0.3%%, got %s", s.WearLossPercentage)
	}
	if s.WearLoss.StringFixed(8) != "1.50000000" {
		t.Errorf("Expected 1.50000000, got %s", s.WearLoss.StringFixed(8))
	}
	if s.TradeCount != 3 || len(s.BuyTrades) != 2 || len(s.SellTrades) != 1 {
		t.Errorf("Unexpected counts: %d trades, %d buys, %d sells", s.TradeCount, len(s.BuyTrades), len(s.SellTrades))
	}
}

func TestWearLossNeedsBothSides(t *testing.T) {
	at := time.Date(2025, 6, 10, 10, 0, 0, 0, cst)
	s := ComputeDailyStats("2025-06-10", []types.TradeRecord{
		record(at, types.SideBuy, "100", "500"),
	})
	if s.HasWearLoss() {
		t.Error("Expected no wear loss with buys only")
	}
	if !s.WearLoss.IsZero() || !s.WearLossPercentage.IsZero() {
		t.Errorf("Expected zero wear loss, got %s / %s", s.WearLoss, s.WearLossPercentage)
	}
}

func TestComputeKeepsOnlyTheDay(t *testing.T) {
	records := []types.TradeRecord{
		record(time.Date(2025, 6, 10, 8, 0, 0, 0, cst), types.SideBuy, "1", "1"),
		record(time.Date(2025, 6, 10, 7, 59, 0, 0, cst), types.SideBuy, "2", "2"),
	}
	s := ComputeDailyStats("2025-06-10", records)
	if s.TradeCount != 1 || !s.TotalBuyVolume.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected only the 08:00 trade, got %d trades volume %s", s.TradeCount, s.TotalBuyVolume)
	}

	days := Days(records)
	if len(days) != 2 || days[0] != "2025-06-10" || days[1] != "2025-06-09" {
		t.Errorf("Expected newest-first days, got %v", days)
	}
}

func TestRoundingPerStep(t *testing.T) {
	at := time.Date(2025, 6, 10, 10, 0, 0, 0, cst)
	var records []types.TradeRecord
	for i := 0; i < 3; i++ {
		records = append(records, record(at, types.SideBuy, "0.000000004", "0.000000004"))
	}
	// Each addition rounds to 8 places, so 0 + 4e-9 stays 0 every time.
	s := ComputeDailyStats("2025-06-10", records)
	if !s.TotalBuyVolume.IsZero() {
		t.Errorf("Expected per-step rounding to keep 0, got %s", s.TotalBuyVolume)
	}
}

func TestSummarize(t *testing.T) {
	at := time.Date(2025, 6, 10, 10, 0, 0, 0, cst)
	s := ComputeDailyStats("2025-06-10", []types.TradeRecord{
		record(at, types.SideBuy, "100", "500"),
		record(at, types.SideBuy, "100", "502"),
		record(at, types.SideSell, "200", "1000"),
	})

	sum := Summarize(s, decimal.NewFromInt(4))
	if !sum.AvgBuyPrice.Equal(decimal.RequireFromString("5.01")) {
		t.Errorf("Expected avg buy price 5.01, got %s", sum.AvgBuyPrice)
	}
	if !sum.AvgSellPrice.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected avg sell price 5, got %s", sum.AvgSellPrice)
	}
	if !sum.AvgBuyValue.Equal(decimal.NewFromInt(501)) {
		t.Errorf("Expected avg buy value 501, got %s", sum.AvgBuyValue)
	}
	if !sum.PointsVolume.Equal(decimal.NewFromInt(4008)) {
		t.Errorf("Expected points volume 4008, got %s", sum.PointsVolume)
	}
}
