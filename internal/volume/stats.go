package volume

import (
	"sort"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/types"
)

var hundred = decimal.NewFromInt(100)

// BucketByDay groups records by trading day, keeping their order.
func BucketByDay(records []types.TradeRecord) map[string][]types.TradeRecord {
	out := make(map[string][]types.TradeRecord)
	for _, r := range records {
		day := TradingDay(r.Time)
		out[day] = append(out[day], r)
	}
	return out
}

// Days lists the trading days present in records, newest first.
func Days(records []types.TradeRecord) []string {
	buckets := BucketByDay(records)
	days := make([]string, 0, len(buckets))
	for d := range buckets {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days
}

// ComputeDailyStats aggregates the records of one trading day. Sums are
// rounded after every step. Wear loss is only set when both sides traded.
func ComputeDailyStats(day string, records []types.TradeRecord) *types.DailyStats {
	s := &types.DailyStats{
		Day:        day,
		BuyTrades:  []types.TradeRecord{},
		SellTrades: []types.TradeRecord{},
	}
	for _, r := range records {
		if TradingDay(r.Time) != day {
			continue
		}
		s.TradeCount++
		switch r.Side {
		case types.SideBuy:
			s.BuyTrades = append(s.BuyTrades, r)
			s.TotalBuyVolume = s.TotalBuyVolume.Add(r.FilledVolume).Round(Places)
			s.TotalBuyValue = s.TotalBuyValue.Add(r.TotalValue).Round(Places)
		case types.SideSell:
			s.SellTrades = append(s.SellTrades, r)
			s.TotalSellVolume = s.TotalSellVolume.Add(r.FilledVolume).Round(Places)
			s.TotalSellValue = s.TotalSellValue.Add(r.TotalValue).Round(Places)
		}
	}

	if s.HasWearLoss() {
		s.WearLoss = s.TotalBuyValue.Sub(s.TotalSellValue).Round(Places)
		if s.TotalBuyValue.IsPositive() {
			s.WearLossPercentage = s.WearLoss.Div(s.TotalBuyValue).Mul(hundred).Round(Places)
		}
	}
	return s
}

// Summary carries the figures derived from DailyStats for reports.
type Summary struct {
	Day                string          `json:"day"`
	TradeCount         int             `json:"trade_count"`
	BuyCount           int             `json:"buy_count"`
	SellCount          int             `json:"sell_count"`
	TotalBuyVolume     decimal.Decimal `json:"total_buy_volume"`
	TotalSellVolume    decimal.Decimal `json:"total_sell_volume"`
	TotalBuyValue      decimal.Decimal `json:"total_buy_value"`
	TotalSellValue     decimal.Decimal `json:"total_sell_value"`
	AvgBuyPrice        decimal.Decimal `json:"avg_buy_price"`
	AvgSellPrice       decimal.Decimal `json:"avg_sell_price"`
	AvgBuyValue        decimal.Decimal `json:"avg_buy_value"`
	WearLoss           decimal.Decimal `json:"wear_loss"`
	WearLossPercentage decimal.Decimal `json:"wear_loss_percentage"`
	HasWearLoss        bool            `json:"has_wear_loss"`
	PointsVolume       decimal.Decimal `json:"points_volume"`
	Scan               types.ScanInfo  `json:"scan"`
}

// Summarize derives averages and the points-weighted volume, which counts
// buy value only.
func Summarize(s *types.DailyStats, pointsMultiplier decimal.Decimal) Summary {
	sum := Summary{
		Day:                s.Day,
		TradeCount:         s.TradeCount,
		BuyCount:           len(s.BuyTrades),
		SellCount:          len(s.SellTrades),
		TotalBuyVolume:     s.TotalBuyVolume,
		TotalSellVolume:    s.TotalSellVolume,
		TotalBuyValue:      s.TotalBuyValue,
		TotalSellValue:     s.TotalSellValue,
		WearLoss:           s.WearLoss,
		WearLossPercentage: s.WearLossPercentage,
		HasWearLoss:        s.HasWearLoss(),
		PointsVolume:       s.TotalBuyValue.Mul(pointsMultiplier).Round(Places),
		Scan:               s.Scan,
	}
	if s.TotalBuyVolume.IsPositive() {
		sum.AvgBuyPrice = s.TotalBuyValue.Div(s.TotalBuyVolume).Round(Places)
	}
	if s.TotalSellVolume.IsPositive() {
		sum.AvgSellPrice = s.TotalSellValue.Div(s.TotalSellVolume).Round(Places)
	}
	if n := len(s.BuyTrades); n > 0 {
		sum.AvgBuyValue = s.TotalBuyValue.Div(decimal.NewFromInt(int64(n))).Round(Places)
	}
	return sum
}
