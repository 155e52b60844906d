package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"alpha-volume-bot/internal/volume"
)

// ReportFormat specifies the console output format
type ReportFormat string

const (
	FormatJSON ReportFormat = "json"
	FormatText ReportFormat = "text"
)

// generateReport renders the per-day summaries, newest day first.
func generateReport(sums []volume.Summary, format ReportFormat) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(sums, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatText:
		return textReport(sums), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func textReport(sums []volume.Summary) string {
	var sb strings.Builder

	rule := strings.Repeat("=", 64) + "\n"
	for _, s := range sums {
		sb.WriteString(rule)
		sb.WriteString(fmt.Sprintf("TRADING DAY %s\n", s.Day))
		sb.WriteString(rule)
		sb.WriteString(fmt.Sprintf("Trades:            %d (%d buy, %d sell)\n", s.TradeCount, s.BuyCount, s.SellCount))
		sb.WriteString(fmt.Sprintf("Buy volume:        %s\n", s.TotalBuyVolume.StringFixed(8)))
		sb.WriteString(fmt.Sprintf("Buy value:         %s\n", s.TotalBuyValue.StringFixed(8)))
		sb.WriteString(fmt.Sprintf("Sell volume:       %s\n", s.TotalSellVolume.StringFixed(8)))
		sb.WriteString(fmt.Sprintf("Sell value:        %s\n", s.TotalSellValue.StringFixed(8)))
		sb.WriteString(fmt.Sprintf("Avg buy price:     %s\n", s.AvgBuyPrice.StringFixed(8)))
		sb.WriteString(fmt.Sprintf("Avg sell price:    %s\n", s.AvgSellPrice.StringFixed(8)))
		sb.WriteString(fmt.Sprintf("Avg buy value:     %s\n", s.AvgBuyValue.StringFixed(8)))
		if s.HasWearLoss {
			sb.WriteString(fmt.Sprintf("Wear loss:         %s (%s%%)\n", s.WearLoss.StringFixed(8), s.WearLossPercentage.StringFixed(4)))
		} else {
			sb.WriteString("Wear loss:         n/a (needs buys and sells)\n")
		}
		sb.WriteString(fmt.Sprintf("Points volume:     %s\n", s.PointsVolume.StringFixed(8)))
		sb.WriteString("\n")
	}
	if len(sums) > 0 {
		scan := sums[0].Scan
		sb.WriteString(fmt.Sprintf("Scan: %d pages, %d rows, %d records, stopped: %s\n", scan.Pages, scan.Rows, scan.Records, scan.StopReason))
	}
	return sb.String()
}
