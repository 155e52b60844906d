package interfaces

import "alpha-volume-bot/internal/types"

type EodSummarizer interface {
	// WriteDay writes the CSV report for one trading day and returns its path.
	WriteDay(stats *types.DailyStats) (csvPath string, err error)
	// ReportPath is where the report for day would be written.
	ReportPath(day string) string
}
