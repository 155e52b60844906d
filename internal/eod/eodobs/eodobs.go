package eodobs

import (
	"context"

	"alpha-volume-bot/internal/interfaces"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/trace"
	"alpha-volume-bot/internal/types"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) WriteDay(stats *types.DailyStats) (string, error) {
	ctx := context.Background()
	ctx, span := trace.StartSpan(ctx, "eod.WriteDay")
	defer span.End()

	day := ""
	if stats != nil {
		day = stats.Day
	}
	logger.InfoSkip(ctx, 1, "Starting EOD report", "day", day)

	csvPath, err := oes.summarizer.WriteDay(stats)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "EOD report failed", err, "day", day)
		return "", err
	}

	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No trades for EOD report", "day", day)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "EOD report written",
		"day", day,
		"trades", stats.TradeCount,
		"csv_path", csvPath,
	)
	return csvPath, nil
}

func (oes *observableEodSummarizer) ReportPath(day string) string {
	return oes.summarizer.ReportPath(day)
}
