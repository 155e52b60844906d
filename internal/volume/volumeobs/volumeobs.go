package volumeobs

import (
	"context"
	"time"

	"alpha-volume-bot/internal/interfaces"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/trace"
	"alpha-volume-bot/internal/types"
)

type observableAggregator struct {
	agg interfaces.VolumeAggregator
}

var _ interfaces.VolumeAggregator = (*observableAggregator)(nil)

func Wrap(agg interfaces.VolumeAggregator) interfaces.VolumeAggregator {
	return &observableAggregator{agg: agg}
}

func (oa *observableAggregator) CollectTodayStats(ctx context.Context) (*types.DailyStats, error) {
	ctx, span := trace.StartSpan(ctx, "volume.CollectTodayStats")
	defer span.End()

	start := time.Now()
	logger.DebugSkip(ctx, 1, "Collecting today's volume")

	stats, err := oa.agg.CollectTodayStats(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Volume collection failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Volume collected",
		"day", stats.Day,
		"trades", stats.TradeCount,
		"buy_volume", stats.TotalBuyVolume.String(),
		"sell_volume", stats.TotalSellVolume.String(),
		"wear_loss_pct", stats.WearLossPercentage.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return stats, nil
}
