package interfaces

import (
	"context"

	"alpha-volume-bot/internal/types"
)

type VolumeAggregator interface {
	CollectTodayStats(ctx context.Context) (*types.DailyStats, error)
}
