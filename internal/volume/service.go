package volume

import (
	"context"
	"errors"
	"sync"
	"time"

	"alpha-volume-bot/internal/interfaces"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/types"
)

var ErrBusy = errors.New("page busy")

// Service runs aggregations under the page lock and keeps the latest result
// for readers.
type Service struct {
	agg  interfaces.VolumeAggregator
	lock *page.Lock

	// OnStats, when set, receives every fresh result.
	OnStats func(ctx context.Context, stats *types.DailyStats)

	mu      sync.RWMutex
	last    *types.DailyStats
	lastAt  time.Time
	lastErr error
}

func NewService(agg interfaces.VolumeAggregator, lock *page.Lock) *Service {
	return &Service{agg: agg, lock: lock}
}

// Refresh waits for the page and collects fresh statistics.
func (s *Service) Refresh(ctx context.Context) (*types.DailyStats, error) {
	if err := s.lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.lock.Release()
	return s.collect(ctx)
}

// TryRefresh collects fresh statistics only if the page is free right now.
func (s *Service) TryRefresh(ctx context.Context) (*types.DailyStats, error) {
	if !s.lock.TryAcquire() {
		return nil, ErrBusy
	}
	defer s.lock.Release()
	return s.collect(ctx)
}

func (s *Service) collect(ctx context.Context) (*types.DailyStats, error) {
	stats, err := s.agg.CollectTodayStats(ctx)

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.last, s.lastAt = stats, time.Now()
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if s.OnStats != nil {
		s.OnStats(ctx, stats)
	}
	return stats, nil
}

// Last returns the most recent successful result, if any, and the error of
// the most recent attempt.
func (s *Service) Last() (*types.DailyStats, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastAt, s.lastErr
}

// RunPeriodic refreshes on every tick while the page is free, until ctx ends.
func (s *Service) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.TryRefresh(ctx); err != nil {
				if errors.Is(err, ErrBusy) {
					logger.Debug(ctx, "Skipping periodic stats refresh, page busy")
					continue
				}
				logger.ErrorWithErr(ctx, "Periodic stats refresh failed", err)
			}
		}
	}
}
