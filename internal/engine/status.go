package engine

import (
	"sync"
	"time"

	"alpha-volume-bot/internal/types"
)

// runStatus holds the report readers see while a run is in progress.
type runStatus struct {
	mu  sync.RWMutex
	rep types.RunReport
}

func newRunStatus() *runStatus {
	return &runStatus{rep: types.RunReport{State: types.StateIdle}}
}

func (s *runStatus) reset(runID string, target int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rep = types.RunReport{
		RunID:        runID,
		State:        types.StateCheckingVolumeGate,
		TargetRounds: target,
		StartedAt:    now,
	}
}

// update applies f under the lock and returns the resulting report.
func (s *runStatus) update(f func(r *types.RunReport)) types.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.rep)
	return s.rep
}

func (s *runStatus) stopping() {
	s.update(func(r *types.RunReport) {
		if r.State == types.StateRunning || r.State == types.StateCheckingVolumeGate {
			r.State = types.StateStopping
		}
	})
}

func (s *runStatus) snapshot() types.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rep
}
