package toolregistry

import (
	"sync"
	"time"
)

// Stats keeps running counters over all dispatches.
type Stats struct {
	mu         sync.Mutex
	totalCalls int64
	successes  int64
	failures   int64
	avgElapsed time.Duration
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	TotalCalls int64         `json:"total_calls"`
	Successes  int64         `json:"successes"`
	Failures   int64         `json:"failures"`
	AvgElapsed time.Duration `json:"avg_elapsed"`
}

func (s *Stats) record(success bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCalls++
	if success {
		s.successes++
	} else {
		s.failures++
	}
	// Incremental moving average, avoids keeping per-call history.
	s.avgElapsed += (elapsed - s.avgElapsed) / time.Duration(s.totalCalls)
}

func (s *Stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		TotalCalls: s.totalCalls,
		Successes:  s.successes,
		Failures:   s.failures,
		AvgElapsed: s.avgElapsed,
	}
}
