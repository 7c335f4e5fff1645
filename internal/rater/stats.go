package rater

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at     time.Time
	ms     int64
	failed bool
}

// StatsSnapshot aggregates the rating calls inside the window.
type StatsSnapshot struct {
	Calls     int     `json:"calls"`
	Failures  int     `json:"failures"`
	ErrorRate float64 `json:"error_rate"`
	MinMs     int64   `json:"min_ms"`
	MaxMs     int64   `json:"max_ms"`
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

// LLMStats keeps rating call latencies and outcomes for a rolling window.
type LLMStats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
}

func NewLLMStats(window time.Duration) *LLMStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LLMStats{
		samples: make([]sample, 0, 256),
		window:  window,
	}
}

// Record adds one call. Negative durations are clamped to zero.
func (s *LLMStats) Record(ms int64, failed bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, ms: max(ms, 0), failed: failed})
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	snap := StatsSnapshot{Calls: len(s.samples)}
	values := make([]int64, len(s.samples))
	var sum int64
	for i, sm := range s.samples {
		values[i] = sm.ms
		sum += sm.ms
		if sm.failed {
			snap.Failures++
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.ErrorRate = float64(snap.Failures) / float64(snap.Calls)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i := sort.Search(len(s.samples), func(i int) bool {
		return !s.samples[i].at.Before(cutoff)
	})
	if i > 0 {
		s.samples = append(s.samples[:0], s.samples[i:]...)
	}
}

// percentile interpolates linearly between closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	pos := float64(len(sorted)-1) * pct / 100
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[lo+1])-float64(sorted[lo]))*frac
}
