package engine

import (
	"sync"
	"time"
)

// Metrics accumulates save counters for status reporting. All methods are
// safe for concurrent use.
type Metrics struct {
	mu               sync.Mutex
	totalSaves       int64
	incrementalSaves int64
	fullSaves        int64
	avgDuration      time.Duration
	lastSave         time.Time
}

// MetricsSnapshot is a read-only copy of the counters at one instant.
type MetricsSnapshot struct {
	TotalSaves       int64
	IncrementalSaves int64
	FullSaves        int64
	AverageDuration  time.Duration
	LastSave         time.Time
}

func (m *Metrics) record(duration time.Duration, incremental bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSaves++
	if incremental {
		m.incrementalSaves++
	} else {
		m.fullSaves++
	}
	// Running average without keeping the full history.
	m.avgDuration += (duration - m.avgDuration) / time.Duration(m.totalSaves)
	m.lastSave = time.Now()
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		TotalSaves:       m.totalSaves,
		IncrementalSaves: m.incrementalSaves,
		FullSaves:        m.fullSaves,
		AverageDuration:  m.avgDuration,
		LastSave:         m.lastSave,
	}
}
