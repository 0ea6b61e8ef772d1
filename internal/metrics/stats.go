package metrics

import (
	"sync"
	"time"
)

// LookupSnapshot is a read-only view of the aggregate lookup counters.
// TotalLookups counts attempts; DirectHits counts resolutions that produced at
// least one district.
type LookupSnapshot struct {
	TotalLookups         uint64  `json:"totalLookups"`
	MultiDistrictLookups uint64  `json:"multiDistrictLookups"`
	DirectHits           uint64  `json:"directHits"`
	AverageResponseMs    float64 `json:"averageResponseTime"`
}

// Sink observes lookup activity. It is injectable so tests can supply an
// isolated instance instead of mutating process-wide state.
type Sink interface {
	RecordLookup(duration time.Duration, multiDistrict, hit bool)
	Snapshot() LookupSnapshot
	Reset()
}

// LookupStats is the in-process Sink. The average is kept as an incremental
// mean so memory stays bounded regardless of traffic.
type LookupStats struct {
	mu        sync.Mutex
	total     uint64
	multi     uint64
	hits      uint64
	averageMs float64
}

// NewLookupStats returns a zeroed sink.
func NewLookupStats() *LookupStats {
	return &LookupStats{}
}

// RecordLookup folds one lookup into the counters. Every attempt counts
// toward the total; only successful resolutions count as hits.
func (s *LookupStats) RecordLookup(duration time.Duration, multiDistrict, hit bool) {
	ms := float64(duration) / float64(time.Millisecond)
	if ms < 0 {
		ms = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if multiDistrict {
		s.multi++
	}
	if hit {
		s.hits++
	}
	s.averageMs += (ms - s.averageMs) / float64(s.total)
}

// Snapshot returns the current counters.
func (s *LookupStats) Snapshot() LookupSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LookupSnapshot{
		TotalLookups:         s.total,
		MultiDistrictLookups: s.multi,
		DirectHits:           s.hits,
		AverageResponseMs:    s.averageMs,
	}
}

// Reset zeroes all counters. Used by test setup and the diagnostics surface,
// never by production request paths.
func (s *LookupStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	s.multi = 0
	s.hits = 0
	s.averageMs = 0
}
