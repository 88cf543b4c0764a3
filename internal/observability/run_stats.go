// Package observability tracks run statistics for the profiling pipeline:
// per-stage timings, ingest counters and event-name frequencies. The tracker
// backs the stats endpoint in serve mode and the CLI run summary.
package observability

import (
	"sort"
	"sync"
	"time"

	"github.com/pathsight/pathsight/pkg/types"
)

// Canonical stage names recorded by the pipeline.
const (
	StageIngest      = "ingest"
	StageReconstruct = "reconstruct"
	StageAnalyze     = "analyze"
	StageReport      = "report"
)

// Canonical counter names.
const (
	CounterEventsParsed   = "events_parsed"
	CounterMalformed      = "records_malformed"
	CounterDuplicates     = "duplicates_dropped"
	CounterUsers          = "unique_users"
	CounterSessions       = "sessions"
	CounterRunsCompleted  = "runs_completed"
	CounterRunsFailed     = "runs_failed"
	CounterReportsServed  = "reports_served"
	CounterCatalogPruned  = "catalog_runs_pruned"
	CounterBloomNegatives = "catalog_bloom_negatives"
)

// RunStats aggregates pipeline activity across runs.
type RunStats struct {
	mu        sync.RWMutex
	stages    map[string]*StageStats
	counters  map[string]int64
	eventFreq map[string]*EventStats
	window    time.Duration
}

// StageStats holds cumulative timing for one pipeline stage.
type StageStats struct {
	Stage         string        `json:"stage"`
	Runs          int64         `json:"runs"`
	TotalDuration time.Duration `json:"total_duration_ns"`
	LastRun       time.Time     `json:"last_run"`
}

// EventStats holds the observed frequency of one event name.
type EventStats struct {
	Name      string    `json:"event_name"`
	Frequency int64     `json:"frequency"`
	LastSeen  time.Time `json:"last_seen"`
}

// Snapshot is a point-in-time copy of all tracked statistics.
type Snapshot struct {
	Counters  map[string]int64 `json:"counters"`
	Stages    []StageStats     `json:"stages"`
	TopEvents []EventStats     `json:"top_events"`
}

// NewRunStats creates a run statistics tracker.
// window: retention for event-frequency entries, pruned by LastSeen.
func NewRunStats(window time.Duration) *RunStats {
	return &RunStats{
		stages:    make(map[string]*StageStats),
		counters:  make(map[string]int64),
		eventFreq: make(map[string]*EventStats),
		window:    window,
	}
}

// RecordStage records one completed execution of a pipeline stage.
// This method is O(1) and thread-safe.
func (r *RunStats) RecordStage(stage string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, exists := r.stages[stage]
	if !exists {
		stats = &StageStats{Stage: stage}
		r.stages[stage] = stats
	}

	stats.Runs++
	stats.TotalDuration += d
	stats.LastRun = time.Now()
}

// AddCounter increments a named counter.
// This method is O(1) and thread-safe.
func (r *RunStats) AddCounter(name string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

// Counter returns the current value of a named counter.
func (r *RunStats) Counter(name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// RecordEvents bulk-increments event-name frequencies for a parsed stream.
func (r *RunStats) RecordEvents(events []types.Event) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range events {
		stats, exists := r.eventFreq[events[i].Name]
		if !exists {
			stats = &EventStats{Name: events[i].Name}
			r.eventFreq[events[i].Name] = stats
		}
		stats.Frequency++
		stats.LastSeen = now
	}
}

// TopEvents returns the top N event names by frequency.
// Returns a copy of the stats sorted by frequency (descending).
func (r *RunStats) TopEvents(n int) []EventStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || len(r.eventFreq) == 0 {
		return []EventStats{}
	}

	stats := make([]EventStats, 0, len(r.eventFreq))
	for _, s := range r.eventFreq {
		// Copy so callers cannot mutate tracked state.
		stats = append(stats, *s)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Name < stats[j].Name
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Stages returns a copy of all stage timings, sorted by stage name.
func (r *RunStats) Stages() []StageStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]StageStats, 0, len(r.stages))
	for _, s := range r.stages {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Stage < stats[j].Stage })
	return stats
}

// Snapshot returns a point-in-time copy of everything tracked, with event
// frequencies capped at topN.
func (r *RunStats) Snapshot(topN int) Snapshot {
	snap := Snapshot{
		Counters:  make(map[string]int64),
		Stages:    r.Stages(),
		TopEvents: r.TopEvents(topN),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, v := range r.counters {
		snap.Counters[name] = v
	}
	return snap
}

// Prune removes event-frequency entries where time.Since(LastSeen) > window.
// This should be called periodically in serve mode.
func (r *RunStats) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	threshold := time.Now().Add(-r.window)
	for name, stats := range r.eventFreq {
		if stats.LastSeen.Before(threshold) {
			delete(r.eventFreq, name)
		}
	}
}
