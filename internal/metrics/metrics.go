// Package metrics collects counters and stage timings across discovery runs.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates metrics.
type Collector struct {
	// Counters
	runsTotal      atomic.Int64
	runsFailed     atomic.Int64
	entriesTotal   atomic.Int64
	malformedTotal atomic.Int64
	urlsTotal      atomic.Int64

	// Stage timings
	stages  map[string]*timing
	stageMu sync.RWMutex

	// Error breakdown
	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	// URL type breakdown
	urlTypes map[string]*atomic.Int64
	typeMu   sync.RWMutex

	// Start time
	startTime time.Time
}

type timing struct {
	sumMs   atomic.Int64
	count   atomic.Int64
	buckets [10]atomic.Int64 // <10, <50, <100, <250, <500, <1000, <2500, <5000, <10000, >=10000
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		stages:      make(map[string]*timing),
		errorCounts: make(map[string]*atomic.Int64),
		urlTypes:    make(map[string]*atomic.Int64),
		startTime:   time.Now(),
	}
}

// RecordRun records a finished run.
func (c *Collector) RecordRun(failed bool) {
	c.runsTotal.Add(1)
	if failed {
		c.runsFailed.Add(1)
	}
}

// RecordError records a failed stage.
func (c *Collector) RecordError(stage string) {
	increment(&c.errorMu, c.errorCounts, stage, 1)
}

// RecordStageTime records how long a stage took.
func (c *Collector) RecordStageTime(stage string, d time.Duration) {
	c.stageMu.Lock()
	t := c.stages[stage]
	if t == nil {
		t = &timing{}
		c.stages[stage] = t
	}
	c.stageMu.Unlock()

	ms := d.Milliseconds()
	t.sumMs.Add(ms)
	t.count.Add(1)
	t.buckets[getBucket(ms)].Add(1)
}

// RecordExtraction records the log entries scanned and the URLs kept, by type.
func (c *Collector) RecordExtraction(entries, malformed int, byType map[string]int) {
	c.entriesTotal.Add(int64(entries))
	c.malformedTotal.Add(int64(malformed))
	for t, n := range byType {
		c.urlsTotal.Add(int64(n))
		increment(&c.typeMu, c.urlTypes, t, int64(n))
	}
}

func increment(mu *sync.RWMutex, m map[string]*atomic.Int64, key string, n int64) {
	mu.Lock()
	if m[key] == nil {
		m[key] = &atomic.Int64{}
	}
	m[key].Add(n)
	mu.Unlock()
}

// getBucket returns the histogram bucket for a duration in milliseconds.
func getBucket(ms int64) int {
	switch {
	case ms < 10:
		return 0
	case ms < 50:
		return 1
	case ms < 100:
		return 2
	case ms < 250:
		return 3
	case ms < 500:
		return 4
	case ms < 1000:
		return 5
	case ms < 2500:
		return 6
	case ms < 5000:
		return 7
	case ms < 10000:
		return 8
	default:
		return 9
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:      time.Now(),
		Uptime:         time.Since(c.startTime),
		RunsTotal:      c.runsTotal.Load(),
		RunsFailed:     c.runsFailed.Load(),
		EntriesTotal:   c.entriesTotal.Load(),
		MalformedTotal: c.malformedTotal.Load(),
		URLsTotal:      c.urlsTotal.Load(),
		ErrorCounts:    make(map[string]int64),
		URLTypes:       make(map[string]int64),
		Stages:         make(map[string]StageStats),
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	c.typeMu.RLock()
	for k, v := range c.urlTypes {
		s.URLTypes[k] = v.Load()
	}
	c.typeMu.RUnlock()

	c.stageMu.RLock()
	for name, t := range c.stages {
		stats := StageStats{Count: t.count.Load(), Histogram: make([]int64, 10)}
		if stats.Count > 0 {
			stats.Average = time.Duration(t.sumMs.Load()/stats.Count) * time.Millisecond
		}
		for i := range t.buckets {
			stats.Histogram[i] = t.buckets[i].Load()
		}
		s.Stages[name] = stats
	}
	c.stageMu.RUnlock()

	return s
}

// StageStats summarizes the timings of one stage.
type StageStats struct {
	Count     int64         `json:"count"`
	Average   time.Duration `json:"average"`
	Histogram []int64       `json:"histogram"`
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp      time.Time             `json:"timestamp"`
	Uptime         time.Duration         `json:"uptime"`
	RunsTotal      int64                 `json:"runs_total"`
	RunsFailed     int64                 `json:"runs_failed"`
	EntriesTotal   int64                 `json:"entries_total"`
	MalformedTotal int64                 `json:"malformed_total"`
	URLsTotal      int64                 `json:"urls_total"`
	ErrorCounts    map[string]int64      `json:"error_counts"`
	URLTypes       map[string]int64      `json:"url_types"`
	Stages         map[string]StageStats `json:"stages"`
}

// FailureRate returns failed runs / runs.
func (s *Snapshot) FailureRate() float64 {
	if s.RunsTotal == 0 {
		return 0
	}
	return float64(s.RunsFailed) / float64(s.RunsTotal)
}

// Summary returns a flat view suitable for structured log fields.
func (s *Snapshot) Summary() map[string]interface{} {
	summary := map[string]interface{}{
		"uptime":          s.Uptime.String(),
		"runs_total":      s.RunsTotal,
		"failure_rate":    s.FailureRate(),
		"entries_total":   s.EntriesTotal,
		"malformed_total": s.MalformedTotal,
		"urls_total":      s.URLsTotal,
	}

	names := make([]string, 0, len(s.Stages))
	for name := range s.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		summary[name+"_avg_ms"] = s.Stages[name].Average.Milliseconds()
	}
	return summary
}
