// Package telemetry keeps in-process operation metrics: recent durations per
// operation with a p95 readout, and named counters. Nothing leaves the process.
package telemetry

import (
	"sort"
	"sync"
	"time"
)

// MaxSamples is the number of recent durations kept per operation.
const MaxSamples = 200

// Operation names recorded by the engine.
const (
	OpSearch       = "search"
	OpRecommend    = "recommend"
	OpRecommendMMR = "recommend_mmr"
	OpAsk          = "assistant_ask"
	OpBuild        = "index_build"
)

// LatencyBucket is a coarse latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// Metrics records durations and counters. The zero value is not usable; call
// NewMetrics. A nil *Metrics ignores all records.
type Metrics struct {
	mu        sync.Mutex
	durations map[string]*CircularBuffer[int64]
	counters  map[string]int64
	buckets   map[string]map[LatencyBucket]int64
}

// NewMetrics creates an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{
		durations: make(map[string]*CircularBuffer[int64]),
		counters:  make(map[string]int64),
		buckets:   make(map[string]map[LatencyBucket]int64),
	}
}

// RecordDuration stores d (in whole milliseconds) for op.
func (m *Metrics) RecordDuration(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	buf, ok := m.durations[op]
	if !ok {
		buf = NewCircularBuffer[int64](MaxSamples)
		m.durations[op] = buf
	}
	if m.buckets[op] == nil {
		m.buckets[op] = make(map[LatencyBucket]int64)
	}
	m.buckets[op][LatencyToBucket(d)]++
	m.mu.Unlock()

	buf.Add(d.Milliseconds())
}

// P95 returns the 95th percentile of recent durations for op in milliseconds,
// taken as sorted[int(0.95*(n-1))]. Zero when nothing was recorded.
func (m *Metrics) P95(op string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	buf, ok := m.durations[op]
	m.mu.Unlock()
	if !ok {
		return 0
	}

	samples := buf.Items()
	if len(samples) == 0 {
		return 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return samples[int(0.95*float64(len(samples)-1))]
}

// Incr adds delta to the named counter.
func (m *Metrics) Incr(name string, delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// Counter returns the named counter.
func (m *Metrics) Counter(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// OpStats summarises one operation.
type OpStats struct {
	Samples int                     `json:"samples"`
	P95Ms   int64                   `json:"p95_ms"`
	Buckets map[LatencyBucket]int64 `json:"buckets"`
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Operations map[string]OpStats `json:"operations"`
	Counters   map[string]int64   `json:"counters"`
}

// Snapshot copies the current metrics.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Operations: make(map[string]OpStats),
		Counters:   make(map[string]int64),
	}
	if m == nil {
		return snap
	}

	m.mu.Lock()
	ops := make([]string, 0, len(m.durations))
	for op := range m.durations {
		ops = append(ops, op)
	}
	for name, v := range m.counters {
		snap.Counters[name] = v
	}
	buckets := make(map[string]map[LatencyBucket]int64, len(m.buckets))
	for op, b := range m.buckets {
		cp := make(map[LatencyBucket]int64, len(b))
		for k, v := range b {
			cp[k] = v
		}
		buckets[op] = cp
	}
	sizes := make(map[string]int, len(ops))
	for _, op := range ops {
		sizes[op] = m.durations[op].Size()
	}
	m.mu.Unlock()

	for _, op := range ops {
		snap.Operations[op] = OpStats{
			Samples: sizes[op],
			P95Ms:   m.P95(op),
			Buckets: buckets[op],
		}
	}
	return snap
}
