package hogwild

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting training metrics.
// Implement this interface to integrate with monitoring systems.
//
// Example VictoriaMetrics integration:
//
//	type vmCollector struct{ epochs *metrics.Counter }
//
//	func (c *vmCollector) RecordEpoch(epoch int, train, skew time.Duration, updates int64) {
//	    c.epochs.Inc()
//	}
type MetricsCollector interface {
	// RecordLoad is called once per dataset after all nodes loaded it.
	// examples is the per-node example count, bytes the node memory used by
	// all copies.
	RecordLoad(name string, examples int, bytes int64, duration time.Duration, err error)

	// RecordEpoch is called after every epoch.
	RecordEpoch(epoch int, train, skew time.Duration, updates int64)

	// RecordEvaluation is called for every node after the final evaluation.
	RecordEvaluation(node int, accuracy, loss float64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

// RecordLoad implements MetricsCollector.
func (NoopMetricsCollector) RecordLoad(string, int, int64, time.Duration, error) {}

// RecordEpoch implements MetricsCollector.
func (NoopMetricsCollector) RecordEpoch(int, time.Duration, time.Duration, int64) {}

// RecordEvaluation implements MetricsCollector.
func (NoopMetricsCollector) RecordEvaluation(int, float64, float64) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	LoadCount       atomic.Int64
	LoadErrors      atomic.Int64
	LoadedExamples  atomic.Int64
	LoadedBytes     atomic.Int64
	EpochCount      atomic.Int64
	TrainTotalNanos atomic.Int64
	MaxSkewNanos    atomic.Int64
	Updates         atomic.Int64

	mu        sync.Mutex
	accuracy  map[int]float64
	loss      map[int]float64
	lastEpoch atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ string, examples int, bytes int64, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadedExamples.Add(int64(examples))
	b.LoadedBytes.Add(bytes)
}

// RecordEpoch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEpoch(epoch int, train, skew time.Duration, updates int64) {
	b.EpochCount.Add(1)
	b.TrainTotalNanos.Add(train.Nanoseconds())
	b.Updates.Add(updates)
	b.lastEpoch.Store(int64(epoch))
	for {
		cur := b.MaxSkewNanos.Load()
		if skew.Nanoseconds() <= cur || b.MaxSkewNanos.CompareAndSwap(cur, skew.Nanoseconds()) {
			break
		}
	}
}

// RecordEvaluation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEvaluation(node int, accuracy, loss float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accuracy == nil {
		b.accuracy = make(map[int]float64)
		b.loss = make(map[int]float64)
	}
	b.accuracy[node] = accuracy
	b.loss[node] = loss
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
		LoadedExamples: b.LoadedExamples.Load(),
		LoadedBytes:    b.LoadedBytes.Load(),
		EpochCount:     b.EpochCount.Load(),
		LastEpoch:      int(b.lastEpoch.Load()),
		MaxSkew:        time.Duration(b.MaxSkewNanos.Load()),
		Updates:        b.Updates.Load(),
		Accuracy:       math.NaN(),
		Loss:           math.NaN(),
	}
	if s.EpochCount > 0 {
		s.AvgTrain = time.Duration(b.TrainTotalNanos.Load() / s.EpochCount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if acc, ok := b.accuracy[0]; ok {
		s.Accuracy, s.Loss = acc, b.loss[0]
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount      int64
	LoadErrors     int64
	LoadedExamples int64
	LoadedBytes    int64
	EpochCount     int64
	LastEpoch      int
	AvgTrain       time.Duration
	MaxSkew        time.Duration
	Updates        int64
	// Accuracy and Loss are node 0's final scores, NaN before evaluation.
	Accuracy float64
	Loss     float64
}
