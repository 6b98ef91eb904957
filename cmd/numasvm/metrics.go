package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/hupe1980/hogwild"
)

// vmCollector exports training metrics in the Prometheus text format.
type vmCollector struct {
	set *metrics.Set

	loads          *metrics.Counter
	loadErrors     *metrics.Counter
	loadedExamples *metrics.Counter
	loadSeconds    *metrics.Histogram
	epochs         *metrics.Counter
	updates        *metrics.Counter
	trainSeconds   *metrics.Histogram
	skewSeconds    *metrics.Histogram
	lastEpoch      atomic.Int64

	mu       sync.Mutex
	accuracy map[int]*atomic.Uint64
	loss     map[int]*atomic.Uint64
}

func newVMCollector() *vmCollector {
	s := metrics.NewSet()
	c := &vmCollector{
		set:            s,
		loads:          s.NewCounter("numasvm_loads_total"),
		loadErrors:     s.NewCounter("numasvm_load_errors_total"),
		loadedExamples: s.NewCounter("numasvm_loaded_examples_total"),
		loadSeconds:    s.NewHistogram("numasvm_load_duration_seconds"),
		epochs:         s.NewCounter("numasvm_epochs_total"),
		updates:        s.NewCounter("numasvm_updates_total"),
		trainSeconds:   s.NewHistogram("numasvm_epoch_train_seconds"),
		skewSeconds:    s.NewHistogram("numasvm_epoch_skew_seconds"),
		accuracy:       make(map[int]*atomic.Uint64),
		loss:           make(map[int]*atomic.Uint64),
	}
	s.NewGauge("numasvm_epoch", func() float64 { return float64(c.lastEpoch.Load()) })
	return c
}

// RecordLoad implements hogwild.MetricsCollector.
func (c *vmCollector) RecordLoad(_ string, examples int, _ int64, d time.Duration, err error) {
	c.loads.Inc()
	if err != nil {
		c.loadErrors.Inc()
		return
	}
	c.loadedExamples.Add(examples)
	c.loadSeconds.Update(d.Seconds())
}

// RecordEpoch implements hogwild.MetricsCollector.
func (c *vmCollector) RecordEpoch(epoch int, train, skew time.Duration, updates int64) {
	c.epochs.Inc()
	c.updates.Add(int(updates))
	c.trainSeconds.Update(train.Seconds())
	c.skewSeconds.Update(skew.Seconds())
	c.lastEpoch.Store(int64(epoch))
}

// RecordEvaluation implements hogwild.MetricsCollector.
func (c *vmCollector) RecordEvaluation(node int, accuracy, loss float64) {
	c.gauge(c.accuracy, "numasvm_eval_accuracy", node).Store(math.Float64bits(accuracy))
	c.gauge(c.loss, "numasvm_eval_loss", node).Store(math.Float64bits(loss))
}

func (c *vmCollector) gauge(m map[int]*atomic.Uint64, name string, node int) *atomic.Uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := m[node]; ok {
		return v
	}
	v := new(atomic.Uint64)
	m[node] = v
	c.set.NewGauge(fmt.Sprintf(`%s{node="%d"}`, name, node), func() float64 {
		return math.Float64frombits(v.Load())
	})
	return v
}

var _ hogwild.MetricsCollector = (*vmCollector)(nil)

// serveMetrics exposes the collector and process metrics on addr until the
// returned stop function is called.
func serveMetrics(addr string, c *vmCollector, logger *hogwild.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		c.set.WritePrometheus(w)
		metrics.WriteProcessMetrics(w)
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
