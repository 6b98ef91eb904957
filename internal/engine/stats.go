package engine

import "time"

// Eval aggregates a scoring pass of one node's replica over one partition.
type Eval struct {
	Node     int
	Examples int
	Correct  int
	Loss     float64
}

// Accuracy returns the fraction of correctly classified examples.
func (e Eval) Accuracy() float64 {
	if e.Examples == 0 {
		return 0
	}
	return float64(e.Correct) / float64(e.Examples)
}

// MeanLoss returns the average loss per example.
func (e Eval) MeanLoss() float64 {
	if e.Examples == 0 {
		return 0
	}
	return e.Loss / float64(e.Examples)
}

func (e *Eval) merge(o Eval) {
	e.Examples += o.Examples
	e.Correct += o.Correct
	e.Loss += o.Loss
}

// EpochStats describes one finished epoch.
type EpochStats struct {
	Epoch int
	// Train is the wall time of the training pass (all workers joined).
	Train time.Duration
	// Test is the wall time spent scoring after the pass, 0 if nothing was scored.
	Test time.Duration
	// Skew is the time between the first and the last worker finishing the pass.
	Skew time.Duration
	// Updates is the number of updates applied across all replicas.
	Updates int64
	// Step is the canonical replica's step size used during the epoch.
	Step float32
	// TrainLoss holds per-node training loss when enabled.
	TrainLoss []Eval
	// TestEval holds per-node test results when per-epoch evaluation is enabled.
	TestEval []Eval
}

// Result is the outcome of a run.
type Result struct {
	Epochs []EpochStats
	// Final holds the per-node scores of the final evaluation pass.
	Final []Eval
	// Train is the total training time over all epochs.
	Train time.Duration
	// Test is the duration of the final evaluation pass.
	Test time.Duration
}

// Canonical returns the final evaluation of node 0.
func (r *Result) Canonical() Eval {
	if len(r.Final) == 0 {
		return Eval{}
	}
	return r.Final[0]
}

// Observer receives progress while the engine runs. Calls happen on the
// goroutine that called Run, between epochs.
type Observer interface {
	EpochDone(stats EpochStats)
	Evaluated(final []Eval, elapsed time.Duration)
}

// NopObserver ignores all events.
type NopObserver struct{}

// EpochDone implements Observer.
func (NopObserver) EpochDone(EpochStats) {}

// Evaluated implements Observer.
func (NopObserver) Evaluated([]Eval, time.Duration) {}
