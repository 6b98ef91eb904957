package hogwild

import (
	"time"

	"github.com/hupe1980/hogwild/internal/engine"
)

// Score is one node's evaluation result.
type Score struct {
	Node     int
	Examples int
	Correct  int
	Accuracy float64
	// Loss is the mean hinge loss per example.
	Loss float64
}

func scoreOf(ev engine.Eval) Score {
	return Score{
		Node:     ev.Node,
		Examples: ev.Examples,
		Correct:  ev.Correct,
		Accuracy: ev.Accuracy(),
		Loss:     ev.MeanLoss(),
	}
}

func scoresOf(evs []engine.Eval) []Score {
	if len(evs) == 0 {
		return nil
	}
	out := make([]Score, len(evs))
	for i, ev := range evs {
		out[i] = scoreOf(ev)
	}
	return out
}

// Epoch summarizes one epoch.
type Epoch struct {
	Epoch int
	// WallClock is the time since Run started.
	WallClock time.Duration
	Train     time.Duration
	Test      time.Duration
	Skew      time.Duration
	Updates   int64
	Step      float32
	// TrainLoss is set with WithTrainLoss, one entry per node.
	TrainLoss []Score
	// TestScores is set with WithEvaluateEveryEpoch, one entry per node.
	TestScores []Score
}

// Report is the outcome of Run.
type Report struct {
	Topology       string
	Nodes          int
	WorkersPerNode int

	// Dim is one plus the largest training feature index.
	Dim              int
	TrainExamples    int
	TestExamples     int
	DistinctFeatures uint64

	Epochs []Epoch
	// Final holds every node's score on its test partition.
	Final []Score
	// Canonical is node 0's final score, the reported result.
	Canonical Score

	LoadTime  time.Duration
	TrainTime time.Duration
	TestTime  time.Duration
	Elapsed   time.Duration
	// PeakMemory is the highest node memory reservation for partitions and
	// replicas.
	PeakMemory int64
}
