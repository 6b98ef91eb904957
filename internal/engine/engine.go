// Package engine runs the Hogwild! epoch loop over node-local partitions and
// replicas.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/internal/executor"
	"github.com/hupe1980/hogwild/internal/partition"
	"github.com/hupe1980/hogwild/internal/replica"
)

var (
	// ErrBusy is returned when Run is called while a run is in progress.
	ErrBusy = errors.New("engine: run in progress")
	// ErrMismatch is returned when partitions, replicas and pool disagree on
	// the node count.
	ErrMismatch = errors.New("engine: node count mismatch")
)

// Kernel is the per-example numeric collaborator.
//
// Update mutates the replica in place. It is called concurrently by all
// workers of the replica's node without locking and must tolerate lost
// updates and stale reads.
type Kernel interface {
	Update(r *replica.Replica, ex dataset.Example)
	Loss(r *replica.Replica, ex dataset.Example) float64
	Correct(r *replica.Replica, ex dataset.Example) bool
}

// State is the engine's lifecycle state.
type State int32

const (
	// StateIdle means no run is active.
	StateIdle State = iota
	// StateTraining means workers are running training passes.
	StateTraining
	// StateEvaluating means the final evaluation pass is running.
	StateEvaluating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTraining:
		return "training"
	case StateEvaluating:
		return "evaluating"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config controls a run.
type Config struct {
	Epochs int
	// TrainLoss scores every replica on its training partition after each epoch.
	TrainLoss bool
	// EvaluateEveryEpoch scores every replica on its test partition after each epoch.
	EvaluateEveryEpoch bool
}

// Engine trains replicas on partitions.
type Engine struct {
	pool   *executor.Pool
	kernel Kernel
	train  *partition.Set
	test   *partition.Set
	models *replica.Set
	cfg    Config

	state atomic.Int32
}

// New validates the inputs and returns an idle engine.
func New(pool *executor.Pool, kernel Kernel, train, test *partition.Set, models *replica.Set, cfg Config) (*Engine, error) {
	nodes := pool.Nodes()
	if len(train.Parts) != nodes || len(test.Parts) != nodes || len(models.Replicas) != nodes {
		return nil, fmt.Errorf("%w: pool=%d train=%d test=%d replicas=%d",
			ErrMismatch, nodes, len(train.Parts), len(test.Parts), len(models.Replicas))
	}
	return &Engine{
		pool:   pool,
		kernel: kernel,
		train:  train,
		test:   test,
		models: models,
		cfg:    cfg,
	}, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Run trains for the configured number of epochs and then scores every
// replica on its node's test partition.
//
// ctx is checked between epochs only: once started, an epoch runs to
// completion. On cancellation Run returns the epochs finished so far together
// with ctx.Err().
func (e *Engine) Run(ctx context.Context, obs Observer) (*Result, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateTraining)) {
		return nil, ErrBusy
	}
	defer e.state.Store(int32(StateIdle))
	if obs == nil {
		obs = NopObserver{}
	}

	// Passes must not be abandoned half way, so workers never see cancellation.
	run := context.WithoutCancel(ctx)
	res := &Result{}

	for epoch := 1; epoch <= e.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		stats, err := e.epoch(run, epoch)
		if err != nil {
			return res, err
		}
		res.Train += stats.Train
		res.Epochs = append(res.Epochs, stats)
		obs.EpochDone(stats)
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	e.state.Store(int32(StateEvaluating))
	start := time.Now()
	final, err := e.evaluate(run, e.test)
	if err != nil {
		return res, err
	}
	res.Final, res.Test = final, time.Since(start)
	obs.Evaluated(final, res.Test)
	return res, nil
}

func (e *Engine) epoch(ctx context.Context, epoch int) (EpochStats, error) {
	stats := EpochStats{Epoch: epoch, Step: e.models.Canonical().Step()}
	for _, r := range e.models.Replicas {
		r.ResetUpdates()
	}

	var firstAt, lastAt atomic.Int64
	start := time.Now()
	err := e.pool.Run(ctx, func(_ context.Context, w executor.Worker) error {
		part := e.train.Parts[w.Node]
		r := e.models.Replicas[w.Node]

		lo, hi := executor.Chunk(part.Len(), e.pool.PerNode(), w.Rank)
		for i := lo; i < hi; i++ {
			e.kernel.Update(r, part.Example(i))
			r.Touch(w.Node)
		}

		first, last := r.Arrive(w.Lead())
		now := time.Now().UnixNano()
		if first {
			firstAt.Store(now)
		}
		if last {
			lastAt.Store(now)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("engine: epoch %d: %w", epoch, err)
	}
	stats.Train = time.Since(start)
	if f, l := firstAt.Load(), lastAt.Load(); f > 0 && l >= f {
		stats.Skew = time.Duration(l - f)
	}
	for _, r := range e.models.Replicas {
		stats.Updates += r.Updates()
	}

	e.models.Decay()

	if e.cfg.TrainLoss || e.cfg.EvaluateEveryEpoch {
		start := time.Now()
		if e.cfg.TrainLoss {
			if stats.TrainLoss, err = e.evaluate(ctx, e.train); err != nil {
				return stats, err
			}
		}
		if e.cfg.EvaluateEveryEpoch {
			if stats.TestEval, err = e.evaluate(ctx, e.test); err != nil {
				return stats, err
			}
		}
		stats.Test = time.Since(start)
	}
	return stats, nil
}

// evaluate scores each node's replica on that node's partition of set.
func (e *Engine) evaluate(ctx context.Context, set *partition.Set) ([]Eval, error) {
	perWorker := make([]Eval, e.pool.Size())

	err := e.pool.Run(ctx, func(_ context.Context, w executor.Worker) error {
		part := set.Parts[w.Node]
		r := e.models.Replicas[w.Node]

		ev := Eval{Node: w.Node}
		lo, hi := executor.Chunk(part.Len(), e.pool.PerNode(), w.Rank)
		for i := lo; i < hi; i++ {
			ex := part.Example(i)
			ev.Examples++
			ev.Loss += e.kernel.Loss(r, ex)
			if e.kernel.Correct(r, ex) {
				ev.Correct++
			}
		}
		perWorker[w.ID] = ev
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("engine: evaluate: %w", err)
	}

	out := make([]Eval, e.pool.Nodes())
	for node := range out {
		out[node].Node = node
	}
	for _, ev := range perWorker {
		out[ev.Node].merge(ev)
	}
	return out, nil
}
