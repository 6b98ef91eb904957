package replica

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/hupe1980/hogwild/internal/degree"
	"github.com/hupe1980/hogwild/internal/executor"
	"github.com/hupe1980/hogwild/resource"
)

// Config describes a replica set.
type Config struct {
	// Dim is the number of features.
	Dim int
	// Degrees is shared by every replica.
	Degrees *degree.Table
	Params  Params
	// Jitter, if positive, draws initial weights uniformly from
	// [-Jitter, Jitter]. Every replica starts from the same draw.
	Jitter float32
	Seed   uint64
}

// Set is one replica per node plus the counter they share.
type Set struct {
	Replicas []*Replica
	Counter  *Counter

	rc    *resource.Controller
	bytes int64
}

// Canonical returns node 0's replica, the reported model.
func (s *Set) Canonical() *Replica { return s.Replicas[0] }

// Decay applies the per-epoch step decay to every replica.
func (s *Set) Decay() {
	for _, r := range s.Replicas {
		r.Decay()
	}
}

// Bytes returns the weight memory held by the set.
func (s *Set) Bytes() int64 { return s.bytes }

// Close releases every replica and its share of the memory budget.
func (s *Set) Close() error {
	var errs []error
	for _, r := range s.Replicas {
		if r != nil {
			errs = append(errs, r.Close())
		}
	}
	s.rc.ReleaseMemory(s.bytes)
	s.bytes = 0
	return errors.Join(errs...)
}

// Allocate builds one replica per node of pool, each allocated by the node's
// lead worker in node memory. The counter is created on node 0; its mask and
// the per-node increments account for every worker of the pool.
func Allocate(ctx context.Context, pool *executor.Pool, rc *resource.Controller, cfg Config) (*Set, error) {
	if cfg.Dim < 0 {
		return nil, fmt.Errorf("replica: negative dimension %d", cfg.Dim)
	}
	nodes, workers := pool.Nodes(), pool.Size()
	s := &Set{Replicas: make([]*Replica, nodes), rc: rc}

	err := pool.RunOnNode(ctx, 0, func(context.Context, executor.Worker) error {
		s.Counter = NewCounter(MaskFor(nodes, workers))
		return nil
	})
	if err != nil {
		return nil, err
	}
	incs := Increments(s.Counter.Mask(), nodes, workers)

	var init []float32
	if cfg.Jitter > 0 {
		init = jitter(cfg.Dim, cfg.Jitter, cfg.Seed)
	}

	for node := 0; node < nodes; node++ {
		size := int64(cfg.Dim) * 4
		if err := rc.AcquireMemory(size); err != nil {
			_ = s.Close()
			return nil, err
		}
		s.bytes += size

		err := pool.RunOnNode(ctx, node, func(_ context.Context, w executor.Worker) error {
			r, err := newReplica(pool.Topology(), w.Node, cfg.Dim, cfg.Params, cfg.Degrees)
			if err != nil {
				return err
			}
			for i, v := range init {
				r.SetWeight(uint32(i), v) //nolint:gosec // i < Dim
			}
			r.counter, r.inc = s.Counter, incs[w.Node]
			s.Replicas[w.Node] = r
			return nil
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("replica: allocate on node %d: %w", node, err)
		}
	}
	return s, nil
}

func jitter(dim int, scale float32, seed uint64) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // not security sensitive
	out := make([]float32, dim)
	for i := range out {
		out[i] = (2*rng.Float32() - 1) * scale
	}
	return out
}
