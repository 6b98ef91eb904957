package replica

import (
	"math"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/hupe1980/hogwild/internal/degree"
	"github.com/hupe1980/hogwild/internal/mem"
	"github.com/hupe1980/hogwild/internal/numa"
)

// Params are the per-replica hyperparameters.
type Params struct {
	// Step is the initial step size.
	Step float32
	// Decay multiplies the step size after every epoch.
	Decay float32
	// Mu is the max-norm regularization bound.
	Mu float32
}

// Replica is one node's copy of the model.
//
// Weights are float32 values stored as their IEEE bits. Workers of the owning
// node read and write them with atomic loads and stores but never combine the
// two: AddWeight is a racy read-modify-write that may lose a concurrent update.
// That loss is the accepted cost of lock-free training on sparse data.
type Replica struct {
	node    int
	weights []uint32
	region  *numa.Region

	step    float32
	params  Params
	degrees *degree.Table

	counter *Counter
	inc     uint64

	updates *xsync.Counter
	foreign *xsync.Counter
}

// Node returns the owning node.
func (r *Replica) Node() int { return r.node }

// Dim returns the number of weights.
func (r *Replica) Dim() int { return len(r.weights) }

// Weight returns weight i.
func (r *Replica) Weight(i uint32) float32 {
	return math.Float32frombits(atomic.LoadUint32(&r.weights[i]))
}

// SetWeight stores weight i.
func (r *Replica) SetWeight(i uint32, v float32) {
	atomic.StoreUint32(&r.weights[i], math.Float32bits(v))
}

// AddWeight adds delta to weight i without synchronizing with other writers.
func (r *Replica) AddWeight(i uint32, delta float32) {
	r.SetWeight(i, r.Weight(i)+delta)
}

// ScaleWeight multiplies weight i by f without synchronizing with other writers.
func (r *Replica) ScaleWeight(i uint32, f float32) {
	r.SetWeight(i, r.Weight(i)*f)
}

// Snapshot copies the current weights.
func (r *Replica) Snapshot() []float32 {
	out := make([]float32, len(r.weights))
	for i := range out {
		out[i] = r.Weight(uint32(i)) //nolint:gosec // i < len(weights) <= MaxUint32
	}
	return out
}

// Step returns the current step size.
func (r *Replica) Step() float32 { return r.step }

// Params returns the replica's hyperparameters.
func (r *Replica) Params() Params { return r.params }

// Degrees returns the shared feature degree table.
func (r *Replica) Degrees() *degree.Table { return r.degrees }

// Decay applies the per-epoch step decay. It must only be called while no
// worker trains on the replica.
func (r *Replica) Decay() { r.step *= r.params.Decay }

// Counter returns the shared cross-node counter.
func (r *Replica) Counter() *Counter { return r.counter }

// Increment returns the amount the node's lead worker adds to the counter.
func (r *Replica) Increment() uint64 { return r.inc }

// Arrive records a worker of this node reaching the end of a round. The lead
// worker contributes the node's increment, every other worker contributes 1.
func (r *Replica) Arrive(lead bool) (first, last bool) {
	inc := uint64(1)
	if lead {
		inc = r.inc
	}
	return r.counter.Arrive(inc)
}

// Touch records one update applied by a worker on node.
func (r *Replica) Touch(node int) {
	r.updates.Inc()
	if node != r.node {
		r.foreign.Inc()
	}
}

// Updates returns the number of recorded updates.
func (r *Replica) Updates() int64 { return r.updates.Value() }

// ForeignUpdates returns the number of updates recorded from another node.
func (r *Replica) ForeignUpdates() int64 { return r.foreign.Value() }

// ResetUpdates clears the update counters.
func (r *Replica) ResetUpdates() {
	r.updates.Reset()
	r.foreign.Reset()
}

// Close releases the weight memory.
func (r *Replica) Close() error {
	if r.region == nil {
		return nil
	}
	err := r.region.Close()
	r.region, r.weights = nil, nil
	return err
}

func newReplica(topo numa.Topology, node, dim int, params Params, degrees *degree.Table) (*Replica, error) {
	r := &Replica{
		node:    node,
		step:    params.Step,
		params:  params,
		degrees: degrees,
		updates: xsync.NewCounter(),
		foreign: xsync.NewCounter(),
	}
	if dim > 0 {
		region, err := topo.Alloc(node, dim*4)
		if err != nil {
			return nil, err
		}
		r.region = region
		r.weights = mem.Uint32s(region.Bytes(), dim)
	}
	return r, nil
}
