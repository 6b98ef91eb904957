package numa

import (
	"errors"
	"fmt"
)

// AnyNode passed to Topology.Bind clears a previous binding.
const AnyNode = -1

var (
	// ErrUnavailable is returned when the host exposes no usable NUMA facilities.
	ErrUnavailable = errors.New("numa: topology unavailable")
	// ErrInvalidNode is returned for node ids outside [0, Nodes()).
	ErrInvalidNode = errors.New("numa: invalid node")
)

// Topology is the affinity capability consumed by the executor, the loader and
// the replica allocator.
type Topology interface {
	// Name identifies the implementation in logs ("numa", "uniform").
	Name() string
	// Nodes returns the number of nodes, always >= 1.
	Nodes() int
	// CPUs returns the logical CPUs that belong to node.
	CPUs(node int) []int
	// Bind restricts the calling OS thread to the CPUs of node and makes node
	// its preferred memory node. AnyNode removes both restrictions.
	Bind(node int) error
	// Alloc returns size zeroed bytes whose pages are placed on node.
	Alloc(node, size int) (*Region, error)
}

// Region is a block of node-placed memory.
type Region struct {
	data    []byte
	node    int
	release func() error
}

// Bytes returns the region's memory.
func (r *Region) Bytes() []byte { return r.data }

// Node returns the node the region was allocated on.
func (r *Region) Node() int { return r.node }

// Size returns the region size in bytes.
func (r *Region) Size() int { return len(r.data) }

// Close releases the region. Using Bytes afterwards is undefined.
func (r *Region) Close() error {
	if r == nil || r.release == nil {
		return nil
	}
	release := r.release
	r.release = nil
	r.data = nil
	return release()
}

func checkNode(t Topology, node int) error {
	if node < 0 || node >= t.Nodes() {
		return fmt.Errorf("%w: %d (nodes=%d)", ErrInvalidNode, node, t.Nodes())
	}
	return nil
}
