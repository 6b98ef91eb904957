package numa

import (
	"runtime"

	"github.com/hupe1980/hogwild/internal/mem"
)

// Uniform emulates a machine with n identical nodes on top of ordinary heap
// memory. Bind is a no-op and every node reports all CPUs of the process.
//
// Uniform is meant for tests and for an explicitly requested emulation on
// hosts without NUMA support; it is never chosen implicitly.
type Uniform struct {
	nodes int
}

// NewUniform returns an emulated topology with n nodes (n < 1 is treated as 1).
func NewUniform(n int) *Uniform {
	if n < 1 {
		n = 1
	}
	return &Uniform{nodes: n}
}

// Name implements Topology.
func (u *Uniform) Name() string { return "uniform" }

// Nodes implements Topology.
func (u *Uniform) Nodes() int { return u.nodes }

// CPUs implements Topology.
func (u *Uniform) CPUs(int) []int {
	cpus := make([]int, runtime.NumCPU())
	for i := range cpus {
		cpus[i] = i
	}
	return cpus
}

// Bind implements Topology.
func (u *Uniform) Bind(node int) error {
	if node == AnyNode {
		return nil
	}
	return checkNode(u, node)
}

// Alloc implements Topology.
func (u *Uniform) Alloc(node, size int) (*Region, error) {
	if err := checkNode(u, node); err != nil {
		return nil, err
	}
	return &Region{
		data:    mem.AllocAligned(size),
		node:    node,
		release: func() error { return nil },
	}, nil
}
