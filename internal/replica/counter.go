package replica

import (
	"math/bits"
	"sync/atomic"
)

// Counter is the wait-free cross-node rendezvous counter shared by all
// replicas.
//
// Every worker arrives once per round and adds its increment with a single
// atomic add. Increments of one round sum to the mask, so exactly one arrival
// observes the masked value reaching the mask; that arrival closes the round
// with one more tick, which wraps the counter to zero modulo mask+1. No
// arrival ever waits for another.
type Counter struct {
	value  atomic.Uint64
	rounds atomic.Uint64
	mask   uint64
}

// NewCounter returns a counter wrapping modulo mask+1. mask must be 2^k-1.
func NewCounter(mask uint64) *Counter {
	return &Counter{mask: mask}
}

// Mask returns the wrap mask.
func (c *Counter) Mask() uint64 { return c.mask }

// Arrive adds inc and reports whether this arrival opened the round (first)
// and whether it completed it (last). With a single arrival per round both
// are true.
func (c *Counter) Arrive(inc uint64) (first, last bool) {
	post := c.value.Add(inc)
	pre := post - inc
	first = pre&c.mask == 0
	if post&c.mask == c.mask {
		c.value.Add(1)
		c.rounds.Add(1)
		last = true
	}
	return first, last
}

// Value returns the counter modulo mask+1.
func (c *Counter) Value() uint64 { return c.value.Load() & c.mask }

// Rounds returns the number of completed rounds.
func (c *Counter) Rounds() uint64 { return c.rounds.Load() }

// MaskFor returns the smallest 2^k-1 that is >= nodes and >= workers. The
// second bound keeps the last node's increment, mask-workers+1, positive.
func MaskFor(nodes, workers int) uint64 {
	n := uint64(max(nodes, workers, 1))
	return 1<<bits.Len64(n) - 1
}

// Increments returns the per-node increments for a round of workers arrivals:
// 1 for every node but the last, mask-workers+1 for the last.
func Increments(mask uint64, nodes, workers int) []uint64 {
	incs := make([]uint64, nodes)
	for i := range incs {
		incs[i] = 1
	}
	if nodes > 0 {
		incs[nodes-1] = mask - uint64(workers) + 1
	}
	return incs
}
