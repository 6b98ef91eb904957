package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hogwild/internal/numa"
)

var (
	// ErrClosed is returned when work is submitted to a closed pool.
	ErrClosed = errors.New("executor: pool closed")
	// ErrInvalidNode is returned by RunOnNode for an unknown node.
	ErrInvalidNode = errors.New("executor: invalid node")
)

// Worker identifies the pinned worker a function runs on.
type Worker struct {
	// ID is the worker's index in [0, Size()).
	ID int
	// Node is the NUMA node the worker's thread is bound to.
	Node int
	// Rank is the worker's index among the workers of its node.
	Rank int
}

// Lead reports whether the worker is the first worker of its node.
func (w Worker) Lead() bool { return w.Rank == 0 }

// Func is a unit of work executed on a pinned worker.
type Func func(ctx context.Context, w Worker) error

type task struct {
	ctx  context.Context
	fn   Func
	done chan error
}

type worker struct {
	Worker
	tasks chan task
}

// Pool is a fixed set of node-pinned workers.
type Pool struct {
	topo    numa.Topology
	perNode int
	workers []*worker
	closed  atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New starts perNode workers on every node of topo. It fails if any worker
// cannot bind its thread to its node.
func New(topo numa.Topology, perNode int) (*Pool, error) {
	if perNode < 1 {
		perNode = 1
	}
	nodes := topo.Nodes()
	p := &Pool{
		topo:    topo,
		perNode: perNode,
		workers: make([]*worker, 0, nodes*perNode),
		done:    make(chan struct{}),
	}

	started := make(chan error, nodes*perNode)
	for node := 0; node < nodes; node++ {
		for rank := 0; rank < perNode; rank++ {
			w := &worker{
				Worker: Worker{ID: len(p.workers), Node: node, Rank: rank},
				tasks:  make(chan task),
			}
			p.workers = append(p.workers, w)
			p.wg.Add(1)
			go p.loop(w, started)
		}
	}

	var errs []error
	for range p.workers {
		if err := <-started; err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pool) loop(w *worker, started chan<- error) {
	defer p.wg.Done()

	// The thread stays locked until the goroutine exits; the runtime then
	// discards it together with its affinity mask.
	runtime.LockOSThread()

	if err := p.topo.Bind(w.Node); err != nil {
		started <- fmt.Errorf("executor: bind worker %d to node %d: %w", w.ID, w.Node, err)
		// Refuse work until Close so submitters never block on this worker.
		for {
			select {
			case t := <-w.tasks:
				t.done <- ErrClosed
			case <-p.done:
				return
			}
		}
	}
	started <- nil

	for {
		select {
		case t := <-w.tasks:
			t.done <- call(t.ctx, t.fn, w.Worker)
		case <-p.done:
			return
		}
	}
}

func call(ctx context.Context, fn Func, w Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor: worker %d on node %d panicked: %v", w.ID, w.Node, r)
		}
	}()
	return fn(ctx, w)
}

func (p *Pool) submit(ctx context.Context, w *worker, fn Func) error {
	if p.closed.Load() {
		return ErrClosed
	}
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case w.tasks <- t:
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-t.done
}

// Nodes returns the number of nodes the pool spans.
func (p *Pool) Nodes() int { return p.topo.Nodes() }

// PerNode returns the number of workers on each node.
func (p *Pool) PerNode() int { return p.perNode }

// Size returns the total number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Topology returns the topology the pool was built on.
func (p *Pool) Topology() numa.Topology { return p.topo }

// Run executes fn once on every worker and waits for all of them. The first
// error is returned after every worker has finished; a failing worker does not
// interrupt the others.
func (p *Pool) Run(ctx context.Context, fn Func) error {
	var g errgroup.Group
	for _, w := range p.workers {
		g.Go(func() error {
			return p.submit(ctx, w, fn)
		})
	}
	return g.Wait()
}

// RunOnNode executes fn on the lead worker of node and waits for it.
func (p *Pool) RunOnNode(ctx context.Context, node int, fn Func) error {
	if node < 0 || node >= p.topo.Nodes() {
		return fmt.Errorf("%w: %d", ErrInvalidNode, node)
	}
	return p.submit(ctx, p.workers[node*p.perNode], fn)
}

// Close stops all workers after their current task and waits for them. It is
// idempotent and may race with Run; work not yet accepted fails with ErrClosed.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Chunk returns the half-open range [start, end) of the index-th of parts
// contiguous slices of total items. Earlier slices take the remainder, so
// slice sizes differ by at most one.
func Chunk(total, parts, index int) (start, end int) {
	if parts < 1 {
		return 0, total
	}
	size, rem := total/parts, total%parts
	start = index*size + min(index, rem)
	end = start + size
	if index < rem {
		end++
	}
	return start, end
}
