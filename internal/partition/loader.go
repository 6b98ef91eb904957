package partition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/internal/executor"
	"github.com/hupe1980/hogwild/resource"
)

// ErrLoad marks every error returned by Load.
var ErrLoad = errors.New("partition: load failed")

// LoadError describes a failed load pass.
type LoadError struct {
	// Node is the node whose pass failed, or -1 if no pass started.
	Node int
	// Line is the failing record, 0 if the failure is not tied to a record.
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Node < 0 {
		return fmt.Sprintf("partition: load: %v", e.Err)
	}
	return fmt.Sprintf("partition: load on node %d: %v", e.Node, e.Err)
}

// Unwrap returns both the cause and ErrLoad.
func (e *LoadError) Unwrap() []error { return []error{ErrLoad, e.Err} }

// Set holds one partition per node and the inferred dimensionality.
type Set struct {
	Parts []*Partition
	// Dim is one plus the largest feature index seen in the source.
	Dim int
}

// Examples returns the number of examples summed over all partitions.
func (s *Set) Examples() int {
	total := 0
	for _, p := range s.Parts {
		total += p.Len()
	}
	return total
}

// Bytes returns the node memory held by all partitions.
func (s *Set) Bytes() int64 {
	var total int64
	for _, p := range s.Parts {
		total += p.Bytes()
	}
	return total
}

// Close releases every partition.
func (s *Set) Close() error {
	var errs []error
	for _, p := range s.Parts {
		if p != nil {
			errs = append(errs, p.Close())
		}
	}
	return errors.Join(errs...)
}

// Loader builds partition sets on the nodes of a pool.
type Loader struct {
	pool *executor.Pool
	rc   *resource.Controller
}

// NewLoader returns a loader. rc may be nil.
func NewLoader(pool *executor.Pool, rc *resource.Controller) *Loader {
	return &Loader{pool: pool, rc: rc}
}

// Load makes one pass over sc per node, resetting it before each pass, and
// places pass i on node i. Passes run one after another on the node's lead
// worker.
func (l *Loader) Load(ctx context.Context, sc dataset.Scanner) (*Set, error) {
	set := &Set{Parts: make([]*Partition, l.pool.Nodes())}

	for node := range set.Parts {
		var dim int
		err := l.pool.RunOnNode(ctx, node, func(ctx context.Context, w executor.Worker) error {
			if err := sc.Reset(); err != nil {
				return err
			}
			p, d, err := l.pass(ctx, sc, w.Node)
			set.Parts[w.Node], dim = p, d
			return err
		})
		if err != nil {
			_ = set.Close()
			return nil, wrap(node, err)
		}
		set.Dim = max(set.Dim, dim)
	}
	return set, nil
}

// LoadConcurrent is Load with an independent scanner per node, so passes on
// different nodes can overlap. The resource controller bounds how many run at
// once.
func (l *Loader) LoadConcurrent(ctx context.Context, open dataset.Opener) (*Set, error) {
	set := &Set{Parts: make([]*Partition, l.pool.Nodes())}
	dims := make([]int, len(set.Parts))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for node := range set.Parts {
		g.Go(func() error {
			if err := l.rc.AcquireLoad(gctx); err != nil {
				return wrap(node, err)
			}
			defer l.rc.ReleaseLoad()

			err := l.pool.RunOnNode(gctx, node, func(ctx context.Context, w executor.Worker) error {
				sc, err := open(ctx)
				if err != nil {
					return err
				}
				defer sc.Close()

				p, d, err := l.pass(ctx, sc, w.Node)
				mu.Lock()
				set.Parts[w.Node], dims[w.Node] = p, d
				mu.Unlock()
				return err
			})
			return wrap(node, err)
		})
	}
	if err := g.Wait(); err != nil {
		_ = set.Close()
		return nil, err
	}
	for _, d := range dims {
		set.Dim = max(set.Dim, d)
	}
	return set, nil
}

func (l *Loader) pass(ctx context.Context, sc dataset.Scanner, node int) (*Partition, int, error) {
	var st staging
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		ex, err := sc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if len(ex.Indices) != len(ex.Values) {
			return nil, 0, fmt.Errorf("%w: record %d has %d indices and %d values",
				dataset.ErrMalformed, len(st.labels)+1, len(ex.Indices), len(ex.Values))
		}
		st.add(ex)
	}

	p, err := st.place(l.pool.Topology(), node, l.rc)
	if err != nil {
		return nil, 0, err
	}
	return p, st.dim, nil
}

func wrap(node int, err error) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	le = &LoadError{Node: node, Err: err}
	var pe *dataset.ParseError
	if errors.As(err, &pe) {
		le.Line = pe.Line
	}
	return le
}
