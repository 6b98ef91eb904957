package partition

import (
	"unsafe"

	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/internal/mem"
	"github.com/hupe1980/hogwild/internal/numa"
	"github.com/hupe1980/hogwild/resource"
)

// Partition is a columnar, read-only sequence of examples placed on one node.
//
// Layout inside the node region (all sections 64-byte aligned):
//
//	offsets [n+1]int | labels [n]float32 | indices [nnz]uint32 | values [nnz]float32
type Partition struct {
	node    int
	offsets []int
	labels  []float32
	indices []uint32
	values  []float32

	region *numa.Region
	rc     *resource.Controller
	bytes  int64
}

// Node returns the node holding the partition.
func (p *Partition) Node() int { return p.node }

// Len returns the number of examples.
func (p *Partition) Len() int { return len(p.labels) }

// NNZ returns the total number of stored features.
func (p *Partition) NNZ() int { return len(p.indices) }

// Bytes returns the size of the node memory backing the partition.
func (p *Partition) Bytes() int64 { return p.bytes }

// Example returns the i-th example. The slices alias partition memory and
// must not be modified.
func (p *Partition) Example(i int) dataset.Example {
	lo, hi := p.offsets[i], p.offsets[i+1]
	return dataset.Example{
		Label:   p.labels[i],
		Indices: p.indices[lo:hi:hi],
		Values:  p.values[lo:hi:hi],
	}
}

// Close releases node memory and the memory budget. It is idempotent.
func (p *Partition) Close() error {
	if p.region == nil {
		return nil
	}
	err := p.region.Close()
	p.region = nil
	p.rc.ReleaseMemory(p.bytes)
	p.offsets, p.labels, p.indices, p.values = nil, nil, nil, nil
	return err
}

func alignUp(n int) int {
	return (n + mem.Alignment - 1) &^ (mem.Alignment - 1)
}

func layout(n, nnz int) (labelsAt, indicesAt, valuesAt, size int) {
	labelsAt = alignUp((n + 1) * int(unsafe.Sizeof(int(0))))
	indicesAt = labelsAt + alignUp(n*4)
	valuesAt = indicesAt + alignUp(nnz*4)
	size = valuesAt + alignUp(nnz*4)
	return labelsAt, indicesAt, valuesAt, size
}

// staging collects a pass in ordinary heap memory before it is copied into
// node memory.
type staging struct {
	offsets []int
	labels  []float32
	indices []uint32
	values  []float32
	dim     int
}

func (s *staging) add(ex dataset.Example) {
	if len(s.offsets) == 0 {
		s.offsets = append(s.offsets, 0)
	}
	s.labels = append(s.labels, ex.Label)
	s.indices = append(s.indices, ex.Indices...)
	s.values = append(s.values, ex.Values...)
	s.offsets = append(s.offsets, len(s.indices))
	s.dim = max(s.dim, ex.Dim())
}

// place copies the staged records into memory allocated on node.
func (s *staging) place(topo numa.Topology, node int, rc *resource.Controller) (*Partition, error) {
	n, nnz := len(s.labels), len(s.indices)
	if len(s.offsets) == 0 {
		s.offsets = []int{0}
	}
	labelsAt, indicesAt, valuesAt, size := layout(n, nnz)

	if err := rc.AcquireMemory(int64(size)); err != nil {
		return nil, err
	}
	region, err := topo.Alloc(node, size)
	if err != nil {
		rc.ReleaseMemory(int64(size))
		return nil, err
	}

	b := region.Bytes()
	p := &Partition{
		node:    node,
		offsets: mem.Ints(b, n+1),
		labels:  mem.Float32s(b[labelsAt:], n),
		indices: mem.Uint32s(b[indicesAt:], nnz),
		values:  mem.Float32s(b[valuesAt:], nnz),
		region:  region,
		rc:      rc,
		bytes:   int64(size),
	}
	copy(p.offsets, s.offsets)
	copy(p.labels, s.labels)
	copy(p.indices, s.indices)
	copy(p.values, s.values)
	return p, nil
}
