// Package degree counts how many examples reference each feature.
package degree

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/hogwild/dataset"
)

// Table maps a feature index to the number of examples that contain it.
// It is read-only once built and shared by every replica.
type Table struct {
	counts   []uint32
	distinct uint64
}

// Examples is the read side of a partition.
type Examples interface {
	Len() int
	Example(i int) dataset.Example
}

// Count builds the table for dim features from one pass over src. Features
// listed more than once in an example count once; indices >= dim are ignored.
func Count(src Examples, dim int) *Table {
	t := &Table{counts: make([]uint32, dim)}
	seen := roaring.New()
	all := roaring.New()

	for i := 0; i < src.Len(); i++ {
		ex := src.Example(i)
		seen.Clear()
		for _, idx := range ex.Indices {
			if int(idx) >= dim || !seen.CheckedAdd(idx) {
				continue
			}
			t.counts[idx]++
		}
		all.Or(seen)
	}
	t.distinct = all.GetCardinality()
	return t
}

// FromCounts wraps precomputed counts.
func FromCounts(counts []uint32) *Table {
	t := &Table{counts: counts}
	for _, c := range counts {
		if c > 0 {
			t.distinct++
		}
	}
	return t
}

// Degree returns the count for feature f, 0 if f is out of range.
func (t *Table) Degree(f uint32) uint32 {
	if int(f) >= len(t.counts) {
		return 0
	}
	return t.counts[f]
}

// Len returns the table dimension.
func (t *Table) Len() int { return len(t.counts) }

// Distinct returns the number of features with a non-zero degree.
func (t *Table) Distinct() uint64 { return t.distinct }

// Counts exposes the raw counts. Callers must not modify them.
func (t *Table) Counts() []uint32 { return t.counts }
