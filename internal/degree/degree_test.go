package degree

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/hogwild/dataset"
)

type exampleSlice []dataset.Example

func (s exampleSlice) Len() int                      { return len(s) }
func (s exampleSlice) Example(i int) dataset.Example { return s[i] }

func ex(indices ...uint32) dataset.Example {
	return dataset.Example{Label: 1, Indices: indices, Values: make([]float32, len(indices))}
}

func TestCount(t *testing.T) {
	tbl := Count(exampleSlice{ex(1, 3), ex(2, 3), ex(3)}, 4)

	assert.Equal(t, []uint32{0, 1, 1, 3}, tbl.Counts())
	assert.Equal(t, uint32(3), tbl.Degree(3))
	assert.Equal(t, uint64(3), tbl.Distinct())
	assert.Equal(t, 4, tbl.Len())
}

func TestCount_PresenceNotMultiplicity(t *testing.T) {
	tbl := Count(exampleSlice{ex(2, 2, 2), ex(2)}, 3)
	assert.Equal(t, uint32(2), tbl.Degree(2))
}

func TestCount_OutOfRange(t *testing.T) {
	tbl := Count(exampleSlice{ex(0, 9)}, 2)

	assert.Equal(t, uint32(1), tbl.Degree(0))
	assert.Equal(t, uint32(0), tbl.Degree(9))
	assert.Equal(t, uint64(1), tbl.Distinct())
}

func TestFromCounts(t *testing.T) {
	tbl := FromCounts([]uint32{0, 4, 0, 1})
	assert.Equal(t, uint64(2), tbl.Distinct())
	assert.Equal(t, uint32(4), tbl.Degree(1))
}

func BenchmarkCount(b *testing.B) {
	src := make(exampleSlice, 10_000)
	for i := range src {
		src[i] = ex(uint32(i%97), uint32(i%1013), uint32(i%7919))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Count(src, 8000)
	}
}
