package partition

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/internal/executor"
	"github.com/hupe1980/hogwild/internal/numa"
	"github.com/hupe1980/hogwild/resource"
)

func newPool(t *testing.T, nodes, perNode int) *executor.Pool {
	t.Helper()
	pool, err := executor.New(numa.NewUniform(nodes), perNode)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func examples(n int) []dataset.Example {
	out := make([]dataset.Example, n)
	for i := range out {
		out[i] = dataset.Example{
			Label:   float32(1 - 2*(i%2)),
			Indices: []uint32{uint32(i), uint32(2 * i)},
			Values:  []float32{1, float32(i)},
		}
	}
	return out
}

func TestLoad_FullReplication(t *testing.T) {
	pool := newPool(t, 3, 1)
	src := examples(10)

	set, err := NewLoader(pool, nil).Load(context.Background(), dataset.NewSliceScanner(src))
	require.NoError(t, err)
	defer set.Close()

	require.Len(t, set.Parts, 3)
	assert.Equal(t, 3*len(src), set.Examples())
	for node, p := range set.Parts {
		assert.Equal(t, node, p.Node())
		require.Equal(t, len(src), p.Len())
		for i := range src {
			assert.Equal(t, src[i].Label, p.Example(i).Label)
			assert.Equal(t, src[i].Indices, p.Example(i).Indices)
			assert.Equal(t, src[i].Values, p.Example(i).Values)
		}
	}
}

func TestLoad_Dimensionality(t *testing.T) {
	pool := newPool(t, 2, 1)
	src := []dataset.Example{
		{Label: 1, Indices: []uint32{3}, Values: []float32{1}},
		{Label: -1, Indices: []uint32{41, 7}, Values: []float32{1, 1}},
		{Label: 1},
	}

	set, err := NewLoader(pool, nil).Load(context.Background(), dataset.NewSliceScanner(src))
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, 42, set.Dim)

	// Order independent.
	reversed := []dataset.Example{src[2], src[1], src[0]}
	set2, err := NewLoader(pool, nil).Load(context.Background(), dataset.NewSliceScanner(reversed))
	require.NoError(t, err)
	defer set2.Close()
	assert.Equal(t, set.Dim, set2.Dim)
}

func TestLoad_Empty(t *testing.T) {
	pool := newPool(t, 2, 1)

	set, err := NewLoader(pool, nil).Load(context.Background(), dataset.NewSliceScanner(nil))
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, 0, set.Dim)
	assert.Equal(t, 0, set.Examples())
	assert.Equal(t, 0, set.Parts[1].NNZ())
}

type failingScanner struct {
	good  int
	calls int
}

func (f *failingScanner) Reset() error {
	f.calls = 0
	return nil
}

func (f *failingScanner) Next() (dataset.Example, error) {
	f.calls++
	if f.calls > f.good {
		return dataset.Example{}, &dataset.ParseError{Line: f.calls, Msg: "boom"}
	}
	return dataset.Example{Label: 1}, nil
}

func TestLoad_MalformedIsLoadError(t *testing.T) {
	pool := newPool(t, 2, 1)
	rc := resource.NewController(resource.Config{})

	_, err := NewLoader(pool, rc).Load(context.Background(), &failingScanner{good: 2})
	require.ErrorIs(t, err, ErrLoad)
	require.ErrorIs(t, err, dataset.ErrMalformed)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 0, le.Node)
	assert.Equal(t, 3, le.Line)
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestLoad_MemoryLimit(t *testing.T) {
	pool := newPool(t, 2, 1)
	src := examples(100)

	probe, err := NewLoader(pool, nil).Load(context.Background(), dataset.NewSliceScanner(src))
	require.NoError(t, err)
	perNode := probe.Parts[0].Bytes()
	require.NoError(t, probe.Close())

	// Room for one node only.
	rc := resource.NewController(resource.Config{MemoryLimitBytes: perNode + perNode/2})
	_, err = NewLoader(pool, rc).Load(context.Background(), dataset.NewSliceScanner(src))
	require.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 1, le.Node)
	assert.Equal(t, int64(0), rc.MemoryUsage(), "the first partition is released on failure")
}

func TestSet_CloseReleasesMemory(t *testing.T) {
	pool := newPool(t, 2, 1)
	rc := resource.NewController(resource.Config{})

	set, err := NewLoader(pool, rc).Load(context.Background(), dataset.NewSliceScanner(examples(5)))
	require.NoError(t, err)
	assert.Equal(t, set.Bytes(), rc.MemoryUsage())

	require.NoError(t, set.Close())
	require.NoError(t, set.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestLoadConcurrent(t *testing.T) {
	pool := newPool(t, 4, 2)
	src := examples(25)
	rc := resource.NewController(resource.Config{MaxConcurrentLoads: 2})

	open := func(context.Context) (dataset.ScanCloser, error) {
		return dataset.NewSliceScanner(src), nil
	}
	set, err := NewLoader(pool, rc).LoadConcurrent(context.Background(), open)
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, 4*len(src), set.Examples())
	assert.Equal(t, 49, set.Dim)
	for node, p := range set.Parts {
		assert.Equal(t, node, p.Node())
	}
}

func TestLoadConcurrent_OpenError(t *testing.T) {
	pool := newPool(t, 2, 1)
	boom := errors.New("boom")

	open := func(context.Context) (dataset.ScanCloser, error) { return nil, boom }
	_, err := NewLoader(pool, nil).LoadConcurrent(context.Background(), open)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrLoad)
}

func TestLoad_Canceled(t *testing.T) {
	pool := newPool(t, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(pool, nil).Load(ctx, dataset.NewSliceScanner(examples(3)))
	assert.ErrorIs(t, err, context.Canceled)
}

var _ io.Closer = (*Partition)(nil)
