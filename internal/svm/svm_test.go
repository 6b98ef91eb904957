package svm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/internal/degree"
	"github.com/hupe1980/hogwild/internal/executor"
	"github.com/hupe1980/hogwild/internal/numa"
	"github.com/hupe1980/hogwild/internal/replica"
)

func newReplica(t *testing.T, dim int, degrees *degree.Table, params replica.Params) *replica.Replica {
	t.Helper()
	pool, err := executor.New(numa.NewUniform(1), 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	set, err := replica.Allocate(context.Background(), pool, nil, replica.Config{Dim: dim, Degrees: degrees, Params: params})
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })
	return set.Canonical()
}

func TestUpdate_HingeActive(t *testing.T) {
	r := newReplica(t, 3, nil, replica.Params{Step: 0.5})
	ex := dataset.Example{Label: 1, Indices: []uint32{0, 2}, Values: []float32{1, 2}}

	Kernel{}.Update(r, ex)

	assert.Equal(t, []float32{0.5, 0, 1}, r.Snapshot())
}

func TestUpdate_HingeInactive(t *testing.T) {
	r := newReplica(t, 2, nil, replica.Params{Step: 0.5})
	r.SetWeight(0, 2)
	ex := dataset.Example{Label: 1, Indices: []uint32{0}, Values: []float32{1}}

	Kernel{}.Update(r, ex)

	assert.Equal(t, float32(2), r.Weight(0))
}

func TestUpdate_DegreeScaledRegularization(t *testing.T) {
	degrees := degree.FromCounts([]uint32{4, 0})
	r := newReplica(t, 2, degrees, replica.Params{Step: 0.5, Mu: 1})
	r.SetWeight(0, 4)
	r.SetWeight(1, 4)
	ex := dataset.Example{Label: 1, Indices: []uint32{0, 1}, Values: []float32{1, 1}}

	// margin 8 >= 1: regularization only.
	Kernel{}.Update(r, ex)

	assert.InDelta(t, 4*(1-0.5/4.0), r.Weight(0), 1e-6)
	assert.Equal(t, float32(4), r.Weight(1), "degree 0 is not regularized")
}

func TestUpdate_ShrinkClampedAtZero(t *testing.T) {
	degrees := degree.FromCounts([]uint32{1})
	r := newReplica(t, 1, degrees, replica.Params{Step: 1, Mu: 5})
	r.SetWeight(0, 3)

	Kernel{}.Update(r, dataset.Example{Label: 1, Indices: []uint32{0}, Values: []float32{1}})

	assert.Equal(t, float32(0), r.Weight(0))
}

func TestUpdate_IgnoresOutOfRangeFeatures(t *testing.T) {
	r := newReplica(t, 1, degree.FromCounts([]uint32{1}), replica.Params{Step: 1, Mu: 0.5})

	assert.NotPanics(t, func() {
		Kernel{}.Update(r, dataset.Example{Label: -1, Indices: []uint32{0, 7}, Values: []float32{1, 1}})
	})
	assert.InDelta(t, -0.5, r.Weight(0), 1e-6)
}

func TestLossAndCorrect(t *testing.T) {
	r := newReplica(t, 2, nil, replica.Params{})
	r.SetWeight(0, 0.25)
	r.SetWeight(1, -1)

	pos := dataset.Example{Label: 1, Indices: []uint32{0}, Values: []float32{2}}
	neg := dataset.Example{Label: -1, Indices: []uint32{1}, Values: []float32{3}}
	zero := dataset.Example{Label: 1}

	k := Kernel{}
	assert.InDelta(t, 0.5, k.Loss(r, pos), 1e-6)
	assert.True(t, k.Correct(r, pos))
	assert.InDelta(t, 0, k.Loss(r, neg), 1e-6)
	assert.True(t, k.Correct(r, neg))
	assert.InDelta(t, 1, k.Loss(r, zero), 1e-6)
	assert.False(t, k.Correct(r, zero))
}

func TestKernel_LearnsSeparableData(t *testing.T) {
	data := []dataset.Example{
		{Label: 1, Indices: []uint32{0, 2}, Values: []float32{1, 1}},
		{Label: 1, Indices: []uint32{0}, Values: []float32{1}},
		{Label: -1, Indices: []uint32{1, 2}, Values: []float32{1, 1}},
		{Label: -1, Indices: []uint32{1}, Values: []float32{1}},
	}
	degrees := degree.FromCounts([]uint32{2, 2, 2})
	r := newReplica(t, 3, degrees, replica.Params{Step: 0.1, Decay: 0.9, Mu: 0.01})

	k := Kernel{}
	for epoch := 0; epoch < 50; epoch++ {
		for _, ex := range data {
			k.Update(r, ex)
		}
		r.Decay()
	}
	for _, ex := range data {
		assert.True(t, k.Correct(r, ex))
	}
}
