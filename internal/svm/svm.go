// Package svm is the linear SVM update rule trained by the engine.
//
// All functions may be called concurrently on the same replica by workers of
// the replica's node without locking. Concurrent calls can read stale weights
// and overwrite each other's writes; with sparse examples such collisions are
// rare and training still converges.
package svm

import (
	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/internal/replica"
)

// Kernel implements the hinge-loss subgradient step with degree-scaled
// regularization.
type Kernel struct{}

// Dot returns <w, x> for the replica's weights.
func Dot(r *replica.Replica, ex dataset.Example) float32 {
	var sum float32
	dim := r.Dim()
	for i, idx := range ex.Indices {
		if int(idx) < dim {
			sum += r.Weight(idx) * ex.Values[i]
		}
	}
	return sum
}

// Update applies one step for ex:
//
//	if y<w,x> < 1:  w += step*y*x
//	for j in x:     w_j *= 1 - step*mu/deg(j)
//
// Features with degree 0 are not regularized, and the shrink factor is
// clamped at 0.
func (Kernel) Update(r *replica.Replica, ex dataset.Example) {
	step := r.Step()
	dim := r.Dim()

	if Dot(r, ex)*ex.Label < 1 {
		e := step * ex.Label
		for i, idx := range ex.Indices {
			if int(idx) < dim {
				r.AddWeight(idx, e*ex.Values[i])
			}
		}
	}

	scalar := step * r.Params().Mu
	degrees := r.Degrees()
	if degrees == nil || scalar == 0 {
		return
	}
	for _, idx := range ex.Indices {
		if int(idx) >= dim {
			continue
		}
		deg := degrees.Degree(idx)
		if deg == 0 {
			continue
		}
		r.ScaleWeight(idx, max(0, 1-scalar/float32(deg)))
	}
}

// Loss returns the hinge loss max(0, 1 - y<w,x>).
func (Kernel) Loss(r *replica.Replica, ex dataset.Example) float64 {
	return float64(max(0, 1-Dot(r, ex)*ex.Label))
}

// Correct reports whether sign(<w,x>) agrees with the label. A zero margin
// counts as wrong.
func (Kernel) Correct(r *replica.Replica, ex dataset.Example) bool {
	return Dot(r, ex)*ex.Label > 0
}
