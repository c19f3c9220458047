package swarm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	optim "github.com/Eric-Ptn/triumf-heatsink"
	"github.com/Eric-Ptn/triumf-heatsink/mesh"
)

// window is the number of standard deviations around a proposed discrete
// value inside which grid points are weighted.
const window = 8

// Move updates the particle's velocity from its personal best and gbest and
// steps it.  The random coefficients are drawn once per particle per move.
// Discrete variables are resampled onto their grid around the proposed
// value.  The new position is not projected.
func (p *Particle) Move(gbest optim.Assignment, inertia, cognition, social float64, r optim.Rng) {
	r1 := r.Float64()
	r2 := r.Float64()
	for i := range p.Params {
		prm := &p.Params[i]
		prm.Vel = inertia*prm.Vel +
			cognition*r1*(p.Best[i].Val-prm.Val) +
			social*r2*(gbest[i].Val-prm.Val)
		v := prm.Val + prm.Vel
		if prm.Discrete {
			v = Resample(prm.Spec, v, r)
		}
		prm.Val = v
	}
}

// Resample draws a grid point of s with probability proportional to a
// normal density centered on v with a standard deviation of one grid step.
// When v is so far off the grid that every weight underflows, the nearest
// grid point is returned.
func Resample(s optim.Spec, v float64, r optim.Rng) float64 {
	g := mesh.NewGrid(s)
	lo := g.Index(v - window*s.Step)
	hi := g.Index(v + window*s.Step)

	norm := distuv.Normal{Mu: v, Sigma: s.Step}
	w := make([]float64, hi-lo+1)
	for k := range w {
		w[k] = norm.Prob(g.At(lo + k))
	}
	tot := floats.Sum(w)
	if tot == 0 || math.IsNaN(tot) {
		return g.Nearest(v)
	}
	floats.Scale(1/tot, w)
	floats.CumSum(w, w)

	u := r.Float64()
	k := sort.Search(len(w), func(k int) bool { return w[k] > u })
	if k == len(w) {
		k--
	}
	return g.At(lo + k)
}
