// Package project maps candidate assignments onto the feasible region: the
// nearest point (Euclidean distance in parameter space) that lies inside the
// variable bounds, satisfies the feasibility constraint and puts every
// discrete variable on its grid.
package project

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	optim "github.com/Eric-Ptn/triumf-heatsink"
	"github.com/Eric-Ptn/triumf-heatsink/mesh"
	"github.com/Eric-Ptn/triumf-heatsink/pattern"
)

const (
	DefaultMaxRadius = 50
	DefaultMaxCombos = 1 << 16
	DefaultSamples   = 2000
	DefaultMaxEval   = 2000
	DefaultTol       = 1e-6
)

// penalties is the continuation schedule of the penalty solve.
var penalties = []float64{1e2, 1e4, 1e6}

// bisections is the number of halvings used to locate the boundary between
// a feasible and an infeasible point.
const bisections = 48

type Option func(*Projector)

// MaxRadius sets the number of grid steps around the rounded solution the
// discrete search may widen to.
func MaxRadius(n int) Option {
	return func(p *Projector) {
		p.MaxRadius = n
	}
}

// MaxCombos caps the number of discrete combinations tested per projection.
func MaxCombos(n int) Option {
	return func(p *Projector) {
		p.MaxCombos = n
	}
}

// Samples sets the number of uniform box samples drawn when looking for a
// feasible anchor point.
func Samples(n int) Option {
	return func(p *Projector) {
		p.Samples = n
	}
}

// MaxEval caps the evaluations of the derivative-free boundary search.
func MaxEval(n int) Option {
	return func(p *Projector) {
		p.MaxEval = n
	}
}

// Tol sets the margin by which smooth constraints are tightened and the
// relative precision of the derivative-free boundary search.
func Tol(tol float64) Option {
	return func(p *Projector) {
		p.Tol = tol
	}
}

func Rand(r optim.Rng) Option {
	return func(p *Projector) {
		p.Rng = r
	}
}

type Projector struct {
	Constraint optim.Constraint
	MaxRadius  int
	MaxCombos  int
	Samples    int
	MaxEval    int
	Tol        float64
	Rng        optim.Rng
}

// New creates a projector for the constraint c.  A nil c accepts every
// point inside the bounds.
func New(c optim.Constraint, opts ...Option) *Projector {
	if c == nil {
		c = optim.Unconstrained{}
	}
	p := &Projector{
		Constraint: c,
		MaxRadius:  DefaultMaxRadius,
		MaxCombos:  DefaultMaxCombos,
		Samples:    DefaultSamples,
		MaxEval:    DefaultMaxEval,
		Tol:        DefaultTol,
		Rng:        optim.NewRng(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project returns the feasible assignment nearest to a.  Velocities are
// carried over unchanged.  Failure to locate a feasible point is reported as
// a *optim.ProjectionError.
func (p *Projector) Project(a optim.Assignment) (optim.Assignment, error) {
	x, err := p.Continuous(a)
	if err != nil {
		return nil, err
	}
	out := a.WithVals(x)
	if !out.AnyDiscrete() {
		return out, nil
	}
	return p.Snap(out)
}

func (p *Projector) feasible(a optim.Assignment, x []float64) bool {
	return p.Constraint.Feasible(a.WithVals(x))
}

// Continuous returns the values of the nearest feasible point to a, treating
// discrete variables as continuous.
func (p *Projector) Continuous(a optim.Assignment) ([]float64, error) {
	box := mesh.NewBox(a.Specs())
	x0 := a.Vals()
	xc := box.Clip(x0)
	if p.feasible(a, xc) {
		return xc, nil
	}

	if l, ok := p.Constraint.(*Linear); ok {
		if near, err := l.Nearest(a); err == nil {
			if x := near.Vals(); box.Inside(x, 0) && p.feasible(a, x) {
				return x, nil
			}
		}
	}

	if m, ok := p.Constraint.(optim.Marginer); ok {
		x, err := p.solve(a, box, x0, xc, m)
		if err != nil {
			return nil, &optim.ProjectionError{X: x0, Reason: "local solver failed", Err: err}
		}
		if x = box.Clip(x); p.feasible(a, x) {
			return x, nil
		}
	}

	anchor := p.anchor(a, box, x0)
	if anchor == nil {
		return nil, &optim.ProjectionError{X: x0, Reason: "no feasible point found inside the bounds"}
	}
	return p.raySearch(a, box, x0, xc, anchor), nil
}

// solve minimizes |x-x0|^2 plus a quadratic penalty on bound and (tightened)
// margin violations, increasing the penalty weight from one solve to the
// next.
func (p *Projector) solve(a optim.Assignment, box *mesh.Box, x0, start []float64, m optim.Marginer) ([]float64, error) {
	viol := func(x []float64) float64 {
		v := 0.0
		for i := range x {
			if d := box.Lower[i] - x[i]; d > 0 {
				v += d * d
			} else if d := x[i] - box.Upper[i]; d > 0 {
				v += d * d
			}
		}
		if d := p.Tol - m.Margin(a.WithVals(x)); d > 0 {
			v += d * d
		}
		return v
	}

	x := append([]float64{}, start...)
	for _, mu := range penalties {
		fn := func(y []float64) float64 {
			d := floats.Distance(y, x0, 2)
			return d*d + mu*viol(y)
		}
		var err error
		x, err = minimize(fn, x)
		if err != nil {
			return nil, err
		}
	}
	return x, nil
}

func minimize(fn func([]float64) float64, x []float64) ([]float64, error) {
	grad := &fd.Settings{Formula: fd.Central}
	problem := optimize.Problem{
		Func: fn,
		Grad: func(dst, x []float64) { fd.Gradient(dst, fn, x, grad) },
	}
	settings := &optimize.Settings{MajorIterations: 1000, GradientThreshold: 1e-9}
	result, err := optimize.Minimize(problem, x, settings, &optimize.BFGS{})
	if err != nil {
		// BFGS line searches can stall on the penalty kink; retry without
		// gradients.
		result, err = optimize.Minimize(optimize.Problem{Func: fn}, x, settings, &optimize.NelderMead{})
	}
	if err != nil {
		return nil, err
	}
	return result.X, nil
}

// anchor returns a feasible point inside the box, or nil if none was found.
// Linear constraints are projected onto directly; anything else falls back
// to the nearest of a set of uniform samples.
func (p *Projector) anchor(a optim.Assignment, box *mesh.Box, x0 []float64) []float64 {
	if l, ok := p.Constraint.(*Linear); ok {
		if near, err := l.Nearest(a.WithVals(x0)); err == nil {
			if x := box.Clip(near.Vals()); p.feasible(a, x) {
				return x
			}
		}
	}

	var best []float64
	bestd := math.Inf(1)
	for n := 0; n < p.Samples; n++ {
		x := make([]float64, len(x0))
		for i := range x {
			x[i] = optim.Uniform(p.Rng, box.Lower[i], box.Upper[i])
		}
		if d := floats.Distance(x, x0, 2); d < bestd && p.feasible(a, x) {
			best, bestd = x, d
		}
	}
	return best
}

// bisect returns the feasible end of a short segment straddling the
// boundary between the feasible point in and the infeasible point out.
func (p *Projector) bisect(a optim.Assignment, in, out []float64) []float64 {
	lo := append([]float64{}, in...)
	hi := append([]float64{}, out...)
	mid := make([]float64, len(in))
	for n := 0; n < bisections; n++ {
		for i := range mid {
			mid[i] = (lo[i] + hi[i]) / 2
		}
		if p.feasible(a, mid) {
			copy(lo, mid)
		} else {
			copy(hi, mid)
		}
	}
	return lo
}

// raySearch looks for the boundary point nearest to x0 among those seen from
// the clipped point xc: a pattern search moves a feasible interior point y
// and every y is scored by the boundary crossing on the segment from y to
// xc.  Scored points are always feasible, so rounding at the boundary never
// traps the search.
func (p *Projector) raySearch(a optim.Assignment, box *mesh.Box, x0, xc, anchor []float64) []float64 {
	var best []float64
	bestd := math.Inf(1)
	crossing := func(y []float64) float64 {
		if !box.Inside(y, 0) || !p.feasible(a, y) {
			return math.Inf(1)
		}
		b := p.bisect(a, y, xc)
		d := floats.Distance(b, x0, 2)
		if d < bestd {
			best, bestd = b, d
		}
		return d
	}

	scale := 0.0
	for i := range box.Lower {
		scale = math.Max(scale, box.Upper[i]-box.Lower[i])
	}
	pattern.Minimize(crossing, anchor,
		pattern.Step(scale/8),
		pattern.MinStep(p.Tol*scale),
		pattern.MaxEval(p.MaxEval),
		pattern.Rand(p.Rng),
	)
	return best
}

// Snap moves the discrete variables of a onto their grids while keeping a
// feasible.  Candidates around the rounded values are tried in order of
// their Cartesian product; the search radius widens one grid step at a time
// until a feasible combination turns up.  MaxCombos bounds the combinations
// tested over all radii.  Radius r holds up to (2r+1)^d combinations for d
// discrete variables, so with many of them the cap can end the search long
// before MaxRadius is reached: 11 variables already exceed the default cap
// at radius 1.
func (p *Projector) Snap(a optim.Assignment) (optim.Assignment, error) {
	var disc, centers []int
	var grids []mesh.Grid
	for i, prm := range a {
		if prm.Discrete {
			g := mesh.NewGrid(prm.Spec)
			disc = append(disc, i)
			grids = append(grids, g)
			centers = append(centers, g.Index(prm.Val))
		}
	}

	x := a.Vals()
	tested := 0
	for r := 1; r <= p.MaxRadius; r++ {
		cands := make([][]int, len(disc))
		grew := false
		for j := range disc {
			for _, off := range offsets(r) {
				if k := centers[j] + off; k >= 0 && k < grids[j].N {
					cands[j] = append(cands[j], off)
					grew = grew || abs(off) == r
				}
			}
		}
		if !grew && r > 1 {
			break // every grid point has been tried
		}

		idx := make([]int, len(disc))
		for {
			ring := 0
			for j := range disc {
				if off := abs(cands[j][idx[j]]); off > ring {
					ring = off
				}
			}

			// combinations inside the ring were tested at a smaller radius
			if r == 1 || ring == r {
				for j, i := range disc {
					x[i] = grids[j].At(centers[j] + cands[j][idx[j]])
				}
				cand := a.WithVals(x)
				if p.Constraint.Feasible(cand) {
					return cand, nil
				}
				tested++
				if tested >= p.MaxCombos {
					return nil, &optim.ProjectionError{
						X:      a.Vals(),
						Reason: fmt.Sprintf("no feasible grid point in %v combinations", tested),
					}
				}
			}

			j := len(idx) - 1
			for ; j >= 0; j-- {
				idx[j]++
				if idx[j] < len(cands[j]) {
					break
				}
				idx[j] = 0
			}
			if j < 0 {
				break
			}
		}
	}
	return nil, &optim.ProjectionError{
		X:      a.Vals(),
		Reason: fmt.Sprintf("no feasible grid point within %v steps", p.MaxRadius),
	}
}

// offsets returns 0, -1, 1, -2, 2, ... -r, r.
func offsets(r int) []int {
	offs := make([]int, 0, 2*r+1)
	offs = append(offs, 0)
	for k := 1; k <= r; k++ {
		offs = append(offs, -k, k)
	}
	return offs
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
