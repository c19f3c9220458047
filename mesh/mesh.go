package mesh

import (
	"fmt"
	"math"

	optim "github.com/Eric-Ptn/triumf-heatsink"
)

// Grid is the set of values Min + k*Step, k = 0..N-1, available to a single
// discrete variable.  The largest grid value never exceeds the variable's
// upper bound.
type Grid struct {
	Min  float64
	Step float64
	N    int
}

// eps absorbs floating point noise when counting how many steps fit in a
// variable's range.
const eps = 1e-9

// NewGrid returns the grid of the discrete variable s.
func NewGrid(s optim.Spec) Grid {
	if s.Step <= 0 {
		panic(fmt.Sprintf("variable %q has non-positive step %v", s.Name, s.Step))
	}
	n := int(math.Floor(s.Range()/s.Step+eps)) + 1
	return Grid{Min: s.Min, Step: s.Step, N: n}
}

// At returns the k'th grid value.
func (g Grid) At(k int) float64 { return g.Min + float64(k)*g.Step }

// Index returns the index of the grid value nearest to v.
func (g Grid) Index(v float64) int {
	k := int(math.Round((v - g.Min) / g.Step))
	if k < 0 {
		return 0
	} else if k > g.N-1 {
		return g.N - 1
	}
	return k
}

// Nearest returns the grid value nearest to v.
func (g Grid) Nearest(v float64) float64 { return g.At(g.Index(v)) }

// Box is a bounded mesh over a set of variables: continuous dimensions are
// clipped to their bounds and discrete dimensions are additionally rounded
// to their grid.
type Box struct {
	Lower []float64
	Upper []float64
	// Grids holds the grid of each discrete dimension and nil for
	// continuous ones.
	Grids []*Grid
}

// NewBox builds the mesh for specs, in the order given.
func NewBox(specs []optim.Spec) *Box {
	b := &Box{
		Lower: make([]float64, len(specs)),
		Upper: make([]float64, len(specs)),
		Grids: make([]*Grid, len(specs)),
	}
	for i, s := range specs {
		b.Lower[i], b.Upper[i] = s.Min, s.Max
		if s.Discrete {
			g := NewGrid(s)
			b.Grids[i] = &g
		}
	}
	return b
}

// Clip slides each dimension of p to the nearest value inside the bounds.
func (b *Box) Clip(p []float64) []float64 {
	if len(p) != len(b.Lower) {
		panic(fmt.Sprintf("box has %v dimensions, point has %v", len(b.Lower), len(p)))
	}
	pdup := make([]float64, len(p))
	for i := range pdup {
		pdup[i] = math.Min(b.Upper[i], math.Max(b.Lower[i], p[i]))
	}
	return pdup
}

// Nearest returns the nearest bounded mesh point to p by sliding each
// dimensional position to the nearest value inside bounds and then rounding
// discrete dimensions to the nearest grid point.
func (b *Box) Nearest(p []float64) []float64 {
	pdup := b.Clip(p)
	for i, g := range b.Grids {
		if g != nil {
			pdup[i] = g.Nearest(pdup[i])
		}
	}
	return pdup
}

// Inside reports whether p lies within the box bounds (to within tol).
func (b *Box) Inside(p []float64, tol float64) bool {
	for i := range p {
		if p[i] < b.Lower[i]-tol || p[i] > b.Upper[i]+tol {
			return false
		}
	}
	return true
}
