// Package pattern implements a derivative-free pattern search: polls around
// the current point along compass and random directions, accepting the first
// improvement and contracting the poll step whenever a poll fails.
package pattern

import (
	"errors"

	optim "github.com/Eric-Ptn/triumf-heatsink"
)

var ZeroStepErr = errors.New("poll step size contracted below minimum")

// Func is the objective minimized by the search.  Infeasible points can be
// rejected by returning +Inf.
type Func func(x []float64) float64

type Point struct {
	X   []float64
	Val float64
}

type Option func(*Iterator)

func Step(step float64) Option {
	return func(it *Iterator) {
		it.Step = step
	}
}

func MinStep(step float64) Option {
	return func(it *Iterator) {
		it.MinStep = step
	}
}

func MaxEval(n int) Option {
	return func(it *Iterator) {
		it.MaxEval = n
	}
}

func Rand(r optim.Rng) Option {
	return func(it *Iterator) {
		it.Poller.Rng = r
	}
}

type Iterator struct {
	Curr    Point
	Poller  *CompassPoller
	Step    float64
	MinStep float64
	MaxEval int
	fn      Func
	neval   int
}

func NewIterator(fn Func, start []float64, opts ...Option) *Iterator {
	it := &Iterator{
		Curr:    Point{X: append([]float64{}, start...), Val: fn(start)},
		Poller:  &CompassPoller{Nkeep: len(start), Rng: optim.NewRng(1)},
		Step:    1,
		MinStep: 1e-9,
		MaxEval: 10000,
		fn:      fn,
		neval:   1,
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// Iterate runs a single poll around the current point.  It returns
// ZeroStepErr once the step has contracted below MinStep.
func (it *Iterator) Iterate() (best Point, n int, err error) {
	success, best, n := it.Poller.Poll(it.fn, it.Curr, it.Step)
	it.neval += n
	if success {
		it.Curr = best
		return best, n, nil
	}

	it.Step *= 0.5
	if it.Step < it.MinStep {
		return it.Curr, n, ZeroStepErr
	}
	return it.Curr, n, nil
}

// Minimize runs a pattern search on fn from start until the step contracts
// below the minimum or the evaluation budget is spent.
func Minimize(fn Func, start []float64, opts ...Option) (best Point, neval int) {
	it := NewIterator(fn, start, opts...)
	for it.neval < it.MaxEval {
		if _, _, err := it.Iterate(); err != nil {
			break
		}
	}
	return it.Curr, it.neval
}

type CompassPoller struct {
	// Nkeep specifies the number of previous successful poll directions to
	// reuse on the next poll. The number of reused directions is min(Nkeep,
	// nsuccessful).
	Nkeep      int
	Rng        optim.Rng
	keepdirecs [][]int
}

// Poll evaluates points around from at distance step along the kept,
// compass and random directions.  Polling is opportunistic: it stops at the
// first point better than from.
func (cp *CompassPoller) Poll(fn Func, from Point, step float64) (success bool, best Point, neval int) {
	ndim := len(from.X)

	// Successful directions from the last poll go first so we can
	// potentially stop earlier.
	direcs := append([][]int{}, cp.keepdirecs...)
	direcs = append(direcs, Compass2N(cp.Rng, ndim)...)
	direcs = append(direcs, RandomN(cp.Rng, ndim, ndim)...)
	cp.keepdirecs = nil

	for _, d := range direcs {
		x := make([]float64, ndim)
		for i := range x {
			x[i] = from.X[i] + float64(d[i])*step
		}
		val := fn(x)
		neval++
		if val < from.Val {
			cp.keepdirecs = append(cp.keepdirecs, d)
			if len(cp.keepdirecs) > cp.Nkeep {
				cp.keepdirecs = cp.keepdirecs[:cp.Nkeep]
			}
			return true, Point{X: x, Val: val}, neval
		}
	}
	return false, from, neval
}

// Compass2N returns a compass positive basis set of polling directions in a
// randomized order.
func Compass2N(r optim.Rng, ndim int) [][]int {
	dirs := make([][]int, 2*ndim)
	perms := r.Perm(ndim)
	for i := 0; i < ndim; i++ {
		d := make([]int, ndim)
		d[i] = 1
		dirs[perms[i]] = d

		d = make([]int, ndim)
		d[i] = -1
		dirs[ndim+perms[i]] = d
	}
	return dirs
}

// RandomN returns at least n random polling directions that exclude the
// compass directions.  Directions come in opposite pairs.
func RandomN(r optim.Rng, ndim, n int) [][]int {
	dirs := make([][]int, 0, n+1)
	if ndim < 2 { // compass directions cover everything
		return dirs
	}
	for len(dirs) < n {
		d1 := make([]int, ndim)
		d2 := make([]int, ndim)

		nNonzero := 2
		if ndim > 2 { // this check prevents calling Intn(0) - which is invalid
			// Intn(ndim-1)+2 excludes the zero vector and compass directions.
			nNonzero = r.Intn(ndim-1) + 2
		}
		perms := r.Perm(ndim)
		for i := 0; i < nNonzero; i++ {
			if r.Intn(2) == 0 {
				d1[perms[i]] = 1
				d2[perms[i]] = -1
			} else {
				d1[perms[i]] = -1
				d2[perms[i]] = 1
			}
		}
		dirs = append(dirs, d1, d2)
	}
	return dirs
}
