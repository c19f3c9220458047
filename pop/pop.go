// Package pop generates initial particle positions and velocities.
package pop

import (
	"math"

	"github.com/petar/GoLLRB/llrb"

	optim "github.com/Eric-Ptn/triumf-heatsink"
	"github.com/Eric-Ptn/triumf-heatsink/mesh"
)

// VelFrac is the fraction of a variable's range that bounds the magnitude of
// initial velocities.
const VelFrac = 0.2

// maxCells caps the grid sizes for which cells are down-sampled through a
// full permutation.
const maxCells = 1 << 20

// template returns a zero-valued assignment over specs; it fixes the name
// order every generated assignment uses.
func template(specs []optim.Spec) (optim.Assignment, error) {
	return optim.FromSpecs(specs, make([]float64, len(specs))...)
}

// PerDim returns the number of grid points per dimension needed for at least
// n cells in ndim dimensions, i.e. ceil(n^(1/ndim)) computed exactly.
func PerDim(n, ndim int) int {
	k := 1
	if ndim == 0 {
		return k
	}
	for ipow(k, ndim) < n {
		k++
	}
	return k
}

// ipow returns k^d, saturating at math.MaxInt.
func ipow(k, d int) int {
	tot := 1
	for i := 0; i < d; i++ {
		if tot > math.MaxInt/k {
			return math.MaxInt
		}
		tot *= k
	}
	return tot
}

// Grid places n particles at the midpoints of a regular grid of cells
// covering the box bounds, randomly dropping cells when the grid has more
// than n of them.  Discrete variables are rounded to their own grid.
// Velocities are uniform in +/- VelFrac of each variable's range.  Grid does
// not check feasibility.
func Grid(n int, specs []optim.Spec, r optim.Rng) ([]optim.Assignment, error) {
	tmpl, err := template(specs)
	if err != nil {
		return nil, err
	}
	ndim := len(tmpl)
	k := PerDim(n, ndim)
	box := mesh.NewBox(tmpl.Specs())

	var cells [][]int
	if total := ipow(k, ndim); total <= maxCells {
		for _, c := range r.Perm(total)[:min(n, total)] {
			cells = append(cells, decode(c, k, ndim))
		}
	} else {
		// too many cells to permute: draw distinct cells directly
		seen := map[string]bool{}
		for len(cells) < n {
			cell := make([]int, ndim)
			key := make([]byte, 0, 4*ndim)
			for i := range cell {
				cell[i] = r.Intn(k)
				key = append(key, byte(cell[i]), byte(cell[i]>>8), byte(cell[i]>>16), byte(cell[i]>>24))
			}
			if !seen[string(key)] {
				seen[string(key)] = true
				cells = append(cells, cell)
			}
		}
	}

	points := make([]optim.Assignment, 0, n)
	for _, cell := range cells {
		x := make([]float64, ndim)
		for i, p := range tmpl {
			u := (float64(cell[i]) + 0.5) / float64(k)
			x[i] = p.Min + u*p.Range()
		}
		points = append(points, withVel(tmpl.WithVals(box.Nearest(x)), r))
	}
	return points, nil
}

// decode converts a cell number into per-dimension indices in base k.
func decode(c, k, ndim int) []int {
	cell := make([]int, ndim)
	for i := range cell {
		cell[i] = c % k
		c /= k
	}
	return cell
}

func withVel(a optim.Assignment, r optim.Rng) optim.Assignment {
	for i := range a {
		vmax := VelFrac * a[i].Range()
		a[i].Vel = optim.Uniform(r, -vmax, vmax)
	}
	return a
}

type item struct {
	optim.Assignment
	howbad float64
	seq    int
}

func (p1 item) Less(than llrb.Item) bool {
	p2 := than.(item)
	if p1.howbad != p2.howbad {
		return p1.howbad < p2.howbad
	}
	return p1.seq < p2.seq
}

// Random draws uniform random points inside the box bounds (discrete
// variables rounded to their grid) and keeps the ones satisfying c until it
// has n of them.  It queues up the least unfavorable infeasible points in
// case n feasible ones cannot be found within maxiter draws; those are
// returned last and counted in nbad, and must be projected by the caller.
// Points are ranked by how negative their margin is when c is an
// optim.Marginer and in draw order otherwise.
func Random(n, maxiter int, specs []optim.Spec, c optim.Constraint, r optim.Rng) (points []optim.Assignment, nbad, iter int, err error) {
	tmpl, err := template(specs)
	if err != nil {
		return nil, 0, 0, err
	}
	if c == nil {
		c = optim.Unconstrained{}
	}
	box := mesh.NewBox(tmpl.Specs())
	m, smooth := c.(optim.Marginer)

	violaters := llrb.New()
	points = make([]optim.Assignment, 0, n)
	for iter = 0; iter < maxiter && len(points) < n; iter++ {
		x := make([]float64, len(tmpl))
		for i := range x {
			x[i] = optim.Uniform(r, box.Lower[i], box.Upper[i])
		}
		a := withVel(tmpl.WithVals(box.Nearest(x)), r)

		if c.Feasible(a) {
			points = append(points, a)
			continue
		}

		howbad := 1.0
		if smooth {
			howbad = -m.Margin(a)
		}
		violaters.InsertNoReplace(item{Assignment: a, howbad: howbad, seq: iter})
		for violaters.Len() > n-len(points) {
			violaters.DeleteMax()
		}
	}

	nbad = n - len(points)
	for len(points) < n && violaters.Len() > 0 {
		points = append(points, violaters.DeleteMin().(item).Assignment)
	}
	return points, nbad, iter, nil
}
