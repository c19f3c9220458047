package project

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	optim "github.com/Eric-Ptn/triumf-heatsink"
	"github.com/Eric-Ptn/triumf-heatsink/mesh"
)

// Linear is the feasibility constraint A*x <= b over the named variables.
// Column j of A multiplies the variable Names[j]; variables not named do not
// take part.
type Linear struct {
	Names []string
	A     *mat.Dense
	B     *mat.Dense
}

// NewLinear builds a linear constraint from row-major coefficients: one row
// of len(names) coefficients per entry of b.
func NewLinear(names []string, rows [][]float64, b []float64) (*Linear, error) {
	if len(rows) != len(b) {
		return nil, fmt.Errorf("linear constraint has %v rows but %v bounds", len(rows), len(b))
	}
	data := make([]float64, 0, len(rows)*len(names))
	for i, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("linear constraint row %v has %v coefficients for %v variables", i, len(row), len(names))
		}
		data = append(data, row...)
	}
	return &Linear{
		Names: append([]string{}, names...),
		A:     mat.NewDense(len(rows), len(names), data),
		B:     mat.NewDense(len(b), 1, append([]float64{}, b...)),
	}, nil
}

func (l *Linear) x(a optim.Assignment) *mat.Dense {
	x := make([]float64, len(l.Names))
	for j, name := range l.Names {
		v, ok := a.Value(name)
		if !ok {
			// a missing variable can never satisfy the constraint
			v = math.NaN()
		}
		x[j] = v
	}
	return mat.NewDense(len(x), 1, x)
}

// Margin returns min_i(b_i - A_i*x): the slack of the tightest row.
func (l *Linear) Margin(a optim.Assignment) float64 {
	var ax mat.Dense
	ax.Mul(l.A, l.x(a))
	m, _ := ax.Dims()
	margin := math.Inf(1)
	for i := 0; i < m; i++ {
		slack := l.B.At(i, 0) - ax.At(i, 0)
		if math.IsNaN(slack) {
			return math.Inf(-1)
		}
		margin = math.Min(margin, slack)
	}
	return margin
}

func (l *Linear) Feasible(a optim.Assignment) bool { return l.Margin(a) >= 0 }

// Nearest returns a with the constrained variables moved onto the nearest
// point satisfying A*x <= b, ignoring box bounds.
func (l *Linear) Nearest(a optim.Assignment) (optim.Assignment, error) {
	idx := make([]int, len(l.Names))
	for j, name := range l.Names {
		idx[j] = indexOf(a, name)
		if idx[j] < 0 {
			return nil, fmt.Errorf("%w: %q", optim.ErrMissingVariable, name)
		}
	}

	proj, err := mesh.Nearest(mat.Col(nil, 0, l.x(a)), l.A, l.B)
	if err != nil {
		return nil, err
	}
	out := a.Clone()
	for j, i := range idx {
		out[i].Val = proj[j]
	}
	return out, nil
}

func indexOf(a optim.Assignment, name string) int {
	for i, p := range a {
		if p.Name == name {
			return i
		}
	}
	return -1
}
