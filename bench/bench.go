// Package bench provides benchmark objectives for exercising the swarm, from
// http://en.wikipedia.org/wiki/Test_functions_for_optimization and
// https://www.sfu.ca/~ssurjano/optimization.html, plus mixed-variable and
// constrained problems in the style of the heatsink sizing runs.
package bench

import (
	"fmt"
	"math"
	"sort"

	optim "github.com/Eric-Ptn/triumf-heatsink"
	"github.com/Eric-Ptn/triumf-heatsink/project"
	"github.com/Eric-Ptn/triumf-heatsink/swarm"
)

var (
	sin  = math.Sin
	cos  = math.Cos
	abs  = math.Abs
	exp  = math.Exp
	sqrt = math.Sqrt
)

// Optimum is a known global minimum.
type Optimum struct {
	At  map[string]float64
	Val float64
}

// Func is a benchmark problem: variables, an optional feasibility constraint
// and the objective.
type Func struct {
	Name       string
	Specs      []optim.Spec
	Constraint optim.Constraint
	Eval       func(a optim.Assignment) float64
	Optima     []Optimum
}

func (fn Func) Objective(a optim.Assignment) (float64, error) { return fn.Eval(a), nil }

// Gap returns how far val is above the best known optimum.
func (fn Func) Gap(val float64) float64 {
	if len(fn.Optima) == 0 {
		return math.NaN()
	}
	return val - fn.Optima[0].Val
}

// Run optimizes fn.  fn's constraint is applied unless opts override it.
func Run(fn Func, cfg swarm.Config, opts ...swarm.Option) (swarm.Result, error) {
	if fn.Constraint != nil {
		opts = append([]swarm.Option{swarm.Constrain(fn.Constraint)}, opts...)
	}
	return swarm.New(fn.Specs, fn, opts...).Optimize(cfg)
}

// All returns every named benchmark, sorted by name.
func All() []Func {
	fns := []Func{
		Paraboloid(),
		DiscreteParabola(),
		TrigBowl(),
		Hartmann6(),
		DiscreteAckley(),
		Heatsink(),
		Disk(),
		Band(),
		Ackley(),
		Eggholder(),
		Styblinski(10),
		Rosenbrock(10),
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return fns
}

// ByName looks up one of All.
func ByName(name string) (Func, bool) {
	for _, fn := range All() {
		if fn.Name == name {
			return fn, true
		}
	}
	return Func{}, false
}

func vals(a optim.Assignment, names ...string) []float64 {
	v, err := a.Values(names...)
	if err != nil {
		panic(err.Error())
	}
	return v
}

func continuous(ndim int, low, up float64) []optim.Spec {
	specs := make([]optim.Spec, ndim)
	for i := range specs {
		specs[i] = optim.NewSpec(fmt.Sprintf("x%02d", i), false, low, up)
	}
	return specs
}

// Paraboloid is a continuous bowl with its minimum of 0 at (3, 2).
func Paraboloid() Func {
	return Func{
		Name: "paraboloid",
		Specs: []optim.Spec{
			optim.NewSpec("x", false, 0, 5),
			optim.NewSpec("y", false, 0, 5),
		},
		Eval: func(a optim.Assignment) float64 {
			v := vals(a, "x", "y")
			return (v[0]-3)*(v[0]-3) + (v[1]-2)*(v[1]-2)
		},
		Optima: []Optimum{{At: map[string]float64{"x": 3, "y": 2}, Val: 0}},
	}
}

// DiscreteParabola has a single integer variable and its minimum of 0 at 7.
func DiscreteParabola() Func {
	return Func{
		Name:  "discrete-parabola",
		Specs: []optim.Spec{optim.NewSpec("n", true, 1, 10, 1)},
		Eval: func(a optim.Assignment) float64 {
			n := vals(a, "n")[0]
			return (n - 7) * (n - 7)
		},
		Optima: []Optimum{{At: map[string]float64{"n": 7}, Val: 0}},
	}
}

// TrigBowl is a rippled bowl on a 0.1 grid.
func TrigBowl() Func {
	return Func{
		Name: "trig-bowl",
		Specs: []optim.Spec{
			optim.NewSpec("x", true, 0, 5, 0.1),
			optim.NewSpec("y", true, 0, 5, 0.1),
		},
		Eval: func(a optim.Assignment) float64 {
			v := vals(a, "x", "y")
			x, y := v[0], v[1]
			return (x-3.14)*(x-3.14) + (y-2.72)*(y-2.72) + sin(3*x+1.41) + sin(4*y-1.73)
		},
		Optima: []Optimum{{At: map[string]float64{"x": 3.2, "y": 3.1}, Val: -1.7993631463042417}},
	}
}

var (
	hartAlpha = []float64{1.0, 1.2, 3.0, 3.2}
	hartA     = [][]float64{
		{10, 3, 17, 3.50, 1.7, 8},
		{0.05, 10, 17, 0.1, 8, 14},
		{3, 3.5, 1.7, 10, 17, 8},
		{17, 8, 0.05, 10, 0.1, 14},
	}
	hartP = [][]float64{
		{1312, 1696, 5569, 124, 8283, 5886},
		{2329, 4135, 8307, 3736, 1004, 9991},
		{2348, 1451, 3522, 2883, 3047, 6650},
		{4047, 8828, 8732, 5743, 1091, 381},
	}
)

// Hartmann6 is the six dimensional Hartmann function on the unit cube.
func Hartmann6() Func {
	names := []string{"a", "b", "c", "d", "e", "f"}
	specs := make([]optim.Spec, len(names))
	for i, name := range names {
		specs[i] = optim.NewSpec(name, false, 0, 1)
	}
	at := []float64{0.20169, 0.150011, 0.476874, 0.275332, 0.311652, 0.6573}
	opt := map[string]float64{}
	for i, name := range names {
		opt[name] = at[i]
	}

	return Func{
		Name:  "hartmann6",
		Specs: specs,
		Eval: func(a optim.Assignment) float64 {
			x := vals(a, names...)
			f := 0.0
			for i := range hartAlpha {
				sum := 0.0
				for j := range x {
					d := x[j] - 1e-4*hartP[i][j]
					sum -= hartA[i][j] * d * d
				}
				f -= hartAlpha[i] * exp(sum)
			}
			return f
		},
		Optima: []Optimum{{At: opt, Val: -3.32237}},
	}
}

// DiscreteAckley is an Ackley-like function sampled on odd integers, so its
// continuous minimum at the origin is off the grid.
func DiscreteAckley() Func {
	return Func{
		Name: "discrete-ackley",
		Specs: []optim.Spec{
			optim.NewSpec("x", true, -15, 15, 2),
			optim.NewSpec("y", true, -15, 15, 2),
		},
		Eval: func(a optim.Assignment) float64 {
			v := vals(a, "x", "y")
			x, y := v[0], v[1]
			return -20*exp(-0.2*sqrt(0.5*(x*x+y*y))) - exp(0.5*(cos(x)+cos(y))) + 20 + math.E
		},
		Optima: []Optimum{
			{At: map[string]float64{"x": -1, "y": -1}, Val: 4.627141067350504},
			{At: map[string]float64{"x": 1, "y": 1}, Val: 4.627141067350504},
			{At: map[string]float64{"x": -1, "y": 1}, Val: 4.627141067350504},
			{At: map[string]float64{"x": 1, "y": -1}, Val: 4.627141067350504},
		},
	}
}

// HeatsinkBudget is the largest total plate width (plate width times plate
// count) the base can hold.
const HeatsinkBudget = 60.658446

// Heatsink sizes a plate fin heatsink: a continuous plate width and a
// discrete plate count whose product is limited by the base.
func Heatsink() Func {
	return Func{
		Name: "heatsink",
		Specs: []optim.Spec{
			optim.NewSpec("plate_width", false, 0.5, 3),
			optim.NewSpec("n_plates", true, 15, 60, 1),
		},
		Constraint: optim.MarginFunc(func(a optim.Assignment) float64 {
			v := vals(a, "plate_width", "n_plates")
			return HeatsinkBudget - v[0]*v[1]
		}),
		Eval: func(a optim.Assignment) float64 {
			v := vals(a, "plate_width", "n_plates")
			return v[0]*v[0] + v[1]*v[1]
		},
		Optima: []Optimum{{At: map[string]float64{"plate_width": 0.5, "n_plates": 15}, Val: 225.25}},
	}
}

// Disk minimizes the distance to the origin over a disk that does not
// contain it.  Only the boolean predicate is available to the projector.
func Disk() Func {
	return Func{
		Name: "disk",
		Specs: []optim.Spec{
			optim.NewSpec("x", false, 0, 5),
			optim.NewSpec("y", false, 0, 5),
		},
		Constraint: optim.Predicate(func(a optim.Assignment) bool {
			v := vals(a, "x", "y")
			return (v[0]-3)*(v[0]-3)+(v[1]-3)*(v[1]-3) <= 2
		}),
		Eval: func(a optim.Assignment) float64 {
			v := vals(a, "x", "y")
			return v[0]*v[0] + v[1]*v[1]
		},
		Optima: []Optimum{{At: map[string]float64{"x": 2, "y": 2}, Val: 8}},
	}
}

// Band minimizes the distance to the origin on two differently spaced grids
// subject to the linear constraint 3 <= x + y <= 8.
func Band() Func {
	band, err := project.NewLinear([]string{"x", "y"}, [][]float64{{-1, -1}, {1, 1}}, []float64{-3, 8})
	if err != nil {
		panic(err.Error())
	}
	return Func{
		Name: "band",
		Specs: []optim.Spec{
			optim.NewSpec("x", true, -2, 2, 0.05),
			optim.NewSpec("y", true, -2, 2, 0.15),
		},
		Constraint: band,
		Eval: func(a optim.Assignment) float64 {
			v := vals(a, "x", "y")
			return v[0]*v[0] + v[1]*v[1]
		},
		Optima: []Optimum{{At: map[string]float64{"x": 1.55, "y": 1.45}, Val: 4.505}},
	}
}

func Ackley() Func {
	return Func{
		Name:  "ackley",
		Specs: continuous(2, -5, 5),
		Eval: func(a optim.Assignment) float64 {
			v := a.Vals()
			x, y := v[0], v[1]
			return -20*exp(-0.2*sqrt(0.5*(x*x+y*y))) -
				exp(0.5*(cos(2*math.Pi*x)+cos(2*math.Pi*y))) +
				20 + math.E
		},
		Optima: []Optimum{{At: map[string]float64{"x00": 0, "x01": 0}, Val: 0}},
	}
}

func Eggholder() Func {
	return Func{
		Name:  "eggholder",
		Specs: continuous(2, -512, 512),
		Eval: func(a optim.Assignment) float64 {
			v := a.Vals()
			x, y := v[0], v[1]
			return -(y+47)*sin(sqrt(abs(y+x/2+47))) - x*sin(sqrt(abs(x-(y+47))))
		},
		Optima: []Optimum{{At: map[string]float64{"x00": 512, "x01": 404.2319}, Val: -959.6407}},
	}
}

func Styblinski(ndim int) Func {
	opt := map[string]float64{}
	specs := continuous(ndim, -5, 5)
	for _, s := range specs {
		opt[s.Name] = -2.903534
	}
	return Func{
		Name:  fmt.Sprintf("styblinski-%vd", ndim),
		Specs: specs,
		Eval: func(a optim.Assignment) float64 {
			tot := 0.0
			for _, v := range a.Vals() {
				tot += math.Pow(v, 4) - 16*math.Pow(v, 2) + 5*v
			}
			return tot / 2
		},
		Optima: []Optimum{{At: opt, Val: -39.16599 * float64(ndim)}},
	}
}

func Rosenbrock(ndim int) Func {
	opt := map[string]float64{}
	specs := continuous(ndim, -30, 30)
	for _, s := range specs {
		opt[s.Name] = 1
	}
	return Func{
		Name:  fmt.Sprintf("rosenbrock-%vd", ndim),
		Specs: specs,
		Eval: func(a optim.Assignment) float64 {
			x := a.Vals()
			tot := 0.0
			for i := 0; i < len(x)-1; i++ {
				tot += 100*math.Pow(x[i+1]-x[i]*x[i], 2) + math.Pow(x[i]-1, 2)
			}
			return tot
		},
		Optima: []Optimum{{At: opt, Val: 0}},
	}
}
