package project

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	optim "github.com/Eric-Ptn/triumf-heatsink"
)

func square(t *testing.T, vals ...float64) optim.Assignment {
	t.Helper()
	a, err := optim.FromSpecs([]optim.Spec{
		optim.NewSpec("x", false, 0, 2),
		optim.NewSpec("y", false, 0, 2),
	}, vals...)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func sumAtMost1(a optim.Assignment) float64 {
	x, _ := a.Value("x")
	y, _ := a.Value("y")
	return 1 - x - y
}

func TestProjectOntoHalfplane(t *testing.T) {
	linear, err := NewLinear([]string{"x", "y"}, [][]float64{{1, 1}}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}

	constraints := map[string]optim.Constraint{
		"linear":    linear,
		"margin":    optim.MarginFunc(sumAtMost1),
		"predicate": optim.Predicate(func(a optim.Assignment) bool { return sumAtMost1(a) >= 0 }),
	}

	for name, c := range constraints {
		p := New(c, Rand(optim.NewRng(11)))
		got, err := p.Project(square(t, 1.5, 1.5))
		if err != nil {
			t.Errorf("%v: %v", name, err)
			continue
		}
		x, _ := got.Value("x")
		y, _ := got.Value("y")
		if x+y > 1 {
			t.Errorf("%v: projection %v violates x + y <= 1", name, got)
		}
		if x < 0 || x > 2 || y < 0 || y > 2 {
			t.Errorf("%v: projection %v is out of bounds", name, got)
		}
		if math.Abs(x-0.5) > 1e-3 || math.Abs(y-0.5) > 1e-3 {
			t.Errorf("%v: want nearest point (0.5, 0.5), got %v", name, got)
		}
	}
}

func TestProjectFeasibleIsUnchanged(t *testing.T) {
	p := New(optim.MarginFunc(sumAtMost1))
	a := square(t, 0.25, 0.5)
	got, err := p.Project(a)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("feasible point moved (-want +got):\n%s", diff)
	}
}

func TestProjectClipsToBounds(t *testing.T) {
	p := New(nil)
	a := square(t, -1, 3)
	a[0].Vel, a[1].Vel = 0.5, -0.25
	got, err := p.Project(a)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{0, 2}, got.Vals()); diff != "" {
		t.Errorf("clipped values (-want +got):\n%s", diff)
	}
	if got[0].Vel != 0.5 || got[1].Vel != -0.25 {
		t.Errorf("projection dropped velocities: %+v", got)
	}
}

func TestProjectCorner(t *testing.T) {
	wide := []optim.Spec{
		optim.NewSpec("x", false, -10, 10),
		optim.NewSpec("y", false, -10, 10),
	}
	tests := []struct {
		name string
		rows [][]float64
		b    []float64
		x0   []float64
		want []float64
	}{
		{
			// x + y <= 1 and x <= 0.2: the nearest point to (2, 1) is the corner.
			name: "corner",
			rows: [][]float64{{1, 1}, {1, 0}},
			b:    []float64{1, 0.2},
			x0:   []float64{2, 1},
			want: []float64{0.2, 0.8},
		},
		{
			// y <= 0 (badly scaled) is violated most but is slack at the
			// nearest point of x + y <= 0.
			name: "slack",
			rows: [][]float64{{0, 100}, {1, 1}},
			b:    []float64{0, 0},
			x0:   []float64{5, 1},
			want: []float64{2, -2},
		},
	}

	for _, test := range tests {
		linear, err := NewLinear([]string{"x", "y"}, test.rows, test.b)
		if err != nil {
			t.Fatal(err)
		}
		a, err := optim.FromSpecs(wide, test.x0...)
		if err != nil {
			t.Fatal(err)
		}
		got, err := New(linear).Project(a)
		if err != nil {
			t.Errorf("%v: %v", test.name, err)
			continue
		}
		if diff := cmp.Diff(test.want, got.Vals(), cmpopts.EquateApprox(0, 1e-3)); diff != "" {
			t.Errorf("%v projection (-want +got):\n%s", test.name, diff)
		}
		if !linear.Feasible(got) {
			t.Errorf("%v projection %v is infeasible", test.name, got)
		}
	}
}

func discrete(t *testing.T, v float64) optim.Assignment {
	t.Helper()
	a, err := optim.FromSpecs([]optim.Spec{optim.NewSpec("n", true, 0, 20)}, v)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// holes is feasible for n >= 4.3 except at 5 and 6.
func holes(a optim.Assignment) bool {
	n, _ := a.Value("n")
	return n >= 4.3 && n != 5 && n != 6
}

func TestSnapWidensRadius(t *testing.T) {
	got, err := New(optim.Predicate(holes)).Project(discrete(t, 0))
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := got.Value("n"); n != 7 {
		t.Errorf("want n = 7, got %v", n)
	}
}

func TestSnapRadiusExhausted(t *testing.T) {
	_, err := New(optim.Predicate(holes), MaxRadius(2)).Project(discrete(t, 0))
	if !errors.Is(err, optim.ErrProjection) {
		t.Errorf("want ErrProjection, got %v", err)
	}
}

func TestSnapComboCap(t *testing.T) {
	// a >= 3 on a 0..10 grid starting from (0, 0): radii 1 and 2 test 9
	// combinations and (3, 0) is the 13th.
	specs := []optim.Spec{
		optim.NewSpec("a", true, 0, 10),
		optim.NewSpec("b", true, 0, 10),
	}
	atLeast3 := optim.Predicate(func(a optim.Assignment) bool {
		v, _ := a.Value("a")
		return v >= 3
	})
	start, _ := optim.FromSpecs(specs, 0, 0)

	got, err := New(atLeast3, MaxCombos(13)).Snap(start)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{3, 0}, got.Vals()); diff != "" {
		t.Errorf("snapped values (-want +got):\n%s", diff)
	}

	_, err = New(atLeast3, MaxCombos(12)).Snap(start)
	var perr *optim.ProjectionError
	if !errors.As(err, &perr) {
		t.Fatalf("want a ProjectionError, got %v", err)
	}
	if want := "no feasible grid point in 12 combinations"; perr.Reason != want {
		t.Errorf("want reason %q, got %q", want, perr.Reason)
	}
}

func TestSnapComboCapManyVariables(t *testing.T) {
	// 3^11 combinations at radius 1 exceed the default cap even though a
	// feasible grid point lies 11 steps away.
	var specs []optim.Spec
	var vals []float64
	for i := 0; i < 11; i++ {
		specs = append(specs, optim.NewSpec(fmt.Sprintf("v%02d", i), true, 0, 100))
		vals = append(vals, 50)
	}
	start, _ := optim.FromSpecs(specs, vals...)
	above60 := optim.Predicate(func(a optim.Assignment) bool {
		v, _ := a.Value("v00")
		return v > 60
	})

	_, err := New(above60).Snap(start)
	var perr *optim.ProjectionError
	if !errors.As(err, &perr) {
		t.Fatalf("want a ProjectionError, got %v", err)
	}
	if want := fmt.Sprintf("no feasible grid point in %v combinations", DefaultMaxCombos); perr.Reason != want {
		t.Errorf("want reason %q, got %q", want, perr.Reason)
	}
}

func TestSnapRoundsFeasible(t *testing.T) {
	got, err := New(nil).Project(discrete(t, 6.6))
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := got.Value("n"); n != 7 {
		t.Errorf("want n = 7, got %v", n)
	}
}

func TestSnapNoGridPoint(t *testing.T) {
	// x - y must be within 0.1 of 0.5, which no pair of integers satisfies.
	specs := []optim.Spec{
		optim.NewSpec("x", true, 0, 10),
		optim.NewSpec("y", true, 0, 10),
	}
	a, _ := optim.FromSpecs(specs, 8, 2)
	band := optim.MarginFunc(func(a optim.Assignment) float64 {
		x, _ := a.Value("x")
		y, _ := a.Value("y")
		return 0.1 - math.Abs(x-y-0.5)
	})
	_, err := New(band).Project(a)
	if !errors.Is(err, optim.ErrProjection) {
		t.Errorf("want ErrProjection, got %v", err)
	}
}

func TestSnapMixed(t *testing.T) {
	// plate width times plate count is capped; the count is discrete.
	specs := []optim.Spec{
		optim.NewSpec("n_plates", true, 15, 60),
		optim.NewSpec("plate_width", false, 0.5, 3),
	}
	c := optim.MarginFunc(func(a optim.Assignment) float64 {
		n, _ := a.Value("n_plates")
		w, _ := a.Value("plate_width")
		return 60.658446 - w*n
	})
	a, _ := optim.FromSpecs(specs, 40, 2.5)
	got, err := New(c).Project(a)
	if err != nil {
		t.Fatal(err)
	}
	if c.Margin(got) < 0 {
		t.Errorf("projection %v is infeasible (margin %v)", got, c.Margin(got))
	}
	n, _ := got.Value("n_plates")
	if n != math.Round(n) || n < 15 || n > 60 {
		t.Errorf("n_plates = %v is not on its grid", n)
	}
}

func TestLinearMargin(t *testing.T) {
	l, err := NewLinear([]string{"x", "y"}, [][]float64{{1, 1}, {-1, 0}}, []float64{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		x, y float64
		want float64
	}{
		{0.25, 0.25, 0.25},
		{1, 1, -1},
		{-0.5, 0, -0.5},
	}
	for _, test := range tests {
		if got := l.Margin(square(t, test.x, test.y)); math.Abs(got-test.want) > 1e-12 {
			t.Errorf("margin at (%v, %v): want %v, got %v", test.x, test.y, test.want, got)
		}
	}

	if _, err := NewLinear([]string{"x"}, [][]float64{{1, 2}}, []float64{1}); err == nil {
		t.Errorf("mismatched row length was accepted")
	}

	missing, _ := NewLinear([]string{"z"}, [][]float64{{1}}, []float64{1})
	if missing.Feasible(square(t, 0, 0)) {
		t.Errorf("constraint on a missing variable reported feasible")
	}
}
