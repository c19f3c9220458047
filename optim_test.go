package optim

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewSpecDefaultsStep(t *testing.T) {
	s := NewSpec("n", true, 1, 10)
	if s.Step != 1 {
		t.Errorf("discrete step: want 1, got %v", s.Step)
	}
	s = NewSpec("x", false, 0, 5)
	if s.Step != 0 {
		t.Errorf("continuous step: want 0, got %v", s.Step)
	}
	s = NewSpec("d", true, 0, 1, 0.25)
	if s.Step != 0.25 {
		t.Errorf("explicit step: want 0.25, got %v", s.Step)
	}
}

func TestNewAssignmentSortsAndRejectsDuplicates(t *testing.T) {
	x := NewSpec("x", false, 0, 5)
	y := NewSpec("y", false, 0, 5)
	a, err := NewAssignment(Param{Spec: y, Val: 2}, Param{Spec: x, Val: 1})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{1, 2}, a.Vals()); diff != "" {
		t.Errorf("values not in name order (-want +got):\n%s", diff)
	}

	_, err = NewAssignment(Param{Spec: x}, Param{Spec: x, Val: 1})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("want ErrDuplicateName, got %v", err)
	}
}

func TestLookupNotFound(t *testing.T) {
	a, _ := FromSpecs([]Spec{NewSpec("x", false, -1, 1)}, 0)
	if v, ok := a.Value("x"); !ok || v != 0 {
		t.Errorf("Value(x): want 0 true, got %v %v", v, ok)
	}
	if _, ok := a.Value("z"); ok {
		t.Errorf("Value(z) reported a missing variable as present")
	}
	if _, err := a.Values("x", "z"); !errors.Is(err, ErrMissingVariable) {
		t.Errorf("want ErrMissingVariable, got %v", err)
	}
}

func TestKeyIgnoresOrderAndVelocity(t *testing.T) {
	n := NewSpec("n", true, 0, 10)
	m := NewSpec("m", true, 0, 10)
	a, _ := NewAssignment(Param{Spec: n, Val: 3, Vel: 1}, Param{Spec: m, Val: 4, Vel: -2})
	b, _ := NewAssignment(Param{Spec: m, Val: 4, Vel: 7}, Param{Spec: n, Val: 3})
	if a.Key() != b.Key() {
		t.Errorf("equal assignments produced different keys")
	}

	c := b.Clone()
	c[0].Val = 5
	if a.Key() == c.Key() {
		t.Errorf("different values produced the same key")
	}

	d := b.Clone()
	d[1].Step = 0.5
	if a.Key() == d.Key() {
		t.Errorf("different discretization produced the same key")
	}

	z1, _ := FromSpecs([]Spec{n}, 0)
	z2, _ := FromSpecs([]Spec{n}, math.Copysign(0, -1))
	if z1.Key() != z2.Key() {
		t.Errorf("-0 and +0 produced different keys")
	}
}

func TestCloneIsDeep(t *testing.T) {
	a, _ := FromSpecs([]Spec{NewSpec("x", false, 0, 1)}, 0.5)
	b := a.Clone()
	b[0].Val = 0.75
	if a[0].Val != 0.5 {
		t.Errorf("mutating clone changed original: got %v", a[0].Val)
	}
}

func TestProjectionErrorIs(t *testing.T) {
	inner := errors.New("solver blew up")
	var err error = &ProjectionError{X: []float64{1}, Reason: "test", Err: inner}
	if !errors.Is(err, ErrProjection) {
		t.Errorf("ProjectionError does not match ErrProjection")
	}
	if !errors.Is(err, inner) {
		t.Errorf("ProjectionError does not unwrap to its cause")
	}
}

const errcount = 3

type ErrObj struct {
	count int
}

func (o *ErrObj) Objective(a Assignment) (float64, error) {
	o.count++
	if o.count >= errcount {
		return math.Inf(1), errors.New("fake error")
	}
	return 0, nil
}

func TestObjectiveLoggerCountsAndPropagates(t *testing.T) {
	obj := NewObjectiveLogger(&ErrObj{}, nil)
	a, _ := FromSpecs([]Spec{NewSpec("x", false, 0, 1)}, 0.5)

	var err error
	for i := 0; i < errcount; i++ {
		_, err = obj.Objective(a)
	}
	if obj.Count != errcount {
		t.Errorf("wrong evaluation count: want %v, got %v", errcount, obj.Count)
	}
	if err == nil {
		t.Errorf("did not propagate error through return")
	}
}
