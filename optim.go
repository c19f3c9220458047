package optim

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Spec describes the domain of a single decision variable.  Specs are shared
// templates: once an optimization run starts, every particle's copy of a
// variable carries the same Spec and only its value and velocity change.
type Spec struct {
	Name     string
	Discrete bool
	Min      float64
	Max      float64
	// Step is the discretization of a discrete variable's grid.  It is
	// ignored for continuous variables.
	Step float64
}

// NewSpec creates a variable spec.  Discrete variables created without a
// step get a step of 1.
func NewSpec(name string, discrete bool, min, max float64, step ...float64) Spec {
	s := Spec{Name: name, Discrete: discrete, Min: min, Max: max}
	if len(step) > 0 {
		s.Step = step[0]
	}
	if discrete && s.Step == 0 {
		slog.Warn("no discretization given for discrete variable, using 1", "name", name)
		s.Step = 1
	}
	return s
}

// Range returns Max-Min.
func (s Spec) Range() float64 { return s.Max - s.Min }

// Param is a variable with a current value and velocity.
type Param struct {
	Spec
	Val float64
	Vel float64
}

// Key returns the identity of p used for memoization.  The velocity is
// deliberately not part of it.
func (p Param) Key() ParamKey {
	return ParamKey{
		Name:     p.Name,
		Discrete: p.Discrete,
		Min:      p.Min,
		Max:      p.Max,
		Val:      p.Val,
		Step:     p.Step,
	}
}

type ParamKey struct {
	Name     string
	Discrete bool
	Min      float64
	Max      float64
	Val      float64
	Step     float64
}

// Assignment is a complete set of variable values: one Param per declared
// name, sorted by name.  Use NewAssignment to build one from arbitrary
// ordered params.
type Assignment []Param

// NewAssignment sorts params by name and checks that every name occurs once.
func NewAssignment(params ...Param) (Assignment, error) {
	a := make(Assignment, len(params))
	copy(a, params)
	sort.Slice(a, func(i, j int) bool { return a[i].Name < a[j].Name })
	for i := 1; i < len(a); i++ {
		if a[i].Name == a[i-1].Name {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, a[i].Name)
		}
	}
	return a, nil
}

// FromSpecs builds an assignment with the given values (in the same order as
// specs) and zero velocities.
func FromSpecs(specs []Spec, vals ...float64) (Assignment, error) {
	if len(vals) != len(specs) {
		return nil, fmt.Errorf("got %v values for %v variables", len(vals), len(specs))
	}
	params := make([]Param, len(specs))
	for i, s := range specs {
		params[i] = Param{Spec: s, Val: vals[i]}
	}
	return NewAssignment(params...)
}

func (a Assignment) index(name string) int {
	i := sort.Search(len(a), func(i int) bool { return a[i].Name >= name })
	if i < len(a) && a[i].Name == name {
		return i
	}
	return -1
}

// Lookup returns the named param.  ok is false if a has no such variable.
func (a Assignment) Lookup(name string) (p Param, ok bool) {
	i := a.index(name)
	if i < 0 {
		return Param{}, false
	}
	return a[i], true
}

// Value returns the value of the named variable.  ok is false if a has no
// such variable.
func (a Assignment) Value(name string) (v float64, ok bool) {
	p, ok := a.Lookup(name)
	return p.Val, ok
}

// Values returns the values of the named variables in the order given.  It
// returns ErrMissingVariable if any of them is absent.
func (a Assignment) Values(names ...string) ([]float64, error) {
	vals := make([]float64, len(names))
	for i, name := range names {
		v, ok := a.Value(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingVariable, name)
		}
		vals[i] = v
	}
	return vals, nil
}

// Clone returns a deep copy of a.
func (a Assignment) Clone() Assignment {
	if a == nil {
		return nil
	}
	dup := make(Assignment, len(a))
	copy(dup, a)
	return dup
}

// Vals returns the variable values in name order.
func (a Assignment) Vals() []float64 {
	x := make([]float64, len(a))
	for i, p := range a {
		x[i] = p.Val
	}
	return x
}

// WithVals returns a copy of a with values replaced by x (in name order).
// Velocities are kept.
func (a Assignment) WithVals(x []float64) Assignment {
	if len(x) != len(a) {
		panic(fmt.Sprintf("assignment has %v variables, got %v values", len(a), len(x)))
	}
	dup := a.Clone()
	for i := range dup {
		dup[i].Val = x[i]
	}
	return dup
}

// Specs returns the variable specs in name order.
func (a Assignment) Specs() []Spec {
	specs := make([]Spec, len(a))
	for i, p := range a {
		specs[i] = p.Spec
	}
	return specs
}

func (a Assignment) AllDiscrete() bool {
	for _, p := range a {
		if !p.Discrete {
			return false
		}
	}
	return true
}

func (a Assignment) AnyDiscrete() bool {
	for _, p := range a {
		if p.Discrete {
			return true
		}
	}
	return false
}

// Map returns the values keyed by variable name.
func (a Assignment) Map() map[string]float64 {
	m := make(map[string]float64, len(a))
	for _, p := range a {
		m[p.Name] = p.Val
	}
	return m
}

// Key is the canonical digest of an assignment's identity fields.
type Key [sha1.Size]byte

// Key hashes the identity of every param in name order.  Two assignments
// holding the same variables with the same values get the same key no matter
// how they were built or what their velocities are.
func (a Assignment) Key() Key {
	var buf []byte
	var num [8]byte
	putf := func(v float64) {
		if v == 0 {
			v = 0 // fold -0 into +0
		}
		binary.BigEndian.PutUint64(num[:], math.Float64bits(v))
		buf = append(buf, num[:]...)
	}
	for _, p := range a {
		k := p.Key()
		buf = append(buf, k.Name...)
		buf = append(buf, 0)
		if k.Discrete {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		putf(k.Min)
		putf(k.Max)
		putf(k.Val)
		putf(k.Step)
	}
	return sha1.Sum(buf)
}

func (a Assignment) String() string {
	parts := make([]string, len(a))
	for i, p := range a {
		parts[i] = fmt.Sprintf("%v=%v", p.Name, p.Val)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Distance returns the Euclidean distance between the values of a and b,
// which must hold the same variables.
func Distance(a, b Assignment) float64 {
	return floats.Distance(a.Vals(), b.Vals(), 2)
}
