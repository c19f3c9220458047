package optim

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrProjection is matched (via errors.Is) by every *ProjectionError.
	ErrProjection      = errors.New("no feasible projection")
	ErrDuplicateName   = errors.New("duplicate variable name")
	ErrMissingVariable = errors.New("variable not found")
)

// ProjectionError reports that a candidate assignment could not be mapped
// onto the feasible region.  It is fatal for an optimization run.
type ProjectionError struct {
	// X holds the values (in name order) that were being projected.
	X      []float64
	Reason string
	Err    error
}

func (e *ProjectionError) Error() string {
	msg := fmt.Sprintf("projection of %v failed: %v", e.X, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProjectionError) Is(target error) bool { return target == ErrProjection }

func (e *ProjectionError) Unwrap() error { return e.Err }

type Objectiver interface {
	// Objective evaluates the assignment a and returns the objective
	// function value.  The objective function must be framed so that lower
	// values are better.  Evaluation may block for as long as the underlying
	// simulation takes; errors abort the optimization.
	Objective(a Assignment) (float64, error)
}

// Func adapts an infallible function to the Objectiver interface.
type Func func(Assignment) float64

func (f Func) Objective(a Assignment) (float64, error) { return f(a), nil }

// ObjectiveFunc adapts a fallible function to the Objectiver interface.
type ObjectiveFunc func(Assignment) (float64, error)

func (f ObjectiveFunc) Objective(a Assignment) (float64, error) { return f(a) }

// Constraint is a feasibility predicate.  Feasible must accept any point in
// the ambient box, including values that are not on a discrete variable's
// grid.
type Constraint interface {
	Feasible(a Assignment) bool
}

// Marginer is a Constraint that can also report a signed margin: >= 0 for
// feasible points, and the more negative the further a point is from the
// feasible region.  Smooth margins let the projector use a gradient based
// solver instead of the boolean predicate.
type Marginer interface {
	Constraint
	Margin(a Assignment) float64
}

// Predicate adapts a boolean function to the Constraint interface.
type Predicate func(Assignment) bool

func (p Predicate) Feasible(a Assignment) bool { return p(a) }

// MarginFunc adapts a signed margin function to the Marginer interface.
type MarginFunc func(Assignment) float64

func (m MarginFunc) Feasible(a Assignment) bool { return m(a) >= 0 }

func (m MarginFunc) Margin(a Assignment) float64 { return m(a) }

// Unconstrained accepts every point.
type Unconstrained struct{}

func (Unconstrained) Feasible(Assignment) bool { return true }

func (Unconstrained) Margin(Assignment) float64 { return 1 }

// ObjectiveLogger wraps an Objectiver and logs every evaluation.
type ObjectiveLogger struct {
	Objectiver
	Log   *slog.Logger
	Count int
}

func NewObjectiveLogger(obj Objectiver, l *slog.Logger) *ObjectiveLogger {
	if l == nil {
		l = slog.Default()
	}
	return &ObjectiveLogger{Objectiver: obj, Log: l}
}

func (ol *ObjectiveLogger) Objective(a Assignment) (float64, error) {
	val, err := ol.Objectiver.Objective(a)

	ol.Count++
	if err != nil {
		ol.Log.Error("objective failed", "n", ol.Count, "params", a.String(), "err", err)
	} else {
		ol.Log.Info("objective", "n", ol.Count, "params", a.String(), "val", val)
	}
	return val, err
}
