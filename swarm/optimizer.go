package swarm

import (
	"fmt"
	"log/slog"

	optim "github.com/Eric-Ptn/triumf-heatsink"
	"github.com/Eric-Ptn/triumf-heatsink/logger"
	"github.com/Eric-Ptn/triumf-heatsink/pop"
	"github.com/Eric-Ptn/triumf-heatsink/project"
)

const DefaultMaxIterations = 200

// DefaultSamplesPerParticle is the number of rejection seeding draws allowed
// per requested particle when no MaxSamples option is given.
const DefaultSamplesPerParticle = 1000

type State int

const (
	Uninitialized State = iota
	Initializing
	Iterating
	Converged
	MaxItersReached
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxItersReached:
		return "max-iters-reached"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config holds the swarm coefficients and termination settings of one run.
type Config struct {
	NParticles int
	Inertia    float64
	Cognition  float64
	Social     float64
	// RangeCountThresh is the number of consecutive iterations every
	// personal best must stay within ConvergenceRange of the swarm best
	// before the run is declared converged.
	RangeCountThresh int
	ConvergenceRange float64
	// MaxIterations <= 0 means DefaultMaxIterations.
	MaxIterations int
	// Logging enables evaluation logs and snapshot recording.
	Logging bool
	// BoxInit selects grid seeding; otherwise particles are seeded by
	// rejection sampling against the constraint.
	BoxInit bool
}

func DefaultConfig() Config {
	return Config{
		NParticles:       20,
		Inertia:          DefaultInertia,
		Cognition:        DefaultCognition,
		Social:           DefaultSocial,
		RangeCountThresh: 5,
		ConvergenceRange: 1e-3,
		MaxIterations:    DefaultMaxIterations,
		Logging:          true,
		BoxInit:          true,
	}
}

// Result is the outcome of a run.
type Result struct {
	Best       optim.Assignment
	Val        float64
	Iterations int
	State      State
	// Nevals counts real objective calls; Hits counts memo answers.
	Nevals int
	Hits   int
}

type Option func(*Optimizer)

// Constrain sets the feasibility constraint.  The default accepts every
// point inside the bounds.
func Constrain(c optim.Constraint) Option {
	return func(o *Optimizer) {
		o.Constraint = c
	}
}

func Rand(r optim.Rng) Option {
	return func(o *Optimizer) {
		o.Rng = r
	}
}

// Project replaces the default projector built from the constraint.
func Project(p *project.Projector) Option {
	return func(o *Optimizer) {
		o.Projector = p
	}
}

// Record sets where snapshots go when Config.Logging is on.
func Record(r Recorder) Option {
	return func(o *Optimizer) {
		o.Recorder = r
	}
}

func Logger(l *slog.Logger) Option {
	return func(o *Optimizer) {
		o.Log = l
	}
}

// MaxSamples caps the draws of rejection seeding.
func MaxSamples(n int) Option {
	return func(o *Optimizer) {
		o.MaxSamples = n
	}
}

// Optimizer drives a swarm through seeding and iterations until it
// converges or runs out of iterations.
type Optimizer struct {
	Specs      []optim.Spec
	Obj        optim.Objectiver
	Constraint optim.Constraint
	Projector  *project.Projector
	Rng        optim.Rng
	Recorder   Recorder
	Log        *slog.Logger
	MaxSamples int

	state State
	swarm *Swarm
	count int
}

func New(specs []optim.Spec, obj optim.Objectiver, opts ...Option) *Optimizer {
	o := &Optimizer{
		Specs:      append([]optim.Spec{}, specs...),
		Obj:        obj,
		Constraint: optim.Unconstrained{},
		Log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Rng == nil {
		o.Rng = optim.NewRng(1)
	}
	if o.Projector == nil {
		o.Projector = project.New(o.Constraint, project.Rand(o.Rng))
	}
	return o
}

func (o *Optimizer) State() State { return o.state }

// Swarm returns the swarm of the last (or current) run.
func (o *Optimizer) Swarm() *Swarm { return o.swarm }

// Optimize seeds a new swarm and iterates it.  Errors from the objective,
// the projector or the recorder abort the run; the returned result then
// holds whatever best was found so far.
func (o *Optimizer) Optimize(cfg Config) (Result, error) {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	o.state = Initializing
	if cfg.Logging {
		o.Log.Info("starting swarm", "particles", cfg.NParticles, "variables", len(o.Specs),
			"inertia", cfg.Inertia, "cognition", cfg.Cognition, "social", cfg.Social, "boxinit", cfg.BoxInit)
	}
	if err := o.initialize(cfg); err != nil {
		return o.result(0), err
	}
	if err := o.record(cfg, 0); err != nil {
		return o.result(0), err
	}

	o.state = Iterating
	iter := 0
	o.count = 0
	for {
		if iter >= cfg.MaxIterations {
			o.state = MaxItersReached
			break
		}
		if err := o.iterate(cfg); err != nil {
			return o.result(iter), err
		}
		iter++
		if cfg.Logging {
			o.Log.Info("iteration", "iter", iter, "best", o.swarm.BestVal, "params", o.swarm.Best.String(),
				"nevals", o.swarm.Nevals(), "hits", o.swarm.Hits())
		}
		if err := o.record(cfg, iter); err != nil {
			return o.result(iter), err
		}

		if o.swarm.Converged(cfg.ConvergenceRange) {
			o.count++
		} else {
			o.count = 0
		}
		if o.count >= cfg.RangeCountThresh {
			o.state = Converged
			break
		}
	}

	if cfg.Logging {
		o.Log.Info("swarm finished", "state", o.state, "iterations", iter, "best", o.swarm.BestVal,
			"params", o.swarm.Best.String())
	}
	return o.result(iter), nil
}

func (o *Optimizer) result(iter int) Result {
	r := Result{Iterations: iter, State: o.state}
	if o.swarm != nil {
		r.Best = o.swarm.Best.Clone()
		r.Val = o.swarm.BestVal
		r.Nevals = o.swarm.Nevals()
		r.Hits = o.swarm.Hits()
	}
	return r
}

func (o *Optimizer) seeds(n int, boxinit bool) ([]optim.Assignment, error) {
	if boxinit {
		return pop.Grid(n, o.Specs, o.Rng)
	}

	maxiter := o.MaxSamples
	if maxiter <= 0 {
		maxiter = DefaultSamplesPerParticle * n
	}
	points, nbad, iter, err := pop.Random(n, maxiter, o.Specs, o.Constraint, o.Rng)
	if err != nil {
		return nil, err
	}
	if nbad > 0 {
		o.Log.Warn("rejection seeding hit its sample cap, projecting least infeasible samples",
			"draws", iter, "infeasible", nbad)
	}
	return points, nil
}

func (o *Optimizer) initialize(cfg Config) error {
	points, err := o.seeds(cfg.NParticles, cfg.BoxInit)
	if err != nil {
		return err
	}

	s := NewSwarm(o.Obj)
	o.swarm = s
	ps := s.NewParticles(len(points))
	allDiscrete := len(points) > 0 && points[0].AllDiscrete()
	s.AddParticles(ps, allDiscrete)

	for i, p := range ps {
		a, err := o.Projector.Project(points[i])
		if err != nil {
			return fmt.Errorf("seeding particle %v: %w", p.Id, err)
		}
		val, err := p.SetMotion(a)
		if err != nil {
			return err
		}
		if cfg.Logging {
			o.Log.Debug("evaluated", "iter", 0, "particle", p.Id, "val", val, "params", a.String())
		}
	}
	s.UpdateBest()
	return nil
}

// iterate moves every particle toward the swarm best as it stood at the start
// of the iteration, then updates the swarm best.
func (o *Optimizer) iterate(cfg Config) error {
	s := o.swarm
	gbest := s.Best.Clone()
	for _, p := range s.Particles {
		p.Move(gbest, cfg.Inertia, cfg.Cognition, cfg.Social, o.Rng)
		a, err := o.Projector.Project(p.Params)
		if err != nil {
			return fmt.Errorf("moving particle %v: %w", p.Id, err)
		}
		p.Params = a
		val, err := p.Evaluate()
		if err != nil {
			return err
		}
		if cfg.Logging {
			o.Log.Debug("evaluated", "particle", p.Id, "val", val, "params", a.String())
		}
	}
	s.UpdateBest()
	return nil
}

func (o *Optimizer) record(cfg Config, iter int) error {
	if !cfg.Logging || o.Recorder == nil {
		return nil
	}
	if err := o.Recorder.Record(o.swarm.Snapshot(iter)); err != nil {
		return fmt.Errorf("recording iteration %v: %w", iter, err)
	}
	return nil
}
