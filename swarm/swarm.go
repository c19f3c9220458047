// Package swarm implements a mixed-variable particle swarm optimizer.
// Particles move through continuous and discrete parameter spaces at once;
// every position a particle takes is first projected onto the feasible
// region, and objective values are memoized per swarm so revisited positions
// (common once discrete variables settle) cost nothing.
package swarm

import (
	"math"

	optim "github.com/Eric-Ptn/triumf-heatsink"
)

// These params are calculated using a constriction factor originally
// described in:
//
//     Clerc and M.  “The swarm and the queen: towards a deterministic and
//     adaptive particle swarm optimization” Proc. 1999 Congress on
//     Evolutionary Computation, pp. 1951-1957
//
// The cognition and social parameters correspond to c1 and c2 values of 2.05
// that have been multiplied by their constriction coeffient - i.e.
// DefaultSocial = Constriction(2.05, 2.05)*2.05.  DefaultInertia is set equal
// to the constriction coefficient.
const (
	DefaultCognition = 1.496179765663133
	DefaultSocial    = 1.496179765663133
	DefaultInertia   = 0.7298437881283576
)

// Constriction calculates the constriction coefficient for the given c1 and
// c2 for the particle velocity equation:
//
//    v_next = k(v_curr + c1*rand*(p_personal-x) + c2*rand*(p_glob-x))
//
// c1+c2 should usually be greater than (but close to) 4.
func Constriction(c1, c2 float64) float64 {
	phi := c1 + c2
	return 2 / math.Abs(2-phi-math.Sqrt(phi*phi-4*phi))
}

// Swarm holds the particles of one optimization run along with the best
// position any of them has found and the objective memo.
type Swarm struct {
	Particles []*Particle
	Best      optim.Assignment
	BestVal   float64

	obj    optim.Objectiver
	memory map[optim.Key]float64
	nevals int
	hits   int
}

func NewSwarm(obj optim.Objectiver) *Swarm {
	return &Swarm{obj: obj, BestVal: math.Inf(1)}
}

// NewParticles creates n unpositioned particles bound to s.  They become
// members of s once passed to AddParticles.
func (s *Swarm) NewParticles(n int) []*Particle {
	ps := make([]*Particle, n)
	for i := range ps {
		ps[i] = newParticle(len(s.Particles)+i, s)
	}
	return ps
}

// AddParticles appends ps to the swarm.  Objective values are only memoized
// when every variable is discrete: continuous positions practically never
// repeat.
func (s *Swarm) AddParticles(ps []*Particle, allDiscrete bool) {
	for _, p := range ps {
		p.swarm = s
	}
	s.Particles = append(s.Particles, ps...)
	if allDiscrete && s.memory == nil {
		s.memory = map[optim.Key]float64{}
	}
}

// Inform records the objective value of a in the memo, if there is one.
func (s *Swarm) Inform(a optim.Assignment, val float64) {
	if s.memory != nil {
		s.memory[a.Key()] = val
	}
}

// Memory returns the memoized objective value of a.
func (s *Swarm) Memory(a optim.Assignment) (val float64, ok bool) {
	if s.memory == nil {
		return 0, false
	}
	val, ok = s.memory[a.Key()]
	return val, ok
}

// UpdateBest adopts the best personal best of all particles as the swarm
// best if it is strictly better.  The swarm keeps its own copy.
func (s *Swarm) UpdateBest() {
	for _, p := range s.Particles {
		if p.Best == nil {
			continue
		}
		if s.Best == nil || p.BestVal < s.BestVal {
			s.Best = p.Best.Clone()
			s.BestVal = p.BestVal
		}
	}
}

// Nevals returns the number of objective evaluations performed.
func (s *Swarm) Nevals() int { return s.nevals }

// Hits returns the number of evaluations answered from the memo.
func (s *Swarm) Hits() int { return s.hits }

// Converged reports whether every particle's personal best lies within
// dist of the swarm best.
func (s *Swarm) Converged(dist float64) bool {
	if s.Best == nil {
		return false
	}
	for _, p := range s.Particles {
		if p.Best == nil || optim.Distance(p.Best, s.Best) >= dist {
			return false
		}
	}
	return true
}

// Snapshot returns a deep copy of the swarm state.
func (s *Swarm) Snapshot(iter int) Snapshot {
	snap := Snapshot{
		Iter:      iter,
		Best:      s.Best.Clone(),
		BestVal:   s.BestVal,
		Particles: make([]ParticleState, len(s.Particles)),
	}
	for i, p := range s.Particles {
		snap.Particles[i] = ParticleState{
			Id:      p.Id,
			Params:  p.Params.Clone(),
			Val:     p.Val,
			Best:    p.Best.Clone(),
			BestVal: p.BestVal,
		}
	}
	return snap
}
