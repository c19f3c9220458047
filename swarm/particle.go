package swarm

import (
	"fmt"
	"math"

	optim "github.com/Eric-Ptn/triumf-heatsink"
)

type Particle struct {
	Id int
	// Params is the particle's current (feasible) position and velocity.
	Params  optim.Assignment
	Val     float64
	Best    optim.Assignment
	BestVal float64
	swarm   *Swarm
}

func newParticle(id int, s *Swarm) *Particle {
	return &Particle{Id: id, Val: math.Inf(1), BestVal: math.Inf(1), swarm: s}
}

// SetMotion places the particle at a and evaluates it there.
func (p *Particle) SetMotion(a optim.Assignment) (float64, error) {
	p.Params = a
	return p.Evaluate()
}

// Evaluate computes the objective at the current position, consulting the
// swarm memo first, and updates the personal best.
func (p *Particle) Evaluate() (float64, error) {
	s := p.swarm
	val, ok := s.Memory(p.Params)
	if ok {
		s.hits++
	} else {
		var err error
		val, err = s.obj.Objective(p.Params)
		s.nevals++
		if err != nil {
			return val, fmt.Errorf("particle %v: objective failed at %v: %w", p.Id, p.Params, err)
		}
		s.Inform(p.Params, val)
	}

	p.Val = val
	if p.Best == nil || val < p.BestVal {
		p.Best = p.Params.Clone()
		p.BestVal = val
	}
	return val, nil
}
