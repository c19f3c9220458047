package swarm

import optim "github.com/Eric-Ptn/triumf-heatsink"

// ParticleState is a copy of one particle at the time of a snapshot.
type ParticleState struct {
	Id      int
	Params  optim.Assignment
	Val     float64
	Best    optim.Assignment
	BestVal float64
}

// Snapshot is the state of a whole swarm after initialization (Iter 0) or
// after an iteration.
type Snapshot struct {
	Iter      int
	Particles []ParticleState
	Best      optim.Assignment
	BestVal   float64
}

// Recorder receives swarm snapshots while an optimization runs.  A recorder
// error aborts the run.
type Recorder interface {
	Record(s Snapshot) error
}

// MemRecorder keeps every snapshot in memory.
type MemRecorder struct {
	Snapshots []Snapshot
}

func (r *MemRecorder) Record(s Snapshot) error {
	r.Snapshots = append(r.Snapshots, s)
	return nil
}
