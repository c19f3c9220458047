package swarm

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	optim "github.com/Eric-Ptn/triumf-heatsink"
)

const (
	// TblRuns is the name of the sql database table that lists recorded
	// runs and when they started.
	TblRuns = "swarmruns"
	// TblSpecs is the name of the sql database table that holds the variable
	// specs of each run.
	TblSpecs = "swarmspecs"
	// TblParticles is the name of the sql database table that contains
	// values and personal best values for particles for each iteration.
	TblParticles = "swarmparticles"
	// TblParams is the name of the sql database table that contains the
	// current ("pos") and personal best ("best") variable values of every
	// particle for each iteration.
	TblParams = "swarmparams"
	// TblBest is the name of the sql database table that contains the best
	// position for the entire swarm at each iteration.
	TblBest = "swarmbest"
)

const (
	kindPos  = "pos"
	kindBest = "best"
)

var schema = []string{
	"CREATE TABLE IF NOT EXISTS " + TblRuns + " (run TEXT PRIMARY KEY, started TEXT);",
	"CREATE TABLE IF NOT EXISTS " + TblSpecs + " (run TEXT, name TEXT, discrete INTEGER, min REAL, max REAL, step REAL);",
	"CREATE TABLE IF NOT EXISTS " + TblParticles + " (run TEXT, iter INTEGER, particle INTEGER, val REAL, best REAL);",
	"CREATE TABLE IF NOT EXISTS " + TblParams + " (run TEXT, iter INTEGER, particle INTEGER, kind TEXT, name TEXT, val REAL, vel REAL);",
	"CREATE TABLE IF NOT EXISTS " + TblBest + " (run TEXT, iter INTEGER, name TEXT, val REAL, vel REAL, best REAL);",
}

// DBRecorder writes swarm snapshots to an sql database under a fresh run id.
type DBRecorder struct {
	Db  *sql.DB
	Run string
	// specs is set once the variable specs of the run have been written.
	specs bool
}

// NewDBRecorder creates the history tables if needed and registers a new
// run.
func NewDBRecorder(db *sql.DB) (*DBRecorder, error) {
	for _, s := range schema {
		if _, err := db.Exec(s); err != nil {
			return nil, fmt.Errorf("creating history tables: %w", err)
		}
	}
	r := &DBRecorder{Db: db, Run: uuid.NewString()}
	_, err := db.Exec("INSERT INTO "+TblRuns+" (run, started) VALUES (?,?);", r.Run, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *DBRecorder) Record(snap Snapshot) error {
	tx, err := r.Db.Begin()
	if err != nil {
		return err
	}
	if err := r.record(tx, snap); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.specs = r.specs || len(snap.Particles) > 0
	return nil
}

func (r *DBRecorder) record(tx *sql.Tx, snap Snapshot) error {
	if !r.specs && len(snap.Particles) > 0 {
		s := "INSERT INTO " + TblSpecs + " (run, name, discrete, min, max, step) VALUES (?,?,?,?,?,?);"
		for _, spec := range snap.Particles[0].Params.Specs() {
			if _, err := tx.Exec(s, r.Run, spec.Name, spec.Discrete, spec.Min, spec.Max, spec.Step); err != nil {
				return err
			}
		}
	}

	s0 := "INSERT INTO " + TblParticles + " (run, iter, particle, val, best) VALUES (?,?,?,?,?);"
	s1 := "INSERT INTO " + TblParams + " (run, iter, particle, kind, name, val, vel) VALUES (?,?,?,?,?,?,?);"
	for _, p := range snap.Particles {
		if _, err := tx.Exec(s0, r.Run, snap.Iter, p.Id, p.Val, p.BestVal); err != nil {
			return err
		}
		for _, prm := range p.Params {
			if _, err := tx.Exec(s1, r.Run, snap.Iter, p.Id, kindPos, prm.Name, prm.Val, prm.Vel); err != nil {
				return err
			}
		}
		for _, prm := range p.Best {
			if _, err := tx.Exec(s1, r.Run, snap.Iter, p.Id, kindBest, prm.Name, prm.Val, prm.Vel); err != nil {
				return err
			}
		}
	}

	s2 := "INSERT INTO " + TblBest + " (run, iter, name, val, vel, best) VALUES (?,?,?,?,?,?);"
	for _, prm := range snap.Best {
		if _, err := tx.Exec(s2, r.Run, snap.Iter, prm.Name, prm.Val, prm.Vel, snap.BestVal); err != nil {
			return err
		}
	}
	return nil
}

// Runs returns the ids of every recorded run, oldest first.
func Runs(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT run FROM " + TblRuns + " ORDER BY started, rowid;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var run string
		if err := rows.Scan(&run); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LoadHistory rebuilds the snapshots recorded for run, in iteration order.
func LoadHistory(db *sql.DB, run string) ([]Snapshot, error) {
	specs, err := loadSpecs(db, run)
	if err != nil {
		return nil, err
	}

	snaps := map[int]*Snapshot{}
	snapshot := func(iter int) *Snapshot {
		if snaps[iter] == nil {
			snaps[iter] = &Snapshot{Iter: iter}
		}
		return snaps[iter]
	}
	type pkey struct{ iter, id int }
	states := map[pkey]*ParticleState{}

	rows, err := db.Query("SELECT iter, particle, val, best FROM "+TblParticles+" WHERE run=? ORDER BY iter, particle;", run)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var ps ParticleState
		var iter int
		if err := rows.Scan(&iter, &ps.Id, &ps.Val, &ps.BestVal); err != nil {
			rows.Close()
			return nil, err
		}
		s := snapshot(iter)
		s.Particles = append(s.Particles, ps)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, s := range snaps {
		for i := range s.Particles {
			states[pkey{s.Iter, s.Particles[i].Id}] = &s.Particles[i]
		}
	}

	rows, err = db.Query("SELECT iter, particle, kind, name, val, vel FROM "+TblParams+" WHERE run=?;", run)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var iter, id int
		var kind, name string
		var val, vel float64
		if err := rows.Scan(&iter, &id, &kind, &name, &val, &vel); err != nil {
			rows.Close()
			return nil, err
		}
		ps := states[pkey{iter, id}]
		spec, ok := specs[name]
		if ps == nil || !ok {
			rows.Close()
			return nil, fmt.Errorf("run %v: orphaned param %q for particle %v at iteration %v", run, name, id, iter)
		}
		prm := optim.Param{Spec: spec, Val: val, Vel: vel}
		if kind == kindBest {
			ps.Best = append(ps.Best, prm)
		} else {
			ps.Params = append(ps.Params, prm)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.Query("SELECT iter, name, val, vel, best FROM "+TblBest+" WHERE run=?;", run)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var iter int
		var name string
		var val, vel, best float64
		if err := rows.Scan(&iter, &name, &val, &vel, &best); err != nil {
			rows.Close()
			return nil, err
		}
		s := snapshot(iter)
		s.Best = append(s.Best, optim.Param{Spec: specs[name], Val: val, Vel: vel})
		s.BestVal = best
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	history := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.Best, err = optim.NewAssignment(s.Best...); err != nil {
			return nil, err
		}
		for i := range s.Particles {
			ps := &s.Particles[i]
			if ps.Params, err = optim.NewAssignment(ps.Params...); err != nil {
				return nil, err
			}
			if ps.Best, err = optim.NewAssignment(ps.Best...); err != nil {
				return nil, err
			}
		}
		history = append(history, *s)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Iter < history[j].Iter })
	return history, nil
}

func loadSpecs(db *sql.DB, run string) (map[string]optim.Spec, error) {
	rows, err := db.Query("SELECT name, discrete, min, max, step FROM "+TblSpecs+" WHERE run=?;", run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	specs := map[string]optim.Spec{}
	for rows.Next() {
		var s optim.Spec
		if err := rows.Scan(&s.Name, &s.Discrete, &s.Min, &s.Max, &s.Step); err != nil {
			return nil, err
		}
		specs[s.Name] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("run %v has no recorded variables", run)
	}
	return specs, nil
}
