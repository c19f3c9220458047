package swarm

import (
	"bytes"
	"database/sql"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	_ "modernc.org/sqlite"

	optim "github.com/Eric-Ptn/triumf-heatsink"
	"github.com/Eric-Ptn/triumf-heatsink/logger"
)

// plates is a mixed problem: the plate count is discrete and the plates must
// fit next to each other.
var plates = []optim.Spec{
	optim.NewSpec("count", true, 2, 20),
	optim.NewSpec("width", false, 0.5, 3),
	optim.NewSpec("gap", true, 0.5, 2, 0.25),
}

func fits(a optim.Assignment) float64 {
	v, _ := a.Values("count", "width", "gap")
	return 30 - v[0]*(v[1]+v[2])
}

func platesObj(a optim.Assignment) float64 {
	v, _ := a.Values("count", "width", "gap")
	// more surface is better, wide gaps cool better
	return -v[0]*v[1] - 2*math.Sqrt(v[2])
}

func onGrid(p optim.Param) bool {
	k := (p.Val - p.Min) / p.Step
	return math.Abs(k-math.Round(k)) < 1e-9
}

func TestSnapshotsFeasibleAndMonotone(t *testing.T) {
	c := optim.MarginFunc(fits)
	for _, boxinit := range []bool{true, false} {
		rec := &MemRecorder{}
		cfg := DefaultConfig()
		cfg.NParticles = 10
		cfg.MaxIterations = 25
		cfg.BoxInit = boxinit

		res, err := New(plates, optim.Func(platesObj), Constrain(c), Record(rec), Rand(optim.NewRng(5))).Optimize(cfg)
		if err != nil {
			t.Fatalf("boxinit=%v: %v", boxinit, err)
		}
		if len(rec.Snapshots) != res.Iterations+1 {
			t.Fatalf("boxinit=%v: want %v snapshots, got %v", boxinit, res.Iterations+1, len(rec.Snapshots))
		}

		prevBest := math.Inf(1)
		prev := map[int]float64{}
		for i, snap := range rec.Snapshots {
			if snap.Iter != i {
				t.Errorf("snapshot %v is labeled iteration %v", i, snap.Iter)
			}
			if len(snap.Particles) != cfg.NParticles {
				t.Errorf("iter %v: want %v particles, got %v", i, cfg.NParticles, len(snap.Particles))
			}
			if snap.BestVal > prevBest {
				t.Errorf("iter %v: swarm best rose from %v to %v", i, prevBest, snap.BestVal)
			}
			prevBest = snap.BestVal

			for _, ps := range snap.Particles {
				if !c.Feasible(ps.Params) {
					t.Errorf("boxinit=%v iter %v: particle %v at infeasible %v", boxinit, i, ps.Id, ps.Params)
				}
				for _, p := range ps.Params {
					if p.Val < p.Min || p.Val > p.Max {
						t.Errorf("iter %v: particle %v out of bounds: %v", i, ps.Id, ps.Params)
					}
					if p.Discrete && !onGrid(p) {
						t.Errorf("iter %v: particle %v off grid: %v", i, ps.Id, ps.Params)
					}
				}
				if last, ok := prev[ps.Id]; ok && ps.BestVal > last {
					t.Errorf("iter %v: particle %v personal best rose from %v to %v", i, ps.Id, last, ps.BestVal)
				}
				prev[ps.Id] = ps.BestVal
			}
		}
	}
}

func TestLoggingOff(t *testing.T) {
	rec := &MemRecorder{}
	cfg := DefaultConfig()
	cfg.Logging = false
	cfg.MaxIterations = 3
	specs := []optim.Spec{optim.NewSpec("x", false, 0, 5), optim.NewSpec("y", false, 0, 5)}
	if _, err := New(specs, optim.Func(paraboloid), Record(rec)).Optimize(cfg); err != nil {
		t.Fatal(err)
	}
	if len(rec.Snapshots) != 0 {
		t.Errorf("recorded %v snapshots with logging off", len(rec.Snapshots))
	}
}

type tee []Recorder

func (t tee) Record(s Snapshot) error {
	for _, r := range t {
		if err := r.Record(s); err != nil {
			return err
		}
	}
	return nil
}

func TestDBHistory(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	dbrec, err := NewDBRecorder(db)
	if err != nil {
		t.Fatal(err)
	}
	mem := &MemRecorder{}

	cfg := DefaultConfig()
	cfg.NParticles = 5
	cfg.MaxIterations = 4
	cfg.ConvergenceRange = 0
	_, err = New(plates, optim.Func(platesObj), Constrain(optim.MarginFunc(fits)), Record(tee{mem, dbrec})).Optimize(cfg)
	if err != nil {
		t.Fatal(err)
	}

	runs, err := Runs(db)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{dbrec.Run}, runs); diff != "" {
		t.Errorf("runs (-want +got):\n%s", diff)
	}

	history, err := LoadHistory(db, dbrec.Run)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(mem.Snapshots, history, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("replayed history (-want +got):\n%s", diff)
	}

	if _, err := LoadHistory(db, "no-such-run"); err == nil {
		t.Errorf("loading an unknown run succeeded")
	}
}

func TestRejectionSeedingCap(t *testing.T) {
	// x + y <= 0.2 covers 0.02% of the box, so 20 draws rarely find a
	// feasible seed and the least violating draws have to be projected.
	specs := []optim.Spec{
		optim.NewSpec("x", false, 0, 10),
		optim.NewSpec("y", false, 0, 10),
	}
	c := optim.MarginFunc(func(a optim.Assignment) float64 {
		v, _ := a.Values("x", "y")
		return 0.2 - v[0] - v[1]
	})

	var logs bytes.Buffer
	rec := &MemRecorder{}
	cfg := DefaultConfig()
	cfg.NParticles = 5
	cfg.MaxIterations = 3
	cfg.BoxInit = false

	o := New(specs, optim.Func(paraboloid), Constrain(c), MaxSamples(20), Record(rec),
		Rand(optim.NewRng(2)), Logger(logger.NewText("warn", &logs)))
	if _, err := o.Optimize(cfg); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(logs.String(), "sample cap") {
		t.Errorf("no sample cap warning logged:\n%s", logs.String())
	}
	seeds := rec.Snapshots[0].Particles
	if len(seeds) != cfg.NParticles {
		t.Fatalf("want %v seeded particles, got %v", cfg.NParticles, len(seeds))
	}
	for _, ps := range seeds {
		if !c.Feasible(ps.Params) {
			t.Errorf("particle %v seeded at infeasible %v", ps.Id, ps.Params)
		}
	}
}
