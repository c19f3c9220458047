// Command psobench runs the swarm optimizer on benchmark problems and
// replays recorded runs.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	optim "github.com/Eric-Ptn/triumf-heatsink"
	"github.com/Eric-Ptn/triumf-heatsink/bench"
	"github.com/Eric-Ptn/triumf-heatsink/config"
	"github.com/Eric-Ptn/triumf-heatsink/logger"
	"github.com/Eric-Ptn/triumf-heatsink/swarm"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "psobench",
	Short: "Mixed-variable particle swarm benchmarks",
	Long: `psobench runs the constrained mixed-variable particle swarm optimizer on
benchmark problems, optionally recording every iteration to an sqlite
database for later replay.`,
	SilenceUsage: true,
}

var (
	runFunc     string
	runConfig   string
	runDB       string
	runSeed     int64
	runLogLevel string
	runJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Optimize a benchmark problem",
	Long: `Optimize a benchmark problem.  Settings come from the YAML run file given
with --config (see package config); flags override the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if runConfig != "" {
			var err error
			if cfg, err = config.Load(runConfig); err != nil {
				return err
			}
		}
		flags := cmd.Flags()
		if flags.Changed("func") {
			cfg.Function = runFunc
		}
		if flags.Changed("db") {
			cfg.History = runDB
		}
		if flags.Changed("seed") {
			cfg.Seed = runSeed
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = runLogLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return run(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func run(cfg config.Config, out, logw io.Writer) error {
	if cfg.Function == "" {
		return errors.New("no benchmark selected: set function in the run file or pass --func")
	}
	fn, ok := bench.ByName(cfg.Function)
	if !ok {
		return fmt.Errorf("unknown benchmark %q (see psobench list)", cfg.Function)
	}
	if len(cfg.Params) > 0 {
		fn.Specs = cfg.Specs()
	}

	var l *slog.Logger
	if runJSON {
		l = logger.New(cfg.LogLevel, logw)
	} else {
		l = logger.NewText(cfg.LogLevel, logw)
	}

	opts := []swarm.Option{
		swarm.Rand(optim.NewRng(cfg.Seed)),
		swarm.Logger(l),
	}
	if cfg.MaxSamples > 0 {
		opts = append(opts, swarm.MaxSamples(cfg.MaxSamples))
	}

	var rec *swarm.DBRecorder
	if cfg.History != "" {
		db, err := sql.Open("sqlite", cfg.History)
		if err != nil {
			return err
		}
		defer db.Close()
		if rec, err = swarm.NewDBRecorder(db); err != nil {
			return err
		}
		opts = append(opts, swarm.Record(rec))
		l.Info("recording run", "db", cfg.History, "run", rec.Run)
	}

	obj := optim.NewObjectiveLogger(fn, l.With("func", fn.Name))
	if fn.Constraint != nil {
		opts = append(opts, swarm.Constrain(fn.Constraint))
	}
	res, err := swarm.New(fn.Specs, obj, opts...).Optimize(cfg.Swarm())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%v: %v after %v iterations (%v evaluations, %v cached)\n",
		fn.Name, res.State, res.Iterations, res.Nevals, res.Hits)
	fmt.Fprintf(out, "    best: %v at %v\n", res.Val, res.Best)
	if len(fn.Optima) > 0 {
		fmt.Fprintf(out, "    optimum: %v (gap %v)\n", fn.Optima[0].Val, fn.Gap(res.Val))
	}
	if rec != nil {
		fmt.Fprintf(out, "    run: %v\n", rec.Run)
	}
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List benchmark problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVARS\tDISCRETE\tCONSTRAINED\tOPTIMUM")
		for _, fn := range bench.All() {
			a, _ := optim.FromSpecs(fn.Specs, make([]float64, len(fn.Specs))...)
			ndisc := 0
			for _, p := range a {
				if p.Discrete {
					ndisc++
				}
			}
			opt := "?"
			if len(fn.Optima) > 0 {
				opt = fmt.Sprint(fn.Optima[0].Val)
			}
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", fn.Name, len(fn.Specs), ndisc, fn.Constraint != nil, opt)
		}
		return w.Flush()
	},
}

var (
	replayDB        string
	replayRun       string
	replayParticles bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Print the iterations of a recorded run",
	Long:  `Print the iterations of a recorded run.  Without --run the latest run in the database is shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := sql.Open("sqlite", replayDB)
		if err != nil {
			return err
		}
		defer db.Close()

		run := replayRun
		if run == "" {
			runs, err := swarm.Runs(db)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return fmt.Errorf("no runs recorded in %v", replayDB)
			}
			run = runs[len(runs)-1]
		}

		history, err := swarm.LoadHistory(db, run)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %v: %v snapshots\n", run, len(history))
		for _, snap := range history {
			fmt.Fprintf(out, "iter %4d  best %-12.6g %v\n", snap.Iter, snap.BestVal, snap.Best)
			if !replayParticles {
				continue
			}
			for _, p := range snap.Particles {
				fmt.Fprintf(out, "    particle %3d  val %-12.6g %v  (best %.6g)\n", p.Id, p.Val, p.Params, p.BestVal)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runFunc, "func", "f", "", "benchmark to optimize (see list)")
	runCmd.Flags().StringVarP(&runConfig, "config", "c", "", "YAML run file")
	runCmd.Flags().StringVar(&runDB, "db", "", "sqlite database to record the run in")
	runCmd.Flags().Int64Var(&runSeed, "seed", 1, "random seed, 0 for time based")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "debug, info, warn or error")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "log JSON records instead of text")

	replayCmd.Flags().StringVar(&replayDB, "db", "", "sqlite database holding the run")
	replayCmd.Flags().StringVar(&replayRun, "run", "", "run id (default latest)")
	replayCmd.Flags().BoolVarP(&replayParticles, "particles", "p", false, "print every particle")
	replayCmd.MarkFlagRequired("db")

	rootCmd.AddCommand(runCmd, listCmd, replayCmd)
}
