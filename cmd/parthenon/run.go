package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AndrewGaspar/parthenon/internal/advect"
	"github.com/AndrewGaspar/parthenon/internal/api"
	"github.com/AndrewGaspar/parthenon/internal/collective"
	"github.com/AndrewGaspar/parthenon/internal/config"
	"github.com/AndrewGaspar/parthenon/internal/dispatch"
	"github.com/AndrewGaspar/parthenon/internal/driver"
	"github.com/AndrewGaspar/parthenon/internal/engine"
	"github.com/AndrewGaspar/parthenon/internal/integrator"
	"github.com/AndrewGaspar/parthenon/internal/model"
	"github.com/AndrewGaspar/parthenon/internal/outputs"
	"github.com/AndrewGaspar/parthenon/internal/signals"
	"github.com/AndrewGaspar/parthenon/internal/store"
)

// groupConnectTimeout bounds how long ranks wait for each other at startup.
const groupConnectTimeout = time.Minute

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evolve the advection problem until a limit or signal stops it",
	Long: `Run the driver on the sample advection problem.

The run stops at the time limit, the cycle limit, a failure, or when any rank
of the process group receives SIGTERM, SIGINT, or its wall-time alarm. The
exit status is 1 only when the run failed.

Examples:
  parthenon run --config run.yaml
  PARTHENON_RUN_SPACE=serial PARTHENON_RUN_CYCLE_LIMIT=20 parthenon run`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel).With("rank", cfg.Group.Rank)

	res, err := execute(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	exitCode = driver.ExitCode(res.State)
	return nil
}

// execute wires the configured components together and runs the driver to
// completion on this rank.
func execute(ctx context.Context, cfg config.Config, logger *slog.Logger) (driver.Result, error) {
	reg := dispatch.NewDefaultRegistry(cfg.Run.HostWorkers, cfg.Run.DeviceMultiprocessors, cfg.Run.DeviceTeamSize)
	space, err := reg.Resolve(cfg.Run.Space)
	if err != nil {
		return driver.Result{}, err
	}
	pattern, err := dispatch.ParsePattern(cfg.Run.Pattern)
	if err != nil {
		return driver.Result{}, err
	}
	in, err := integrator.Named(cfg.Run.Integrator)
	if err != nil {
		return driver.Result{}, err
	}

	group, closeGroup, err := openGroup(ctx, cfg.Group)
	if err != nil {
		return driver.Result{}, err
	}
	defer func() {
		if err := closeGroup(); err != nil {
			logger.Warn("close process group", "error", err)
		}
	}()

	mesh, err := advect.NewMesh(problemParams(cfg.Problem), group.Rank(), group.Size())
	if err != nil {
		return driver.Result{}, err
	}
	work, err := advect.NewTasks(mesh, in, pattern, space)
	if err != nil {
		return driver.Result{}, err
	}

	sig := signals.New(group, logger)
	sig.Install()
	defer sig.Stop()
	sig.SetWallTimeAlarm(cfg.Run.WallTime)
	defer sig.CancelWallTimeAlarm()

	var (
		db      store.Store
		outs    driver.Outputs
		cleanup func()
	)
	if group.Rank() == 0 {
		sqlite, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return driver.Result{}, fmt.Errorf("open database: %w", err)
		}
		defer sqlite.Close()
		db = sqlite

		set, closeOutputs, err := buildOutputs(ctx, cfg, db, logger)
		if err != nil {
			return driver.Result{}, err
		}
		cleanup = closeOutputs
		if len(set) > 0 {
			outs = set
		}
	}
	if cleanup != nil {
		defer cleanup()
	}

	eng := engine.NewEngine(db, logger)

	if db != nil && cfg.ListenAddr != "" {
		srvCtx, stopServer := context.WithCancel(ctx)
		srv := api.NewServer(cfg.ListenAddr, db, reg, eng, logger)
		srvDone := make(chan struct{})
		go func() {
			defer close(srvDone)
			if err := srv.Run(srvCtx); err != nil {
				logger.Error("monitor server", "error", err)
			}
		}()
		defer func() {
			stopServer()
			<-srvDone
		}()
	}

	var diag driver.Diagnostics
	if cfg.Run.DiagnosticsInterval > 0 {
		diag = driver.NewLogDiagnostics(logger, cfg.Run.DiagnosticsInterval)
	}

	run := &model.Run{
		Integrator: in.Name(),
		Pattern:    pattern.String(),
		Space:      space.Name(),
		Ranks:      group.Size(),
		TimeLimit:  cfg.Run.TimeLimit,
		CycleLimit: cfg.Run.CycleLimit,
	}

	logger.Info("run starting",
		"integrator", run.Integrator,
		"pattern", run.Pattern,
		"space", run.Space,
		"ranks", run.Ranks,
		"blocks", mesh.TotalBlocks(),
		"local_blocks", len(mesh.Blocks()),
	)

	res := eng.Execute(ctx, run, func(run *model.Run, hooks engine.Hooks) (*driver.Driver, error) {
		return driver.New(driver.Config{
			RunID:       run.ID,
			Integrator:  in,
			Space:       space,
			Pattern:     pattern,
			Rank:        3,
			TimeLimit:   cfg.Run.TimeLimit,
			CycleLimit:  cfg.Run.CycleLimit,
			InitialTime: cfg.Run.InitialTime,
			InitialDt:   mesh.Timestep(),
			UnitWorkers: cfg.Run.UnitWorkers,
			MaxPasses:   cfg.Run.MaxPasses,
		}, driver.Deps{
			Mesh:        mesh,
			Tasks:       work,
			Outputs:     outs,
			Diagnostics: diag,
			Terminator:  sig,
			Group:       group,
			OnCycle:     hooks.OnCycle,
			OnState:     hooks.OnState,
		}, logger)
	})

	attrs := []any{
		"run_id", run.ID,
		"state", res.State,
		"cycles", res.Cycle,
		"time", res.Time,
		"block_cycles", res.BlockCycles,
		"block_cycles_per_second", res.BlockCyclesPerSecond(),
		"elapsed_ms", res.Elapsed.Milliseconds(),
		"mass", mesh.Mass(),
	}
	if res.Signal != "" {
		attrs = append(attrs, "signal", res.Signal)
	}
	if res.Err != nil {
		attrs = append(attrs, "error", res.Err)
		logger.Error("run finished", attrs...)
	} else {
		logger.Info("run finished", attrs...)
	}
	return res, nil
}

// openGroup joins the process group described by g. Rank 0 listens on the
// coordinator address and every other rank dials it.
func openGroup(ctx context.Context, g config.GroupConfig) (collective.Group, func() error, error) {
	if g.Size <= 1 {
		return collective.Single{}, func() error { return nil }, nil
	}

	ctx, cancel := context.WithTimeout(ctx, groupConnectTimeout)
	defer cancel()

	if g.Rank == 0 {
		l, err := collective.Listen(g.Coordinator)
		if err != nil {
			return nil, nil, err
		}
		t, err := l.Accept(ctx, g.Size)
		if err != nil {
			return nil, nil, fmt.Errorf("form group of %d: %w", g.Size, err)
		}
		return t, t.Close, nil
	}

	t, err := collective.Dial(ctx, g.Coordinator, g.Rank, g.Size)
	if err != nil {
		return nil, nil, fmt.Errorf("join group as rank %d: %w", g.Rank, err)
	}
	return t, t.Close, nil
}

// buildOutputs assembles the per-cycle writers of rank 0. The returned
// cleanup closes any open history file.
func buildOutputs(ctx context.Context, cfg config.Config, db store.Store, logger *slog.Logger) (outputs.Set, func(), error) {
	var (
		set     outputs.Set
		history *outputs.History
	)
	cleanup := func() {
		if history == nil {
			return
		}
		if err := history.Close(); err != nil {
			logger.Warn("close history", "path", cfg.Outputs.HistoryPath, "error", err)
		}
	}

	if cfg.Outputs.HistoryPath != "" {
		h, err := outputs.OpenHistory(cfg.Outputs.HistoryPath, cfg.Outputs.HistoryFormat, cfg.Outputs.DT)
		if err != nil {
			return nil, nil, err
		}
		history = h
		set = append(set, h)
	}
	if cfg.Outputs.RecordCycles && db != nil {
		set = append(set, outputs.NewStoreRecorder(db))
	}
	if cfg.Outputs.Object.Enabled() {
		up, err := outputs.NewObjectUploader(ctx, cfg.ObjectStore())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("object store: %w", err)
		}
		set = append(set, up)
	}
	return set, cleanup, nil
}

func problemParams(p config.ProblemConfig) advect.Params {
	return advect.Params{
		NX: p.Cells[0], NY: p.Cells[1], NZ: p.Cells[2],
		BlockNX: p.BlockCells[0], BlockNY: p.BlockCells[1], BlockNZ: p.BlockCells[2],
		Velocity: p.Velocity,
		CFL:      p.CFL,
	}
}
