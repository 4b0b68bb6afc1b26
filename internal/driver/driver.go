package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AndrewGaspar/parthenon/internal/collective"
	"github.com/AndrewGaspar/parthenon/internal/dispatch"
	"github.com/AndrewGaspar/parthenon/internal/integrator"
	"github.com/AndrewGaspar/parthenon/internal/model"
	"github.com/AndrewGaspar/parthenon/internal/outputs"
	"github.com/AndrewGaspar/parthenon/internal/tasks"
)

// ErrInvalidConfig is returned by New for a driver that cannot run.
var ErrInvalidConfig = errors.New("invalid driver configuration")

// Config holds the loop limits and execution settings of one run.
type Config struct {
	RunID      string
	Integrator *integrator.Integrator

	// Space and Pattern are the execution space and loop pattern the task
	// lists dispatch with; Rank is the dimensionality of those loops.
	Space   dispatch.Space
	Pattern dispatch.Pattern
	Rank    int

	TimeLimit   float64
	CycleLimit  int // negative means unlimited
	InitialTime float64
	InitialDt   float64

	// UnitWorkers bounds how many task lists are driven concurrently; zero
	// means one goroutine per unit.
	UnitWorkers int

	// MaxPasses bounds the drive passes per task list; zero means unbounded.
	MaxPasses int
}

// Deps are the collaborators the driver consumes. Mesh and Tasks are
// required; the rest are optional.
type Deps struct {
	Mesh        Mesh
	Tasks       TaskListFactory
	Outputs     Outputs
	Diagnostics Diagnostics
	Terminator  Terminator
	Group       collective.Group

	// OnCycle is called after the clock advances at the end of every cycle.
	OnCycle func(Snapshot)

	// OnState is called on every change of driver state, including the
	// final one.
	OnState func(from, to string)
}

// Result is the outcome of Execute.
type Result struct {
	State       string
	Cycle       int
	Time        float64
	BlockCycles int64
	Signal      string
	Err         error
	Elapsed     time.Duration
}

// BlockCyclesPerSecond is the throughput of the run in unit updates per
// wall-clock second.
func (r Result) BlockCyclesPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.BlockCycles) / r.Elapsed.Seconds()
}

// ExitCode maps a final state to a process exit status.
func ExitCode(state string) int {
	if state == model.StateFailed {
		return 1
	}
	return 0
}

// Driver evolves a mesh until the time or cycle limit, a failure, or a signal.
type Driver struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	state               string
	cycle               int
	time                float64
	dt                  float64
	blockCycles         int64
	stepsSinceRebalance int
	units               int
}

// New validates cfg and returns a driver ready to Execute.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Driver, error) {
	if cfg.Integrator == nil {
		return nil, fmt.Errorf("%w: no integrator", ErrInvalidConfig)
	}
	if cfg.Space == nil {
		return nil, fmt.Errorf("%w: no execution space", ErrInvalidConfig)
	}
	if err := dispatch.Check(cfg.Pattern, cfg.Rank, cfg.Space); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if deps.Mesh == nil || deps.Tasks == nil {
		return nil, fmt.Errorf("%w: mesh and task list factory are required", ErrInvalidConfig)
	}
	if math.IsNaN(cfg.TimeLimit) || math.IsNaN(cfg.InitialTime) {
		return nil, fmt.Errorf("%w: time limit and initial time must be numbers", ErrInvalidConfig)
	}
	if !(cfg.InitialDt > 0) || math.IsInf(cfg.InitialDt, 0) {
		return nil, fmt.Errorf("%w: initial dt must be positive, got %v", ErrInvalidConfig, cfg.InitialDt)
	}
	if cfg.UnitWorkers < 0 || cfg.MaxPasses < 0 {
		return nil, fmt.Errorf("%w: unit workers and max passes must not be negative", ErrInvalidConfig)
	}
	if deps.Group == nil {
		deps.Group = collective.Single{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Driver{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("run_id", cfg.RunID, "rank", deps.Group.Rank()),
		state:  model.StateRunning,
		time:   cfg.InitialTime,
		dt:     cfg.InitialDt,
	}, nil
}

// State returns the current driver state.
func (d *Driver) State() string { return d.state }

// Snapshot returns a copy of the driver state.
func (d *Driver) Snapshot() Snapshot {
	return Snapshot{
		RunID:          d.cfg.RunID,
		Rank:           d.deps.Group.Rank(),
		Cycle:          d.cycle,
		Time:           d.time,
		Dt:             d.dt,
		TimeLimit:      d.cfg.TimeLimit,
		Units:          d.units,
		BlockCycles:    d.blockCycles,
		SinceRebalance: d.stepsSinceRebalance,
		State:          d.state,
	}
}

func (d *Driver) transition(to string) error {
	if !model.ValidTransition(d.state, to) {
		return fmt.Errorf("driver state %s cannot move to %s", d.state, to)
	}
	d.setState(to)
	return nil
}

func (d *Driver) setState(to string) {
	from := d.state
	d.state = to
	if from != to && d.deps.OnState != nil {
		d.deps.OnState(from, to)
	}
}

func (d *Driver) keepGoing() bool {
	if d.state != model.StateRunning || !(d.time < d.cfg.TimeLimit) {
		return false
	}
	return d.cfg.CycleLimit < 0 || d.cycle < d.cfg.CycleLimit
}

// Execute runs the evolution loop to a terminal state. Cancelling ctx does
// not interrupt a stage; stopping is requested through the Terminator and
// takes effect at a cycle boundary.
func (d *Driver) Execute(ctx context.Context) Result {
	start := time.Now()
	d.units = len(d.deps.Mesh.Units())

	d.logger.Info("driver starting",
		"integrator", d.cfg.Integrator.Name(),
		"stages", d.cfg.Integrator.Stages(),
		"space", d.cfg.Space.Name(),
		"pattern", d.cfg.Pattern.String(),
		"tlim", d.cfg.TimeLimit,
		"nlim", d.cfg.CycleLimit,
	)

	var err error
	for d.keepGoing() {
		if err = d.cycleOnce(ctx); err != nil {
			d.setState(model.StateFailed)
			break
		}
	}
	if d.state == model.StateRunning {
		d.setState(model.StateComplete)
	}

	res := Result{
		State:       d.state,
		Cycle:       d.cycle,
		Time:        d.time,
		BlockCycles: d.blockCycles,
		Err:         err,
		Elapsed:     time.Since(start),
	}
	if d.state == model.StateTerminating && d.deps.Terminator != nil {
		res.Signal = d.deps.Terminator.Report()
	}
	runsTotal.WithLabelValues(d.state).Inc()

	attrs := []any{
		"state", res.State,
		"cycle", res.Cycle,
		"time", res.Time,
		"block_cycles", res.BlockCycles,
		"elapsed", res.Elapsed,
	}
	switch res.State {
	case model.StateFailed:
		d.logger.Error("driver failed", append(attrs, "error", res.Err)...)
	case model.StateTerminating:
		d.logger.Warn("driver terminated", append(attrs, "signal", res.Signal)...)
	default:
		d.logger.Info("driver complete", attrs...)
	}
	return res
}

func (d *Driver) cycleOnce(ctx context.Context) error {
	d.units = len(d.deps.Mesh.Units())
	if d.deps.Diagnostics != nil && d.deps.Group.Rank() == 0 {
		d.deps.Diagnostics.CycleDiagnostics(d.Snapshot())
	}

	units, err := d.stageLoop(ctx)
	if err != nil {
		return err
	}

	d.cycle++
	d.time += d.dt
	d.blockCycles += int64(units)
	d.stepsSinceRebalance++
	cyclesTotal.Inc()
	simulationTime.Set(d.time)
	if d.deps.OnCycle != nil {
		d.deps.OnCycle(d.Snapshot())
	}

	if err := d.deps.Mesh.Rebalance(ctx); err != nil {
		return fmt.Errorf("rebalance after cycle %d: %w", d.cycle, err)
	}
	if rr, ok := d.deps.Mesh.(RebalanceReporter); ok && rr.Rebalanced() {
		d.stepsSinceRebalance = 0
	}

	dt, err := d.deps.Mesh.NewTimestep(ctx)
	if err != nil {
		return fmt.Errorf("new timestep after cycle %d: %w", d.cycle, err)
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("new timestep after cycle %d: dt must be positive and finite, got %v", d.cycle, dt)
	}
	d.dt = dt
	d.units = len(d.deps.Mesh.Units())

	// Output at the time limit is left to the caller's final output.
	if d.deps.Outputs != nil && d.time < d.cfg.TimeLimit {
		if err := d.transition(model.StateOutputPending); err != nil {
			return err
		}
		if err := d.deps.Outputs.MakeOutputs(ctx, d.Snapshot()); err != nil {
			if errors.Is(err, outputs.ErrResourceExhausted) {
				return fmt.Errorf("outputs at cycle %d ran out of resources: %w", d.cycle, err)
			}
			return fmt.Errorf("outputs at cycle %d failed: %w", d.cycle, err)
		}
		if err := d.transition(model.StateRunning); err != nil {
			return err
		}
	}

	if d.deps.Terminator != nil {
		n, err := d.deps.Terminator.CheckAndSynchronize(ctx)
		if err != nil {
			return fmt.Errorf("signal consensus at cycle %d: %w", d.cycle, err)
		}
		if n != 0 {
			return d.transition(model.StateTerminating)
		}
	}
	return nil
}

// stageLoop runs every stage of the integrator over the units captured at its
// start and returns how many units were evolved.
func (d *Driver) stageLoop(ctx context.Context) (int, error) {
	units := d.deps.Mesh.Units()
	stageCtx := context.WithoutCancel(ctx)

	for stage := 1; stage <= d.cfg.Integrator.Stages(); stage++ {
		stageStart := time.Now()

		var g errgroup.Group
		if d.cfg.UnitWorkers > 0 {
			g.SetLimit(d.cfg.UnitWorkers)
		}
		statuses := make([]tasks.Status, len(units))
		for i, u := range units {
			g.Go(func() error {
				tl := d.deps.Tasks.MakeTaskList(u, stage)
				st, err := tasks.RunToCompletion(stageCtx, tl, d.cfg.MaxPasses)
				statuses[i] = st
				if err != nil {
					return fmt.Errorf("unit %d: %w", u.ID(), err)
				}
				return nil
			})
		}
		err := g.Wait()
		d.cfg.Space.Fence()
		if err == nil && tasks.Combine(statuses...) != tasks.Complete {
			for i, st := range statuses {
				if st != tasks.Complete {
					err = fmt.Errorf("unit %d: task list %s", units[i].ID(), st)
					break
				}
			}
		}

		stageDuration.WithLabelValues(d.cfg.Integrator.Name(), strconv.Itoa(stage)).
			Observe(time.Since(stageStart).Seconds())

		if err != nil {
			return 0, fmt.Errorf("cycle %d stage %s: %w", d.cycle+1, integrator.StageName(stage), err)
		}
	}
	return len(units), nil
}
