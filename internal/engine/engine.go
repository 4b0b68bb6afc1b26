package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AndrewGaspar/parthenon/internal/driver"
	"github.com/AndrewGaspar/parthenon/internal/model"
	"github.com/AndrewGaspar/parthenon/internal/store"
)

// Hooks carry driver progress back to the engine.
type Hooks struct {
	OnCycle func(model.Snapshot)
	OnState func(from, to string)
}

// Job builds the driver for run. The driver must report progress through
// hooks, typically by passing them as driver.Deps.OnCycle and OnState.
type Job func(run *model.Run, hooks Hooks) (*driver.Driver, error)

// Engine executes runs and records them.
type Engine struct {
	store  store.Store
	logger *slog.Logger
	broker *EventBroker
}

// NewEngine creates a new engine. s may be nil, in which case runs are not
// persisted; ranks other than 0 of a process group run that way.
func NewEngine(s store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  s,
		logger: logger,
		broker: NewEventBroker(),
	}
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Execute records run as running, executes the driver built by job, and
// stores the outcome. It blocks until the driver reaches a terminal state.
func (e *Engine) Execute(ctx context.Context, run *model.Run, job Job) driver.Result {
	if run.ID == "" {
		run.ID = model.NewID()
	}
	// Close the event stream when execution finishes, regardless of outcome.
	defer e.broker.Close(run.ID)

	run.Status = model.StateRunning
	run.CreatedAt = time.Now().UTC()
	if e.store != nil {
		if err := e.store.CreateRun(ctx, run); err != nil {
			e.logger.Error("failed to create run", "run_id", run.ID, "error", err)
			return driver.Result{State: model.StateFailed, Err: fmt.Errorf("create run: %w", err)}
		}
	}

	d, err := job(run, Hooks{
		OnCycle: func(s model.Snapshot) { e.broker.Publish(run.ID, s) },
		OnState: func(_, to string) { e.recordState(ctx, run, to) },
	})
	if err != nil {
		res := driver.Result{State: model.StateFailed, Err: fmt.Errorf("build driver: %w", err)}
		e.finish(ctx, run, res)
		return res
	}

	res := d.Execute(ctx)
	e.finish(ctx, run, res)
	return res
}

// recordState stores an intermediate driver state so monitors can see it.
// Terminal states are left to finish.
func (e *Engine) recordState(ctx context.Context, run *model.Run, state string) {
	if e.store == nil || model.IsTerminal(state) {
		return
	}
	if err := e.store.UpdateRunStatus(context.WithoutCancel(ctx), run.ID, state); err != nil {
		e.logger.Warn("failed to record run state", "run_id", run.ID, "state", state, "error", err)
		return
	}
	run.Status = state
}

// finish stores the terminal state of run.
func (e *Engine) finish(ctx context.Context, run *model.Run, res driver.Result) {
	now := time.Now().UTC()
	run.Status = res.State
	run.Cycles = res.Cycle
	run.FinalTime = res.Time
	run.BlockCycles = res.BlockCycles
	run.Signal = res.Signal
	run.FinishedAt = &now
	if res.Err != nil {
		run.Error = res.Err.Error()
	}

	if e.store == nil {
		return
	}
	if err := e.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Error("failed to record finished run", "run_id", run.ID, "error", err)
	}
}
