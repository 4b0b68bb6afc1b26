package driver

import (
	"context"

	"github.com/AndrewGaspar/parthenon/internal/model"
	"github.com/AndrewGaspar/parthenon/internal/tasks"
)

// Snapshot is the driver state passed to outputs and diagnostics.
type Snapshot = model.Snapshot

// Unit is one partition unit (a mesh block) owned by this rank.
type Unit interface {
	ID() int
}

// Mesh is the decomposition the driver evolves.
type Mesh interface {
	// Units returns the units owned by this rank. The driver captures the
	// slice once per stage loop.
	Units() []Unit

	// Rebalance redistributes or refines units after a cycle.
	Rebalance(ctx context.Context) error

	// NewTimestep returns the timestep for the next cycle.
	NewTimestep(ctx context.Context) (float64, error)
}

// RebalanceReporter is implemented by meshes that can tell whether the last
// Rebalance changed the unit set.
type RebalanceReporter interface {
	Rebalanced() bool
}

// TaskListFactory builds the work for one unit in one stage (1-based).
type TaskListFactory interface {
	MakeTaskList(unit Unit, stage int) tasks.Runner
}

// Outputs writes data at a cycle boundary.
type Outputs interface {
	MakeOutputs(ctx context.Context, snap Snapshot) error
}

// Diagnostics is notified at the start of every cycle on rank 0.
type Diagnostics interface {
	CycleDiagnostics(snap Snapshot)
}

// Terminator reports whether any rank asked the group to stop.
type Terminator interface {
	CheckAndSynchronize(ctx context.Context) (int, error)
	Report() string
}

// TaskListFactoryFunc adapts a function to TaskListFactory.
type TaskListFactoryFunc func(unit Unit, stage int) tasks.Runner

func (f TaskListFactoryFunc) MakeTaskList(unit Unit, stage int) tasks.Runner {
	return f(unit, stage)
}
