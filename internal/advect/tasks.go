package advect

import (
	"context"
	"fmt"

	"github.com/AndrewGaspar/parthenon/internal/dispatch"
	"github.com/AndrewGaspar/parthenon/internal/driver"
	"github.com/AndrewGaspar/parthenon/internal/integrator"
	"github.com/AndrewGaspar/parthenon/internal/tasks"
)

// Tasks builds the per-block stage work of the advection problem.
type Tasks struct {
	mesh    *Mesh
	in      *integrator.Integrator
	pattern dispatch.Pattern
	space   dispatch.Space
}

// NewTasks returns a task list factory that dispatches the cell updates with
// pattern on space.
func NewTasks(m *Mesh, in *integrator.Integrator, pattern dispatch.Pattern, space dispatch.Space) (*Tasks, error) {
	if err := dispatch.Check(pattern, 3, space); err != nil {
		return nil, fmt.Errorf("advect tasks: %w", err)
	}
	return &Tasks{mesh: m, in: in, pattern: pattern, space: space}, nil
}

// MakeTaskList returns the tasks of one stage for one block:
// save the base state (first stage only), fill ghosts, compute the flux
// divergence, then blend and update.
func (t *Tasks) MakeTaskList(unit driver.Unit, stage int) tasks.Runner {
	b := unit.(*Block)
	dt := t.mesh.Timestep()
	w := t.in.Weight(stage)

	l := tasks.NewList(fmt.Sprintf("block-%d/%s", b.id, integrator.StageName(stage)))
	var deps []tasks.ID
	if stage == 1 {
		deps = append(deps, l.Add("save_base", func(context.Context) tasks.TaskStatus {
			copy(b.u0, b.u)
			return tasks.TaskComplete
		}))
	}
	fill := l.Add("fill_ghosts", func(context.Context) tasks.TaskStatus {
		t.fillGhosts(b)
		return tasks.TaskComplete
	}, deps...)
	flux := l.Add("flux_divergence", func(context.Context) tasks.TaskStatus {
		t.fluxDivergence(b)
		return tasks.TaskComplete
	}, fill)
	l.Add("update", func(context.Context) tasks.TaskStatus {
		t.update(b, w, dt)
		return tasks.TaskComplete
	}, flux)
	return l
}

func (t *Tasks) fillGhosts(b *Block) {
	nx, ny, nz := b.nx, b.ny, b.nz
	u := b.u

	// x faces over interior (k, j).
	dispatch.For2("advect::ghosts_x", dispatch.PatternRange, t.space,
		dispatch.Range{Lo: 1, Hi: nz}, dispatch.Range{Lo: 1, Hi: ny},
		func(k, j int) {
			u[b.idx(k, j, 0)] = u[b.idx(k, j, nx)]
			u[b.idx(k, j, nx+1)] = u[b.idx(k, j, 1)]
		})
	// y faces over (k, all i).
	dispatch.For2("advect::ghosts_y", dispatch.PatternRange, t.space,
		dispatch.Range{Lo: 1, Hi: nz}, dispatch.Range{Lo: 0, Hi: nx + 1},
		func(k, i int) {
			u[b.idx(k, 0, i)] = u[b.idx(k, ny, i)]
			u[b.idx(k, ny+1, i)] = u[b.idx(k, 1, i)]
		})
	// z faces over (all j, all i).
	dispatch.For2("advect::ghosts_z", dispatch.PatternRange, t.space,
		dispatch.Range{Lo: 0, Hi: ny + 1}, dispatch.Range{Lo: 0, Hi: nx + 1},
		func(j, i int) {
			u[b.idx(0, j, i)] = u[b.idx(nz, j, i)]
			u[b.idx(nz+1, j, i)] = u[b.idx(1, j, i)]
		})
}

func (t *Tasks) fluxDivergence(b *Block) {
	v := t.mesh.params.Velocity
	dx := t.mesh.dx
	u, du := b.u, b.du
	sx, sy, sz := 1, b.nx+2*ghost, (b.nx+2*ghost)*(b.ny+2*ghost)

	dispatch.For3("advect::flux_divergence", t.pattern, t.space,
		dispatch.Range{Lo: 1, Hi: b.nz}, dispatch.Range{Lo: 1, Hi: b.ny}, dispatch.Range{Lo: 1, Hi: b.nx},
		func(k, j, i int) {
			c := b.idx(k, j, i)
			du[c] = -(upwind(u, c, sx, v[0])/dx[0] +
				upwind(u, c, sy, v[1])/dx[1] +
				upwind(u, c, sz, v[2])/dx[2])
		})
}

// upwind returns v times the one-sided difference of u at c along a stride.
func upwind(u []float64, c, stride int, v float64) float64 {
	switch {
	case v > 0:
		return v * (u[c] - u[c-stride])
	case v < 0:
		return v * (u[c+stride] - u[c])
	default:
		return 0
	}
}

func (t *Tasks) update(b *Block, w, dt float64) {
	u, u0, du := b.u, b.u0, b.du
	dispatch.For3("advect::update", t.pattern, t.space,
		dispatch.Range{Lo: 1, Hi: b.nz}, dispatch.Range{Lo: 1, Hi: b.ny}, dispatch.Range{Lo: 1, Hi: b.nx},
		func(k, j, i int) {
			c := b.idx(k, j, i)
			u[c] = (1-w)*u0[c] + w*(u[c]+dt*du[c])
		})
}

var _ driver.TaskListFactory = (*Tasks)(nil)
