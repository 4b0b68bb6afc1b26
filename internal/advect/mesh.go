// Package advect is a linear scalar advection problem on a uniform block
// decomposition. It gives the driver real work: each block is advanced with a
// first-order upwind scheme dispatched through the configured loop pattern and
// execution space, and stages are blended with the integrator weights.
//
// Blocks are periodic on themselves; exchanging ghost zones between blocks is
// not part of this package.
package advect

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/AndrewGaspar/parthenon/internal/driver"
)

// ErrInvalidParams is returned by NewMesh for an unusable problem setup.
var ErrInvalidParams = errors.New("invalid advection parameters")

// Params describes the global grid and the flow.
type Params struct {
	NX, NY, NZ                int // global cells per dimension
	BlockNX, BlockNY, BlockNZ int // cells per block per dimension
	Velocity                  [3]float64
	CFL                       float64
}

// DefaultParams returns a 64x64x1 grid split into 16x16x1 blocks with a
// diagonal flow.
func DefaultParams() Params {
	return Params{
		NX: 64, NY: 64, NZ: 1,
		BlockNX: 16, BlockNY: 16, BlockNZ: 1,
		Velocity: [3]float64{1, 0.5, 0},
		CFL:      0.4,
	}
}

func (p Params) validate() error {
	dims := [][2]int{{p.NX, p.BlockNX}, {p.NY, p.BlockNY}, {p.NZ, p.BlockNZ}}
	for d, nb := range dims {
		if nb[0] < 1 || nb[1] < 1 {
			return fmt.Errorf("%w: dimension %d needs positive sizes, got %d cells in blocks of %d", ErrInvalidParams, d, nb[0], nb[1])
		}
		if nb[0]%nb[1] != 0 {
			return fmt.Errorf("%w: dimension %d: %d cells do not divide into blocks of %d", ErrInvalidParams, d, nb[0], nb[1])
		}
	}
	if !(p.CFL > 0 && p.CFL <= 1) {
		return fmt.Errorf("%w: cfl must be in (0, 1], got %v", ErrInvalidParams, p.CFL)
	}
	for _, v := range p.Velocity {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: velocity must be finite", ErrInvalidParams)
		}
	}
	if p.Velocity == [3]float64{} {
		return fmt.Errorf("%w: velocity must be non-zero", ErrInvalidParams)
	}
	return nil
}

// Mesh holds the blocks owned by one rank.
type Mesh struct {
	params Params
	dx     [3]float64
	blocks []*Block
	total  int
}

// NewMesh builds the unit cube grid described by p and keeps the blocks whose
// ID modulo size equals rank. Each block starts with a Gaussian pulse centred
// in the domain.
func NewMesh(p Params, rank, size int) (*Mesh, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if size < 1 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: rank %d out of range for %d ranks", ErrInvalidParams, rank, size)
	}

	m := &Mesh{
		params: p,
		dx:     [3]float64{1 / float64(p.NX), 1 / float64(p.NY), 1 / float64(p.NZ)},
	}
	nbx, nby, nbz := p.NX/p.BlockNX, p.NY/p.BlockNY, p.NZ/p.BlockNZ
	m.total = nbx * nby * nbz

	id := 0
	for bk := range nbz {
		for bj := range nby {
			for bi := range nbx {
				if id%size == rank {
					b := newBlock(id, p.BlockNX, p.BlockNY, p.BlockNZ, [3]int{bi * p.BlockNX, bj * p.BlockNY, bk * p.BlockNZ})
					b.initialize(m.dx)
					m.blocks = append(m.blocks, b)
				}
				id++
			}
		}
	}
	return m, nil
}

// Blocks returns the local blocks.
func (m *Mesh) Blocks() []*Block { return m.blocks }

// TotalBlocks is the number of blocks across all ranks.
func (m *Mesh) TotalBlocks() int { return m.total }

// Units returns the local blocks as driver units.
func (m *Mesh) Units() []driver.Unit {
	units := make([]driver.Unit, len(m.blocks))
	for i, b := range m.blocks {
		units[i] = b
	}
	return units
}

// Rebalance keeps the decomposition fixed.
func (m *Mesh) Rebalance(context.Context) error { return nil }

// Rebalanced reports whether the last Rebalance changed the blocks. It never does.
func (m *Mesh) Rebalanced() bool { return false }

// Timestep is the CFL-limited timestep of the uniform flow.
func (m *Mesh) Timestep() float64 {
	dt := math.Inf(1)
	for d, v := range m.params.Velocity {
		if v != 0 {
			dt = min(dt, m.dx[d]/math.Abs(v))
		}
	}
	return m.params.CFL * dt
}

// NewTimestep returns Timestep; the flow is uniform so every rank agrees.
func (m *Mesh) NewTimestep(context.Context) (float64, error) {
	return m.Timestep(), nil
}

// Mass returns the integral of the scalar over the local blocks.
func (m *Mesh) Mass() float64 {
	vol := m.dx[0] * m.dx[1] * m.dx[2]
	sum := 0.0
	for _, b := range m.blocks {
		sum += b.sum() * vol
	}
	return sum
}

var (
	_ driver.Mesh              = (*Mesh)(nil)
	_ driver.RebalanceReporter = (*Mesh)(nil)
)
