package advect

import "math"

// ghost is the ghost-zone width on each face.
const ghost = 1

// Block is one partition unit: a box of cells with one ghost layer per face.
type Block struct {
	id         int
	nx, ny, nz int
	offset     [3]int // global index of the first interior cell

	u  []float64 // current state
	u0 []float64 // state at the start of the cycle
	du []float64 // flux divergence of the current stage
}

func newBlock(id, nx, ny, nz int, offset [3]int) *Block {
	n := (nx + 2*ghost) * (ny + 2*ghost) * (nz + 2*ghost)
	return &Block{
		id: id, nx: nx, ny: ny, nz: nz,
		offset: offset,
		u:      make([]float64, n),
		u0:     make([]float64, n),
		du:     make([]float64, n),
	}
}

// ID identifies the block across all ranks.
func (b *Block) ID() int { return b.id }

// idx maps a (k, j, i) index including ghosts to the flat offset.
func (b *Block) idx(k, j, i int) int {
	return (k*(b.ny+2*ghost)+j)*(b.nx+2*ghost) + i
}

// At returns the interior cell value at zero-based (k, j, i).
func (b *Block) At(k, j, i int) float64 {
	return b.u[b.idx(k+ghost, j+ghost, i+ghost)]
}

func (b *Block) initialize(dx [3]float64) {
	for k := range b.nz {
		for j := range b.ny {
			for i := range b.nx {
				x := (float64(b.offset[0]+i) + 0.5) * dx[0]
				y := (float64(b.offset[1]+j) + 0.5) * dx[1]
				r2 := (x-0.5)*(x-0.5) + (y-0.5)*(y-0.5)
				b.u[b.idx(k+ghost, j+ghost, i+ghost)] = 1 + math.Exp(-r2/0.01)
			}
		}
	}
}

func (b *Block) sum() float64 {
	s := 0.0
	for k := range b.nz {
		for j := range b.ny {
			for i := range b.nx {
				s += b.At(k, j, i)
			}
		}
	}
	return s
}
