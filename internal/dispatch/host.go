package dispatch

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AndrewGaspar/parthenon/internal/model"
)

// chunksPerWorker oversubscribes the pool so uneven chunks still balance.
const chunksPerWorker = 4

// Serial runs all work in the calling goroutine.
type Serial struct{}

// NewSerial returns the serial execution space.
func NewSerial() *Serial { return &Serial{} }

func (*Serial) Name() string { return model.SpaceSerial }

func (*Serial) Capabilities() Capabilities {
	return Capabilities{
		Name:         model.SpaceSerial,
		Concurrency:  1,
		TeamSize:     1,
		VectorLength: 1,
		Patterns:     patternList(Patterns...),
	}
}

func (*Serial) Parallel(n int, body func(lo, hi int)) {
	if n > 0 {
		body(0, n)
	}
}

func (*Serial) Teams(league int, body func(t Team)) {
	for t := 0; t < league; t++ {
		body(serialTeam(t))
	}
}

func (*Serial) Fence() {}

// serialTeam is a one-thread, one-lane team.
type serialTeam int

func (t serialTeam) LeagueRank() int { return int(t) }

func (serialTeam) ThreadRange(n int, fn func(x int)) {
	for x := 0; x < n; x++ {
		fn(x)
	}
}

func (serialTeam) VectorRange(n int, fn func(x int)) {
	for x := 0; x < n; x++ {
		fn(x)
	}
}

// Host is a multi-core host space backed by a bounded pool of goroutines.
// Host teams have a single thread, so team-level ranges run serially inside
// the goroutine that owns the team.
type Host struct {
	workers int
}

// NewHost creates a host space with the given number of workers. A
// non-positive count uses one worker per CPU.
func NewHost(workers int) *Host {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Host{workers: workers}
}

func (h *Host) Name() string { return model.SpaceHost }

func (h *Host) Capabilities() Capabilities {
	return Capabilities{
		Name:         model.SpaceHost,
		Concurrency:  h.workers,
		TeamSize:     1,
		VectorLength: 1,
		Patterns:     patternList(Patterns...),
	}
}

func (h *Host) Parallel(n int, body func(lo, hi int)) {
	parallelChunks(n, h.workers, body)
}

func (h *Host) Teams(league int, body func(t Team)) {
	if league <= 0 {
		return
	}
	if h.workers == 1 || league == 1 {
		for t := 0; t < league; t++ {
			body(serialTeam(t))
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(h.workers)
	for t := 0; t < league; t++ {
		g.Go(func() error {
			body(serialTeam(t))
			return nil
		})
	}
	_ = g.Wait()
}

func (h *Host) Fence() {}

// parallelChunks splits [0, n) into at most workers*chunksPerWorker chunks and
// runs them on at most workers goroutines.
func parallelChunks(n, workers int, body func(lo, hi int)) {
	if n <= 0 {
		return
	}
	chunks := min(n, workers*chunksPerWorker)
	if workers <= 1 || chunks <= 1 {
		body(0, n)
		return
	}
	size := (n + chunks - 1) / chunks

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			body(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
