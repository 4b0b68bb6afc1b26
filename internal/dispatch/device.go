package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/AndrewGaspar/parthenon/internal/model"
)

// Default device geometry.
const (
	DefaultMultiprocessors = 4
	DefaultTeamSize        = 8
	DefaultVectorLength    = 32
)

// Device models an accelerator with a league/team/vector hierarchy. Teams are
// scheduled onto a fixed number of multiprocessors; each team owns TeamSize
// threads that share its ThreadRange work; vector lanes run in lockstep inside
// a thread.
//
// Like the GPU back ends it stands in for, Device does not run PatternTPTVR or
// PatternSIMDFor.
type Device struct {
	multiprocessors int
	teamSize        int
	vectorLength    int
}

// NewDevice creates a device space. Non-positive arguments take the defaults.
func NewDevice(multiprocessors, teamSize int) *Device {
	if multiprocessors <= 0 {
		multiprocessors = DefaultMultiprocessors
	}
	if teamSize <= 0 {
		teamSize = DefaultTeamSize
	}
	return &Device{
		multiprocessors: multiprocessors,
		teamSize:        teamSize,
		vectorLength:    DefaultVectorLength,
	}
}

func (d *Device) Name() string { return model.SpaceDevice }

func (d *Device) Capabilities() Capabilities {
	return Capabilities{
		Name:         model.SpaceDevice,
		Concurrency:  d.multiprocessors * d.teamSize,
		TeamSize:     d.teamSize,
		VectorLength: d.vectorLength,
		Patterns:     patternList(PatternRange, PatternMDRange, PatternTPTTRTVR, PatternTPTTR),
	}
}

func (d *Device) Parallel(n int, body func(lo, hi int)) {
	parallelChunks(n, d.multiprocessors*d.teamSize, body)
}

func (d *Device) Teams(league int, body func(t Team)) {
	if league <= 0 {
		return
	}
	var next atomic.Int64
	var wg sync.WaitGroup
	for range min(d.multiprocessors, league) {
		wg.Go(func() {
			for {
				rank := int(next.Add(1) - 1)
				if rank >= league {
					return
				}
				body(&deviceTeam{rank: rank, size: d.teamSize})
			}
		})
	}
	wg.Wait()
}

func (d *Device) Fence() {}

type deviceTeam struct {
	rank int
	size int
}

func (t *deviceTeam) LeagueRank() int { return t.rank }

// ThreadRange strides [0, n) across the team's threads.
func (t *deviceTeam) ThreadRange(n int, fn func(x int)) {
	threads := min(t.size, n)
	if threads <= 1 {
		for x := 0; x < n; x++ {
			fn(x)
		}
		return
	}
	var wg sync.WaitGroup
	for tid := range threads {
		wg.Go(func() {
			for x := tid; x < n; x += threads {
				fn(x)
			}
		})
	}
	wg.Wait()
}

func (t *deviceTeam) VectorRange(n int, fn func(x int)) {
	for x := 0; x < n; x++ {
		fn(x)
	}
}
