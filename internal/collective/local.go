package collective

import (
	"context"
	"fmt"
	"sync"
)

// Local is one member of an in-process group. A set of Local members stands in
// for a distributed process group in tests. A member that gives up on a round
// closes the group, as a departed TCP peer does.
type Local struct {
	rank int
	hub  *localHub
}

type localHub struct {
	mu     sync.Mutex
	size   int
	cur    *localRound
	closed error
}

type localRound struct {
	acc     []int32
	arrived int
	err     error
	done    chan struct{}
}

// NewLocal creates size connected members, indexed by rank.
func NewLocal(size int) []*Local {
	if size < 1 {
		size = 1
	}
	hub := &localHub{size: size, cur: &localRound{done: make(chan struct{})}}
	members := make([]*Local, size)
	for r := range members {
		members[r] = &Local{rank: r, hub: hub}
	}
	return members
}

func (l *Local) Rank() int { return l.rank }

func (l *Local) Size() int { return l.hub.size }

func (l *Local) AllReduceMax(ctx context.Context, vals []int32) error {
	h := l.hub
	h.mu.Lock()
	if h.closed != nil {
		h.mu.Unlock()
		return h.closed
	}
	r := h.cur
	switch {
	case r.arrived == 0:
		r.acc = append([]int32(nil), vals...)
	case len(r.acc) != len(vals):
		r.err = fmt.Errorf("%w: rank %d sent %d values, want %d", ErrMismatch, l.rank, len(vals), len(r.acc))
	default:
		maxInto(r.acc, vals)
	}
	r.arrived++
	if r.arrived == h.size {
		h.cur = &localRound{done: make(chan struct{})}
		close(r.done)
	}
	h.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		if l.abandon(r) {
			return ctx.Err()
		}
	}
	if r.err != nil {
		return r.err
	}
	copy(vals, r.acc)
	return nil
}

// abandon fails round r for every member and closes the group. It reports
// false if r completed first.
func (l *Local) abandon(r *localRound) bool {
	h := l.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-r.done:
		return false
	default:
	}
	h.closed = fmt.Errorf("%w: rank %d left the group", ErrClosed, l.rank)
	r.err = h.closed
	close(r.done)
	return true
}
