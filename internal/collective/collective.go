// Package collective provides the blocking group reduction the termination
// coordinator uses to agree on a stop decision across processes.
package collective

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by operations on a closed group.
	ErrClosed = errors.New("collective group closed")
	// ErrMismatch is returned when members contribute arrays of different lengths.
	ErrMismatch = errors.New("collective contribution length mismatch")
)

// Group is a fixed set of cooperating processes. Membership never changes.
type Group interface {
	// Rank is this member's index in [0, Size).
	Rank() int

	// Size is the number of members.
	Size() int

	// AllReduceMax replaces vals in place with the element-wise maximum over
	// every member's vals. It blocks until all members have contributed.
	AllReduceMax(ctx context.Context, vals []int32) error
}

// Single is the group of one process. Its reduction is the identity.
type Single struct{}

func (Single) Rank() int { return 0 }

func (Single) Size() int { return 1 }

func (Single) AllReduceMax(ctx context.Context, _ []int32) error {
	return ctx.Err()
}

func maxInto(dst, src []int32) {
	for i := range dst {
		if src[i] > dst[i] {
			dst[i] = src[i]
		}
	}
}
