// Package tasks holds per-partition-unit task lists and the bookkeeping that
// drives them to a terminal status.
package tasks

import (
	"context"
	"errors"
	"fmt"
)

// ErrStalled is returned when a list is still incomplete after the allowed
// number of drive passes.
var ErrStalled = errors.New("task list did not reach a terminal status")

// Status is the status of a whole task list.
type Status int

const (
	Incomplete Status = iota
	Complete
	Aborted
)

func (s Status) String() string {
	switch s {
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further drive pass can change the status.
func (s Status) Terminal() bool {
	return s == Complete || s == Aborted
}

// Runner is one partition unit's work for one stage. Each Drive call runs
// whatever work is currently available and reports the resulting status.
type Runner interface {
	Drive(ctx context.Context) Status
}

// RunToCompletion drives r until it reports a terminal status. maxPasses
// bounds the number of passes; zero means no bound. A list that exhausts its
// passes is reported as Aborted together with ErrStalled.
func RunToCompletion(ctx context.Context, r Runner, maxPasses int) (Status, error) {
	for pass := 1; ; pass++ {
		st := r.Drive(ctx)
		if st.Terminal() {
			return st, nil
		}
		if maxPasses > 0 && pass >= maxPasses {
			return Aborted, fmt.Errorf("%w after %d passes", ErrStalled, pass)
		}
	}
}

// Combine folds per-unit statuses into one: Aborted if any list aborted,
// Complete only if every list completed, Incomplete otherwise.
func Combine(statuses ...Status) Status {
	out := Complete
	for _, st := range statuses {
		switch st {
		case Aborted:
			return Aborted
		case Incomplete:
			out = Incomplete
		}
	}
	return out
}
