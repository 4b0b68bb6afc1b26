package tasks

import (
	"context"
	"fmt"
)

// TaskStatus is the outcome of one task invocation.
type TaskStatus int

const (
	// TaskComplete marks the task done; dependents may run.
	TaskComplete TaskStatus = iota
	// TaskIncomplete asks for the task to be retried on the next pass.
	TaskIncomplete
	// TaskFail aborts the whole list.
	TaskFail
)

// ID identifies a task within its list.
type ID int

// Func is the body of a task.
type Func func(ctx context.Context) TaskStatus

type task struct {
	name string
	fn   Func
	deps []ID
	done bool
}

// List is an ordered set of named tasks with dependencies. A pass visits tasks
// in insertion order and runs each one whose dependencies have completed, so a
// task finishing early in a pass can unblock a later task in the same pass.
type List struct {
	name      string
	tasks     []*task
	remaining int
	aborted   bool
	failed    string
}

// NewList creates an empty task list.
func NewList(name string) *List {
	return &List{name: name}
}

// Add appends a task that runs after deps complete and returns its ID.
// Dependencies must be IDs previously returned by the same list.
func (l *List) Add(name string, fn Func, deps ...ID) ID {
	for _, d := range deps {
		if d < 0 || int(d) >= len(l.tasks) {
			panic(fmt.Sprintf("task list %q: task %q depends on unknown task %d", l.name, name, d))
		}
	}
	l.tasks = append(l.tasks, &task{name: name, fn: fn, deps: append([]ID(nil), deps...)})
	l.remaining++
	return ID(len(l.tasks) - 1)
}

// Name returns the list name.
func (l *List) Name() string { return l.name }

// Len returns the number of tasks.
func (l *List) Len() int { return len(l.tasks) }

// Remaining returns the number of tasks that have not completed.
func (l *List) Remaining() int { return l.remaining }

// Failed returns the name of the task that aborted the list, if any.
func (l *List) Failed() string { return l.failed }

// Drive runs one pass over the list.
func (l *List) Drive(ctx context.Context) Status {
	if l.aborted {
		return Aborted
	}
	for _, t := range l.tasks {
		if t.done || !l.ready(t) {
			continue
		}
		switch t.fn(ctx) {
		case TaskComplete:
			t.done = true
			l.remaining--
		case TaskFail:
			l.aborted = true
			l.failed = t.name
			return Aborted
		}
	}
	if l.remaining == 0 {
		return Complete
	}
	return Incomplete
}

func (l *List) ready(t *task) bool {
	for _, d := range t.deps {
		if !l.tasks[d].done {
			return false
		}
	}
	return true
}
