package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AndrewGaspar/parthenon/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestRun() *model.Run {
	return &model.Run{
		ID:         model.NewID(),
		Status:     model.StateRunning,
		Integrator: "rk2",
		Pattern:    model.PatternMDRange,
		Space:      model.SpaceHost,
		Ranks:      1,
		TimeLimit:  1.0,
		CycleLimit: -1,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRun()

	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}

	if got.ID != r.ID {
		t.Errorf("ID = %q, want %q", got.ID, r.ID)
	}
	if got.Status != r.Status {
		t.Errorf("Status = %q, want %q", got.Status, r.Status)
	}
	if got.Integrator != r.Integrator {
		t.Errorf("Integrator = %q, want %q", got.Integrator, r.Integrator)
	}
	if got.Pattern != r.Pattern {
		t.Errorf("Pattern = %q, want %q", got.Pattern, r.Pattern)
	}
	if got.CycleLimit != -1 {
		t.Errorf("CycleLimit = %d, want -1", got.CycleLimit)
	}
	if got.FinishedAt != nil {
		t.Errorf("FinishedAt = %v, want nil", got.FinishedAt)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun error = %v, want ErrNotFound", err)
	}
}

func TestListRunsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := range 5 {
		r := makeTestRun()
		r.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	tests := []struct {
		limit, offset int
		wantLen       int
	}{
		{limit: 2, offset: 0, wantLen: 2},
		{limit: 2, offset: 4, wantLen: 1},
		{limit: 10, offset: 0, wantLen: 5},
		{limit: 10, offset: 10, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit=%d,offset=%d", tt.limit, tt.offset), func(t *testing.T) {
			runs, total, err := s.ListRuns(ctx, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			if total != 5 {
				t.Errorf("total = %d, want 5", total)
			}
			if len(runs) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(runs), tt.wantLen)
			}
		})
	}
}

func TestListRunsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	var ids []string
	for i := range 3 {
		r := makeTestRun()
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		ids = append(ids, r.ID)
	}

	runs, _, err := s.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len = %d, want 3", len(runs))
	}
	if runs[0].ID != ids[2] || runs[2].ID != ids[0] {
		t.Errorf("order = [%s %s %s], want newest first", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestUpdateRunStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRun()
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	if err := s.UpdateRunStatus(ctx, r.ID, model.StateOutputPending); err != nil {
		t.Fatalf("UpdateRunStatus output_pending: %v", err)
	}
	got, _ := s.GetRun(ctx, r.ID)
	if got.Status != model.StateOutputPending {
		t.Errorf("Status = %q, want %q", got.Status, model.StateOutputPending)
	}
	if got.FinishedAt != nil {
		t.Error("FinishedAt set for non-terminal status")
	}

	if err := s.UpdateRunStatus(ctx, r.ID, model.StateFailed); err != nil {
		t.Fatalf("UpdateRunStatus failed: %v", err)
	}
	got, _ = s.GetRun(ctx, r.ID)
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set for terminal status")
	}
}

func TestUpdateRunStatusInvalidTransition(t *testing.T) {
	tests := []struct {
		name string
		path []string
		to   string
	}{
		{"output_pending to complete", []string{model.StateOutputPending}, model.StateComplete},
		{"output_pending to terminating", []string{model.StateOutputPending}, model.StateTerminating},
		{"complete is terminal", []string{model.StateComplete}, model.StateRunning},
		{"failed is terminal", []string{model.StateFailed}, model.StateRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			r := makeTestRun()
			if err := s.CreateRun(ctx, r); err != nil {
				t.Fatalf("CreateRun: %v", err)
			}
			for _, st := range tt.path {
				if err := s.UpdateRunStatus(ctx, r.ID, st); err != nil {
					t.Fatalf("UpdateRunStatus %s: %v", st, err)
				}
			}
			err := s.UpdateRunStatus(ctx, r.ID, tt.to)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestUpdateRunStatusNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateRunStatus(context.Background(), "nonexistent", model.StateFailed)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestFinishRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRun()
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	r.Status = model.StateTerminating
	r.Cycles = 12
	r.FinalTime = 0.6
	r.BlockCycles = 96
	r.Signal = "interrupt signal"
	if err := s.FinishRun(ctx, r); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if r.FinishedAt == nil {
		t.Error("FinishRun did not set FinishedAt")
	}

	got, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.StateTerminating {
		t.Errorf("Status = %q, want %q", got.Status, model.StateTerminating)
	}
	if got.Cycles != 12 || got.BlockCycles != 96 {
		t.Errorf("Cycles, BlockCycles = %d, %d, want 12, 96", got.Cycles, got.BlockCycles)
	}
	if got.FinalTime != 0.6 {
		t.Errorf("FinalTime = %v, want 0.6", got.FinalTime)
	}
	if got.Signal != "interrupt signal" {
		t.Errorf("Signal = %q", got.Signal)
	}

	// A finished run cannot be finished again.
	r.Status = model.StateComplete
	if err := s.FinishRun(ctx, r); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second FinishRun error = %v, want ErrInvalidTransition", err)
	}
}

func TestFinishRunRequiresTerminalStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRun()
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	r.Status = model.StateOutputPending
	if err := s.FinishRun(ctx, r); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestInsertAndListCycles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRun()
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	for i := 3; i >= 1; i-- {
		c := &model.Cycle{RunID: r.ID, Cycle: i, Time: 0.1 * float64(i), Dt: 0.1, Units: 8, DurationMS: 5, CreatedAt: now}
		if err := s.InsertCycle(ctx, c); err != nil {
			t.Fatalf("InsertCycle %d: %v", i, err)
		}
	}

	cycles, err := s.ListCycles(ctx, r.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListCycles: %v", err)
	}
	if len(cycles) != 3 {
		t.Fatalf("len = %d, want 3", len(cycles))
	}
	for i, c := range cycles {
		if c.Cycle != i+1 {
			t.Errorf("cycles[%d].Cycle = %d, want %d", i, c.Cycle, i+1)
		}
		if c.Units != 8 {
			t.Errorf("cycles[%d].Units = %d, want 8", i, c.Units)
		}
	}

	page, err := s.ListCycles(ctx, r.ID, 1, 1)
	if err != nil {
		t.Fatalf("ListCycles page: %v", err)
	}
	if len(page) != 1 || page[0].Cycle != 2 {
		t.Errorf("page = %+v, want cycle 2", page)
	}

	// Duplicate cycle numbers are rejected.
	dup := &model.Cycle{RunID: r.ID, Cycle: 1, CreatedAt: now}
	if err := s.InsertCycle(ctx, dup); err == nil {
		t.Error("InsertCycle duplicate: expected error")
	}
}

func TestListCyclesEmpty(t *testing.T) {
	s := newTestStore(t)

	cycles, err := s.ListCycles(context.Background(), "nonexistent", 10, 0)
	if err != nil {
		t.Fatalf("ListCycles: %v", err)
	}
	if len(cycles) != 0 {
		t.Errorf("len = %d, want 0", len(cycles))
	}
}

func TestGetRunStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := range 3 {
		r := makeTestRun()
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		if i < 2 {
			r.Status = model.StateComplete
			r.Cycles = 10 * (i + 1) // 10, 20
			r.BlockCycles = int64(r.Cycles) * 4
			if err := s.FinishRun(ctx, r); err != nil {
				t.Fatalf("FinishRun: %v", err)
			}
		}
	}

	r := makeTestRun()
	r.Space = model.SpaceDevice
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun (device): %v", err)
	}

	stats, err := s.GetRunStats(ctx)
	if err != nil {
		t.Fatalf("GetRunStats: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.CountByStatus[model.StateComplete] != 2 {
		t.Errorf("complete count = %d, want 2", stats.CountByStatus[model.StateComplete])
	}
	if stats.CountByStatus[model.StateRunning] != 2 {
		t.Errorf("running count = %d, want 2", stats.CountByStatus[model.StateRunning])
	}
	if stats.CountBySpace[model.SpaceHost] != 3 {
		t.Errorf("host count = %d, want 3", stats.CountBySpace[model.SpaceHost])
	}
	if stats.CountBySpace[model.SpaceDevice] != 1 {
		t.Errorf("device count = %d, want 1", stats.CountBySpace[model.SpaceDevice])
	}
	if stats.AvgCycles != 7.5 {
		t.Errorf("AvgCycles = %v, want 7.5", stats.AvgCycles)
	}
	if stats.TotalBlockCycles != 120 {
		t.Errorf("TotalBlockCycles = %d, want 120", stats.TotalBlockCycles)
	}
}

func TestGetRunStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetRunStats(context.Background())
	if err != nil {
		t.Fatalf("GetRunStats: %v", err)
	}
	if stats.Total != 0 || stats.AvgCycles != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}
