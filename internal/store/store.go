package store

import (
	"context"
	"errors"

	"github.com/AndrewGaspar/parthenon/internal/model"
)

// ErrInvalidTransition is returned when a run status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// RunStats holds aggregate statistics over all recorded runs.
type RunStats struct {
	Total            int            `json:"total"`
	CountByStatus    map[string]int `json:"count_by_status"`
	CountBySpace     map[string]int `json:"count_by_space"`
	AvgCycles        float64        `json:"avg_cycles"`
	TotalBlockCycles int64          `json:"total_block_cycles"`
}

// Store defines the persistence operations for runs and their cycles.
type Store interface {
	CreateRun(ctx context.Context, r *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error)
	UpdateRunStatus(ctx context.Context, id, status string) error
	FinishRun(ctx context.Context, r *model.Run) error
	GetRunStats(ctx context.Context) (*RunStats, error)
	InsertCycle(ctx context.Context, c *model.Cycle) error
	ListCycles(ctx context.Context, runID string, limit, offset int) ([]model.Cycle, error)
	Close() error
}
