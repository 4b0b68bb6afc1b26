package outputs

import (
	"context"
	"fmt"
	"time"

	"github.com/AndrewGaspar/parthenon/internal/model"
	"github.com/AndrewGaspar/parthenon/internal/store"
)

// StoreRecorder writes one cycle row per output into the run store.
type StoreRecorder struct {
	store store.Store
	last  time.Time
	now   func() time.Time
}

// NewStoreRecorder records cycles into s. Durations are measured between
// consecutive outputs, starting now.
func NewStoreRecorder(s store.Store) *StoreRecorder {
	r := &StoreRecorder{store: s, now: time.Now}
	r.last = r.now()
	return r
}

func (r *StoreRecorder) MakeOutputs(ctx context.Context, snap model.Snapshot) error {
	now := r.now()
	c := &model.Cycle{
		RunID:      snap.RunID,
		Cycle:      snap.Cycle,
		Time:       snap.Time,
		Dt:         snap.Dt,
		Units:      snap.Units,
		DurationMS: now.Sub(r.last).Milliseconds(),
		CreatedAt:  now.UTC(),
	}
	r.last = now
	if err := r.store.InsertCycle(ctx, c); err != nil {
		return fmt.Errorf("record cycle %d: %w", snap.Cycle, exhausted(err))
	}
	return nil
}

var _ Writer = (*StoreRecorder)(nil)
