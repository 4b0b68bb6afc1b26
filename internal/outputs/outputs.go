// Package outputs writes per-cycle run records: a history file, cycle rows in
// the run store, and objects in an S3-compatible bucket. Every failure is
// reported to the driver, which treats it as fatal.
package outputs

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/AndrewGaspar/parthenon/internal/model"
)

// ErrResourceExhausted marks an output failure caused by running out of a
// resource such as disk space or bucket quota.
var ErrResourceExhausted = errors.New("output resources exhausted")

// Writer produces output for one cycle boundary.
type Writer interface {
	MakeOutputs(ctx context.Context, snap model.Snapshot) error
}

// Set runs its writers in order and stops at the first failure.
type Set []Writer

func (s Set) MakeOutputs(ctx context.Context, snap model.Snapshot) error {
	for _, w := range s {
		if err := w.MakeOutputs(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

// exhausted wraps err with ErrResourceExhausted when it reports a full disk or
// an exceeded quota.
func exhausted(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}
	return err
}

var _ Writer = Set(nil)
