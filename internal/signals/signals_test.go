package signals_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewGaspar/parthenon/internal/collective"
	"github.com/AndrewGaspar/parthenon/internal/signals"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestSingleRankNoSignal(t *testing.T) {
	h := signals.New(collective.Single{}, testLogger())
	h.Install()
	defer h.Stop()

	n, err := h.CheckAndSynchronize(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "", h.Report())
	for _, sig := range signals.Handled {
		assert.Zero(t, h.Flag(sig))
	}
}

func TestFlagUnhandledSignal(t *testing.T) {
	h := signals.New(nil, nil)
	assert.Equal(t, -1, h.Flag(syscall.SIGHUP))
	assert.Equal(t, -1, h.Flag(syscall.SIGUSR1))
}

func TestRaiseIgnoresUnhandled(t *testing.T) {
	h := signals.New(nil, testLogger())
	h.Raise(syscall.SIGHUP)

	n, err := h.CheckAndSynchronize(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInstallZeroesFlags(t *testing.T) {
	h := signals.New(nil, testLogger())
	h.Raise(syscall.SIGTERM)
	assert.Equal(t, 1, h.Flag(syscall.SIGTERM))

	h.Install()
	defer h.Stop()
	assert.Zero(t, h.Flag(syscall.SIGTERM))
}

func TestReportPriority(t *testing.T) {
	tests := []struct {
		name   string
		raised []syscall.Signal
		want   string
	}{
		{"terminate", []syscall.Signal{syscall.SIGTERM}, "terminate signal"},
		{"interrupt", []syscall.Signal{syscall.SIGINT}, "interrupt signal"},
		{"alarm", []syscall.Signal{syscall.SIGALRM}, "wall-time limit"},
		{"terminate wins", []syscall.Signal{syscall.SIGALRM, syscall.SIGINT, syscall.SIGTERM}, "terminate signal"},
		{"interrupt over alarm", []syscall.Signal{syscall.SIGALRM, syscall.SIGINT}, "interrupt signal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := signals.New(nil, testLogger())
			for _, sig := range tt.raised {
				h.Raise(sig)
			}
			n, err := h.CheckAndSynchronize(context.Background())
			require.NoError(t, err)
			assert.Equal(t, len(tt.raised), n)
			assert.Equal(t, tt.want, h.Report())
		})
	}
}

func TestConsensusAcrossGroup(t *testing.T) {
	const size = 4
	members := collective.NewLocal(size)
	handlers := make([]*signals.Handler, size)
	for r, m := range members {
		handlers[r] = signals.New(m, testLogger())
	}

	check := func() []int {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		out := make([]int, size)
		errs := make([]error, size)
		var wg sync.WaitGroup
		for r, h := range handlers {
			wg.Go(func() { out[r], errs[r] = h.CheckAndSynchronize(ctx) })
		}
		wg.Wait()
		for r, err := range errs {
			require.NoError(t, err, "rank %d", r)
		}
		return out
	}

	assert.Equal(t, []int{0, 0, 0, 0}, check())

	handlers[2].Raise(syscall.SIGINT)
	for r, n := range check() {
		assert.Equal(t, 1, n, "rank %d", r)
		assert.Equal(t, 1, handlers[r].Flag(syscall.SIGINT), "rank %d", r)
		assert.Zero(t, handlers[r].Flag(syscall.SIGTERM), "rank %d", r)
		assert.Equal(t, "interrupt signal", handlers[r].Report(), "rank %d", r)
	}

	// Flags stay set once synchronized; a second rank adding another signal
	// raises the sum everywhere.
	handlers[0].Raise(syscall.SIGTERM)
	for r, n := range check() {
		assert.Equal(t, 2, n, "rank %d", r)
		assert.Equal(t, "terminate signal", handlers[r].Report(), "rank %d", r)
	}
}

func TestWallTimeAlarm(t *testing.T) {
	h := signals.New(nil, testLogger())
	h.SetWallTimeAlarm(10 * time.Millisecond)
	defer h.CancelWallTimeAlarm()

	require.Eventually(t, func() bool {
		n, err := h.CheckAndSynchronize(context.Background())
		return err == nil && n == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.Flag(syscall.SIGALRM))
	assert.Equal(t, "wall-time limit", h.Report())
}

func TestCancelWallTimeAlarm(t *testing.T) {
	h := signals.New(nil, testLogger())
	h.SetWallTimeAlarm(20 * time.Millisecond)
	h.CancelWallTimeAlarm()

	time.Sleep(60 * time.Millisecond)
	n, err := h.CheckAndSynchronize(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckAndSynchronizeCollectiveError(t *testing.T) {
	members := collective.NewLocal(2)
	h := signals.New(members[0], testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.CheckAndSynchronize(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
