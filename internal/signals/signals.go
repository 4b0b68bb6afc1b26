// Package signals records termination requests (terminate, interrupt, and the
// wall-time alarm) and agrees on them across the process group so every rank
// stops at the same cycle boundary.
package signals

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/AndrewGaspar/parthenon/internal/collective"
)

const (
	slotTerminate = iota
	slotInterrupt
	slotAlarm
	numSlots
)

// Handled lists the signals the handler records, in report priority order.
var Handled = []os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGALRM}

var reasons = [numSlots]string{
	slotTerminate: "terminate signal",
	slotInterrupt: "interrupt signal",
	slotAlarm:     "wall-time limit",
}

func slotOf(sig os.Signal) int {
	switch sig {
	case syscall.SIGTERM:
		return slotTerminate
	case syscall.SIGINT:
		return slotInterrupt
	case syscall.SIGALRM:
		return slotAlarm
	default:
		return -1
	}
}

// Handler owns the signal state of one rank. Deliveries are applied under a
// lock that CheckAndSynchronize holds for the whole reduction, so a signal that
// arrives mid-reduction is recorded afterwards and seen at the next check.
type Handler struct {
	group  collective.Group
	logger *slog.Logger

	mu    sync.Mutex
	state [numSlots]int32

	alarmMu sync.Mutex
	alarm   *time.Timer

	ch   chan os.Signal
	done chan struct{}
	wg   sync.WaitGroup
}

// New returns a handler that synchronizes over group. It does not subscribe to
// process signals until Install is called.
func New(group collective.Group, logger *slog.Logger) *Handler {
	if group == nil {
		group = collective.Single{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{group: group, logger: logger}
}

// Install zeroes the flags and starts recording process signals.
func (h *Handler) Install() {
	h.mu.Lock()
	h.state = [numSlots]int32{}
	h.mu.Unlock()

	if h.ch != nil {
		return
	}
	h.ch = make(chan os.Signal, 8)
	h.done = make(chan struct{})
	signal.Notify(h.ch, Handled...)

	h.wg.Go(func() {
		for {
			select {
			case sig := <-h.ch:
				h.Raise(sig)
			case <-h.done:
				return
			}
		}
	})
}

// Stop unsubscribes from process signals and cancels any pending alarm. The
// recorded flags are kept.
func (h *Handler) Stop() {
	h.CancelWallTimeAlarm()
	if h.ch == nil {
		return
	}
	signal.Stop(h.ch)
	close(h.done)
	h.wg.Wait()
	h.ch = nil
}

// Raise records sig as if it had been delivered to the process. Signals the
// handler does not track are ignored.
func (h *Handler) Raise(sig os.Signal) {
	slot := slotOf(sig)
	if slot < 0 {
		return
	}
	h.mu.Lock()
	h.state[slot] = 1
	h.mu.Unlock()
	h.logger.Info("signal received", "signal", sig.String(), "rank", h.group.Rank())
}

// CheckAndSynchronize replaces the local flags with their maximum over the
// group and returns the sum of the synchronized flags. A non-zero result means
// some rank asked to stop.
func (h *Handler) CheckAndSynchronize(ctx context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	vals := h.state
	if h.group.Size() > 1 {
		if err := h.group.AllReduceMax(ctx, vals[:]); err != nil {
			return 0, fmt.Errorf("synchronize signal flags: %w", err)
		}
	}
	h.state = vals

	sum := 0
	for _, v := range h.state {
		sum += int(v)
	}
	return sum, nil
}

// Flag returns the flag for sig as of the last synchronization, or -1 if sig
// is not a handled signal.
func (h *Handler) Flag(sig os.Signal) int {
	slot := slotOf(sig)
	if slot < 0 {
		return -1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return int(h.state[slot])
}

// SetWallTimeAlarm arranges for SIGALRM to be recorded after d. A previously
// armed alarm is replaced. A non-positive d cancels the alarm.
func (h *Handler) SetWallTimeAlarm(d time.Duration) {
	h.alarmMu.Lock()
	defer h.alarmMu.Unlock()

	if h.alarm != nil {
		h.alarm.Stop()
		h.alarm = nil
	}
	if d <= 0 {
		return
	}
	h.alarm = time.AfterFunc(d, func() { h.Raise(syscall.SIGALRM) })
}

// CancelWallTimeAlarm disarms the wall-time alarm.
func (h *Handler) CancelWallTimeAlarm() {
	h.SetWallTimeAlarm(0)
}

// Report names the signal that stopped the run, checking terminate, then
// interrupt, then the wall-time alarm. It returns "" when no flag is set.
func (h *Handler) Report() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	for slot, v := range h.state {
		if v != 0 {
			return reasons[slot]
		}
	}
	return ""
}
