package driver

import (
	"log/slog"

	"golang.org/x/time/rate"
)

// LogDiagnostics logs the cycle, time and timestep every n cycles.
type LogDiagnostics struct {
	logger    *slog.Logger
	sometimes rate.Sometimes
}

// NewLogDiagnostics logs on the first cycle and then every n cycles. A
// non-positive n logs every cycle.
func NewLogDiagnostics(logger *slog.Logger, n int) *LogDiagnostics {
	if n < 1 {
		n = 1
	}
	return &LogDiagnostics{logger: logger, sometimes: rate.Sometimes{Every: n}}
}

func (l *LogDiagnostics) CycleDiagnostics(snap Snapshot) {
	l.sometimes.Do(func() {
		l.logger.Info("cycle",
			"cycle", snap.Cycle,
			"time", snap.Time,
			"dt", snap.Dt,
			"units", snap.Units,
		)
	})
}

var _ Diagnostics = (*LogDiagnostics)(nil)
