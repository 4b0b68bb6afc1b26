package outputs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AndrewGaspar/parthenon/internal/model"
)

// History formats.
const (
	FormatJSONL = "jsonl"
	FormatYAML  = "yaml"
)

type encoder interface {
	Encode(v any) error
}

// History appends one record per output interval of simulation time. With a
// non-positive interval every cycle is recorded.
type History struct {
	dt     float64
	next   float64
	enc    encoder
	yenc   *yaml.Encoder
	closer io.Closer
}

// NewHistory writes records to w in the given format.
func NewHistory(w io.Writer, format string, dt float64) (*History, error) {
	h := &History{dt: dt}
	switch strings.ToLower(format) {
	case "", FormatJSONL:
		h.enc = json.NewEncoder(w)
	case FormatYAML:
		h.yenc = yaml.NewEncoder(w)
		h.yenc.SetIndent(2)
		h.enc = h.yenc
	default:
		return nil, fmt.Errorf("unknown history format %q", format)
	}
	return h, nil
}

// OpenHistory creates or appends to the history file at path.
func OpenHistory(path, format string, dt float64) (*History, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", exhausted(err))
	}
	h, err := NewHistory(f, format, dt)
	if err != nil {
		f.Close()
		return nil, err
	}
	h.closer = f
	return h, nil
}

// MakeOutputs records snap if the simulation time reached the next output time.
func (h *History) MakeOutputs(_ context.Context, snap model.Snapshot) error {
	if h.dt > 0 && snap.Time < h.next {
		return nil
	}
	if err := h.enc.Encode(snap); err != nil {
		return fmt.Errorf("write history record for cycle %d: %w", snap.Cycle, exhausted(err))
	}
	if h.dt > 0 {
		h.next = (math.Floor(snap.Time/h.dt) + 1) * h.dt
		// Below float resolution at snap.Time the interval collapses to
		// recording every cycle.
		if h.next <= snap.Time {
			h.next = math.Nextafter(snap.Time, math.Inf(1))
		}
	}
	return nil
}

// Close flushes pending YAML output and closes the file opened by OpenHistory.
func (h *History) Close() error {
	if h.yenc != nil {
		if err := h.yenc.Close(); err != nil {
			return fmt.Errorf("flush history: %w", exhausted(err))
		}
	}
	if h.closer != nil {
		return h.closer.Close()
	}
	return nil
}

var _ Writer = (*History)(nil)
