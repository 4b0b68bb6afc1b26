// Package integrator describes multi-stage time-integration schemes as an
// immutable table of per-stage blending weights.
package integrator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalid is returned when an integrator table is malformed.
var ErrInvalid = errors.New("invalid integrator")

// Integrator holds the stage count and blending weight of each stage.
// It is immutable once constructed.
type Integrator struct {
	name   string
	weight []float64
}

// Named scheme constructors keyed by configuration name.
var schemes = map[string][]float64{
	"rk1": {1.0},
	"rk2": {1.0, 0.5},
	"vl2": {0.5, 1.0},
	"rk3": {1.0, 0.25, 2.0 / 3.0},
}

// New validates weights and returns an integrator with len(weights) stages.
func New(name string, weights []float64) (*Integrator, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w %q: at least one stage is required", ErrInvalid, name)
	}
	for i, w := range weights {
		if math.IsNaN(w) || w < 0 || w > 1 {
			return nil, fmt.Errorf("%w %q: stage %d weight %v outside [0, 1]", ErrInvalid, name, i+1, w)
		}
	}
	return &Integrator{
		name:   name,
		weight: append([]float64(nil), weights...),
	}, nil
}

// Named returns one of the built-in schemes: rk1, rk2, vl2 or rk3.
func Named(name string) (*Integrator, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	weights, ok := schemes[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown scheme %q", ErrInvalid, name)
	}
	return New(key, weights)
}

// Name is the scheme name.
func (in *Integrator) Name() string { return in.name }

// Stages is the number of stages per cycle.
func (in *Integrator) Stages() int { return len(in.weight) }

// Weight returns the blending weight of stage, numbered from 1.
func (in *Integrator) Weight(stage int) float64 {
	return in.weight[stage-1]
}

// Weights returns a copy of all stage weights.
func (in *Integrator) Weights() []float64 {
	return append([]float64(nil), in.weight...)
}

// StageName labels a stage for logs and task names. Stage 0 is the base state.
func StageName(stage int) string {
	if stage == 0 {
		return "base"
	}
	return strconv.Itoa(stage)
}
