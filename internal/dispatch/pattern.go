package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AndrewGaspar/parthenon/internal/model"
)

// Pattern selects how an iteration space is mapped onto an execution space.
type Pattern int

const (
	// PatternRange flattens all dimensions into a single range.
	PatternRange Pattern = iota
	// PatternMDRange tiles the multi-dimensional range and runs tiles in parallel.
	PatternMDRange
	// PatternTPTTRTVR maps outer dimensions to teams, the middle dimension to
	// team threads and the innermost dimension to vector lanes.
	PatternTPTTRTVR
	// PatternTPTTR maps outer dimensions to teams and the flattened inner two
	// dimensions to team threads.
	PatternTPTTR
	// PatternTPTVR maps outer dimensions to teams and the innermost dimension
	// to vector lanes; the middle dimension runs serially in each team.
	PatternTPTVR
	// PatternSIMDFor runs plain nested loops in the calling goroutine with a
	// contiguous innermost loop.
	PatternSIMDFor
)

// Patterns lists every pattern in declaration order.
var Patterns = []Pattern{
	PatternRange,
	PatternMDRange,
	PatternTPTTRTVR,
	PatternTPTTR,
	PatternTPTVR,
	PatternSIMDFor,
}

var (
	// ErrUnknownPattern is returned when a pattern name cannot be parsed.
	ErrUnknownPattern = errors.New("unknown loop pattern")
	// ErrPatternRank is returned when a pattern is not defined for a rank.
	ErrPatternRank = errors.New("loop pattern not defined for rank")
	// ErrUnsupportedPattern is returned when an execution space cannot run a pattern.
	ErrUnsupportedPattern = errors.New("loop pattern not supported by execution space")
)

var patternNames = map[Pattern]string{
	PatternRange:    model.PatternRange,
	PatternMDRange:  model.PatternMDRange,
	PatternTPTTRTVR: model.PatternTPTTRTVR,
	PatternTPTTR:    model.PatternTPTTR,
	PatternTPTVR:    model.PatternTPTVR,
	PatternSIMDFor:  model.PatternSIMDFor,
}

// String returns the configuration name of the pattern.
func (p Pattern) String() string {
	if name, ok := patternNames[p]; ok {
		return name
	}
	return fmt.Sprintf("pattern(%d)", int(p))
}

// ParsePattern maps a configuration name to a Pattern.
func ParsePattern(s string) (Pattern, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for p, n := range patternNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPattern, s)
}

// MinRank is the lowest iteration-space rank the pattern is defined for.
// The hierarchical patterns need an outer, a middle and an inner dimension.
func (p Pattern) MinRank() int {
	switch p {
	case PatternRange, PatternMDRange:
		return 1
	default:
		return 3
	}
}

// Hierarchical reports whether the pattern uses the team/thread/vector hierarchy.
func (p Pattern) Hierarchical() bool {
	return p == PatternTPTTRTVR || p == PatternTPTTR || p == PatternTPTVR
}

// Range is an inclusive index range [Lo, Hi]. Hi < Lo denotes an empty range.
type Range struct {
	Lo int
	Hi int
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	if r.Hi < r.Lo {
		return 0
	}
	return r.Hi - r.Lo + 1
}

// Empty reports whether the range contains no indices.
func (r Range) Empty() bool {
	return r.Hi < r.Lo
}

// Check reports whether pattern p can run an iteration space of the given rank
// on space s. Callers use it at construction time; the For functions panic on
// the same conditions.
func Check(p Pattern, rank int, s Space) error {
	if _, ok := patternNames[p]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPattern, int(p))
	}
	if rank < 1 || rank > 4 || rank < p.MinRank() {
		return fmt.Errorf("%w: %s with rank %d", ErrPatternRank, p, rank)
	}
	if s != nil && !s.Capabilities().Supports(p) {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedPattern, p, s.Name())
	}
	return nil
}

func mustCheck(label string, p Pattern, rank int, s Space) {
	if s == nil {
		panic(fmt.Sprintf("dispatch %q: nil execution space", label))
	}
	if err := Check(p, rank, s); err != nil {
		panic(fmt.Errorf("dispatch %q: %w", label, err))
	}
}
