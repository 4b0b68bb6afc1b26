package model

import "time"

// Driver state constants.
const (
	StateRunning       = "running"
	StateOutputPending = "output_pending"
	StateTerminating   = "terminating"
	StateComplete      = "complete"
	StateFailed        = "failed"
)

// Loop pattern names as they appear in configuration and run records.
const (
	PatternRange    = "range"
	PatternMDRange  = "mdrange"
	PatternTPTTRTVR = "tpttrtvr"
	PatternTPTTR    = "tpttr"
	PatternTPTVR    = "tptvr"
	PatternSIMDFor  = "simdfor"
)

// Execution space names.
const (
	SpaceSerial = "serial"
	SpaceHost   = "host"
	SpaceDevice = "device"
	SpaceAuto   = "auto"
)

// validTransitions maps each driver state to the set of states it may move to.
var validTransitions = map[string]map[string]bool{
	StateRunning: {
		StateRunning:       true,
		StateOutputPending: true,
		StateTerminating:   true,
		StateComplete:      true,
		StateFailed:        true,
	},
	StateOutputPending: {
		StateRunning: true,
		StateFailed:  true,
	},
}

// ValidTransition reports whether the driver may move from one state to another.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether state ends a run.
func IsTerminal(state string) bool {
	return state == StateComplete || state == StateFailed || state == StateTerminating
}

// Run is the persisted record of one driver execution.
type Run struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Integrator  string     `json:"integrator"`
	Pattern     string     `json:"pattern"`
	Space       string     `json:"space"`
	Ranks       int        `json:"ranks"`
	TimeLimit   float64    `json:"time_limit"`
	CycleLimit  int        `json:"cycle_limit"`
	Cycles      int        `json:"cycles"`
	FinalTime   float64    `json:"final_time"`
	BlockCycles int64      `json:"block_cycles"`
	Signal      string     `json:"signal,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Cycle is one completed integration cycle of a run.
type Cycle struct {
	RunID      string    `json:"run_id"`
	Cycle      int       `json:"cycle"`
	Time       float64   `json:"time"`
	Dt         float64   `json:"dt"`
	Units      int       `json:"units"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshot is the driver state handed to outputs and diagnostics at a cycle
// boundary. It is a copy; consumers cannot mutate the driver through it.
type Snapshot struct {
	RunID          string  `json:"run_id" yaml:"run_id"`
	Rank           int     `json:"rank" yaml:"rank"`
	Cycle          int     `json:"cycle" yaml:"cycle"`
	Time           float64 `json:"time" yaml:"time"`
	Dt             float64 `json:"dt" yaml:"dt"`
	TimeLimit      float64 `json:"time_limit" yaml:"time_limit"`
	Units          int     `json:"units" yaml:"units"`
	BlockCycles    int64   `json:"block_cycles" yaml:"block_cycles"`
	SinceRebalance int     `json:"steps_since_rebalance" yaml:"steps_since_rebalance"`
	State          string  `json:"state" yaml:"state"`
}
