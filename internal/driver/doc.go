// Package driver runs the multi-stage evolution loop. Each cycle drives one
// task list per partition unit through every integrator stage, advances the
// simulation clock, rebalances, takes a new timestep, writes outputs and asks
// the termination coordinator whether the process group should stop.
//
// The loop is a small state machine over model.State* values. Only the driver
// decides whether to continue, stop or abort; collaborators report through
// return values.
package driver
