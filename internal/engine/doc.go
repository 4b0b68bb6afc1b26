// Package engine runs simulations as recorded runs. It creates the run record,
// builds and executes the driver, publishes cycle events for live streaming,
// and stores the outcome.
package engine
