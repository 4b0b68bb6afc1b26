package dispatch

import "slices"

// Space is an execution space: a device context that runs parallel work.
// Every method returns only after all the work it was handed has finished,
// so the return of a dispatch call is its synchronisation point.
type Space interface {
	// Name identifies the space in logs, metrics and the registry.
	Name() string

	// Capabilities reports the space's parallel resources and the patterns it runs.
	Capabilities() Capabilities

	// Parallel splits [0, n) into disjoint chunks and calls body once per chunk.
	Parallel(n int, body func(lo, hi int))

	// Teams runs league independent teams and calls body once per team.
	Teams(league int, body func(t Team))

	// Fence blocks until all work previously issued to the space is visible.
	Fence()
}

// Team is the handle a hierarchical kernel receives for one league member.
type Team interface {
	// LeagueRank is the index of this team within the league.
	LeagueRank() int

	// ThreadRange distributes [0, n) over the team's threads and returns after
	// every thread has finished (a team barrier).
	ThreadRange(n int, fn func(x int))

	// VectorRange runs [0, n) across the vector lanes of the calling thread.
	VectorRange(n int, fn func(x int))
}

// Capabilities describes what an execution space provides.
type Capabilities struct {
	Name         string   `json:"name"`
	Concurrency  int      `json:"concurrency"`
	TeamSize     int      `json:"team_size"`
	VectorLength int      `json:"vector_length"`
	Patterns     []string `json:"patterns"`
}

// Supports reports whether the space runs pattern p.
func (c Capabilities) Supports(p Pattern) bool {
	return slices.Contains(c.Patterns, p.String())
}

func patternList(ps ...Pattern) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}
