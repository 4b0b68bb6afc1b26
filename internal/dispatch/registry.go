package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/AndrewGaspar/parthenon/internal/model"
)

// autoPreference lists the spaces "auto" resolves to, most capable first.
var autoPreference = []string{model.SpaceDevice, model.SpaceHost, model.SpaceSerial}

// Registry holds the execution spaces available to this process and resolves
// configuration names to them.
type Registry struct {
	mu     sync.RWMutex
	spaces map[string]Space
}

// NewRegistry creates an empty execution space registry.
func NewRegistry() *Registry {
	return &Registry{
		spaces: make(map[string]Space),
	}
}

// NewDefaultRegistry registers the serial space, a host space with hostWorkers
// workers and, when multiprocessors is positive, a device space.
func NewDefaultRegistry(hostWorkers, multiprocessors, teamSize int) *Registry {
	r := NewRegistry()
	r.Register(NewSerial())
	r.Register(NewHost(hostWorkers))
	if multiprocessors > 0 {
		r.Register(NewDevice(multiprocessors, teamSize))
	}
	return r
}

// Register adds a space under its own name, replacing any previous entry.
func (r *Registry) Register(s Space) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spaces[s.Name()] = s
}

// CanonicalSpace normalizes a configured execution space name.
func CanonicalSpace(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve returns the space registered under name, ignoring case and
// surrounding space. "auto" picks the most capable registered space.
func (r *Registry) Resolve(name string) (Space, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name = CanonicalSpace(name)
	if name == model.SpaceAuto || name == "" {
		for _, candidate := range autoPreference {
			if s, ok := r.spaces[candidate]; ok {
				return s, nil
			}
		}
		return nil, fmt.Errorf("no execution space registered for %q", model.SpaceAuto)
	}

	s, ok := r.spaces[name]
	if !ok {
		return nil, fmt.Errorf("execution space %q is not registered", name)
	}
	return s, nil
}

// List returns the capabilities of all registered spaces sorted by name.
func (r *Registry) List() []Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Capabilities, 0, len(r.spaces))
	for _, s := range r.spaces {
		infos = append(infos, s.Capabilities())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
