// Package agent invokes the sub-agent CLI for one pipeline step: it sets
// the step's env, runs the agent, and parses the gated result from the
// agent's printed output.
package agent

import (
	"fmt"
	"sync"
)

// Descriptor is one registered sub-agent: the CLI binary to invoke and any
// extra arguments that select it (e.g. a specific model or persona flag).
type Descriptor struct {
	Name string
	Args []string
}

// Registry maps a pipeline step's Agent name to its dispatch descriptor.
// Steps reference agents by name rather than hardcoding a CLI invocation,
// so adding a new sub-agent is a registration, not a code change.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]Descriptor
	fallback Descriptor
}

// NewRegistry returns a Registry whose default fallback invokes the plain
// claude CLI with no extra dispatch arguments.
func NewRegistry() *Registry {
	return &Registry{
		agents:   make(map[string]Descriptor),
		fallback: Descriptor{Name: "claude"},
	}
}

// Register adds or replaces the descriptor for name.
func (r *Registry) Register(name string, d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[name] = d
}

// Exists reports whether name has been registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// Resolve returns the descriptor for name, or the fallback if name is
// empty or unregistered.
func (r *Registry) Resolve(name string) Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		return r.fallback
	}
	if d, ok := r.agents[name]; ok {
		return d
	}
	return r.fallback
}

// SetFallback overrides the descriptor used for unregistered agent names.
func (r *Registry) SetFallback(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = d
}

// String renders a descriptor for logging.
func (d Descriptor) String() string {
	if len(d.Args) == 0 {
		return d.Name
	}
	return fmt.Sprintf("%s %v", d.Name, d.Args)
}
