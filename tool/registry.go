package tool

import (
	"slices"
	"sync"

	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/schema"
)

// Registry looks tools up by name and remembers registration order.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	order      []string
	concurrent bool
}

// NewRegistry registers tools in order.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. Names must be non-empty and unique.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errs.New(errs.KindTool, "nil tool")
	}
	name := t.Name()
	if name == "" {
		return errs.New(errs.KindTool, "tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; ok {
		return errs.Newf(errs.KindTool, "duplicate tool '%s'", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool named name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Definitions describes every registered tool.
func (r *Registry) Definitions() []schema.ToolDefinition {
	return Definitions(r.Tools())
}

// SetConcurrent declares whether calls may run concurrently. Off by default.
func (r *Registry) SetConcurrent(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.concurrent = on
}

// Concurrent reports the flag set with SetConcurrent.
func (r *Registry) Concurrent() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.concurrent
}

// ConcurrencySafe reports whether calls to all the named tools may run at
// the same time: the registry must allow it and no named tool may opt out.
// Unknown names are ignored.
func (r *Registry) ConcurrencySafe(names ...string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.concurrent {
		return false
	}
	for _, name := range names {
		if cs, ok := r.tools[name].(ConcurrencySafeTool); ok && !cs.ConcurrencySafe() {
			return false
		}
	}
	return true
}
