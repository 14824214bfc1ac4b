// Package registry holds the declarative catalog of callable tools, shared
// between the discovery path (tools/list) and the invocation path
// (tools/call).
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/cartbridge/cartbridge/internal/shared/types"
)

// Handler dispatches one tool invocation to the capability driver.
// Handlers own no state.
type Handler func(ctx context.Context, args map[string]interface{}) (*types.Result, error)

// Tool is one registry entry.
type Tool struct {
	Name        string
	Description string
	Schema      types.Schema
	Handler     Handler
}

// Descriptor is the discovery-facing view of a tool, surfaced verbatim to
// the remote caller.
type Descriptor struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	InputSchema types.Schema `json:"inputSchema"`
}

// Registry maps tool names to entries, preserving registration order for
// stable discovery listings.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// New creates an empty registry
func New() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool entry
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns descriptors for all tools in registration order
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Descriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema,
		})
	}
	return out
}

// Call validates the arguments against the tool's declared schema and
// invokes its handler. An unknown tool or a validation miss comes back as a
// failed Result, never an error: the protocol call succeeded, the product
// operation did not.
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) *types.Result {
	t, ok := r.Get(name)
	if !ok {
		return types.Failure(fmt.Sprintf("tool not found: %s", name))
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	if err := validate(t.Schema, args); err != nil {
		return types.Failure(err.Error())
	}

	result, err := t.Handler(ctx, args)
	if err != nil {
		return types.Failuref(fmt.Sprintf("%s failed", name), err.Error())
	}
	return result
}

// validate checks required presence and declared types. Unknown extra keys
// pass through untouched; the handler decides what to do with them.
func validate(schema types.Schema, args map[string]interface{}) error {
	for _, req := range schema.Required {
		if _, present := args[req]; !present {
			return fmt.Errorf("missing required parameter: %s", req)
		}
	}

	for name, prop := range schema.Properties {
		val, present := args[name]
		if !present || val == nil {
			continue
		}
		switch prop.Type {
		case "string":
			if _, ok := val.(string); !ok {
				return fmt.Errorf("parameter %s must be a string", name)
			}
		case "number", "integer":
			switch val.(type) {
			case float64, int, int64:
			default:
				return fmt.Errorf("parameter %s must be a number", name)
			}
		case "boolean":
			if _, ok := val.(bool); !ok {
				return fmt.Errorf("parameter %s must be a boolean", name)
			}
		}
	}
	return nil
}
