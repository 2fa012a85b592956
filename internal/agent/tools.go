package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nidhogg/statcrew/internal/provider"
)

var (
	// ErrToolNotPermitted is reported when an agent requests a tool outside its allow-list.
	ErrToolNotPermitted = errors.New("tool not permitted")
	// ErrUnknownTool is returned for a tool name with no registered handler.
	ErrUnknownTool = errors.New("unknown tool")
)

// ToolHandler executes a tool call and returns the result as a string.
// Input problems are reported inside the returned payload; a non-nil error
// means the upstream data provider failed.
type ToolHandler func(ctx context.Context, args string) (string, error)

// ToolRegistry holds available tools and their handlers.
type ToolRegistry struct {
	mu       sync.RWMutex
	defs     map[string]provider.Tool
	handlers map[string]ToolHandler
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		defs:     make(map[string]provider.Tool),
		handlers: make(map[string]ToolHandler),
	}
}

// Register adds a tool definition and its handler.
func (r *ToolRegistry) Register(def provider.Tool, handler ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Function.Name] = def
	r.handlers[def.Function.Name] = handler
}

// Has reports whether a tool is registered.
func (r *ToolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered tool names, sorted.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the definitions for the named tools in the given order.
func (r *ToolRegistry) Definitions(names ...string) ([]provider.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]provider.Tool, 0, len(names))
	for _, n := range names {
		def, ok := r.defs[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, n)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Execute runs a tool by name with the given JSON arguments.
func (r *ToolRegistry) Execute(ctx context.Context, name, args string) (string, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return h(ctx, args)
}

// ErrorPayload renders a tool-level error the model can relay.
func ErrorPayload(msg string) string {
	b, _ := json.MarshalIndent(map[string]string{"error": msg}, "", "  ")
	return string(b)
}
