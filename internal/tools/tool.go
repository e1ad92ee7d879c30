// Package tools defines the tool interface, the process-wide tool registry,
// and the resolver that maps active skills to an invocable tool set.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Tool is a capability the model can invoke during a turn.
//
// Execute returns a ToolResult describing success or failure. Tools report
// their own failures as IsError results; a non-nil Go error is reserved for
// failures that must abort the whole turn and is propagated to the turn
// boundary.
type Tool interface {
	// Name returns the unique tool identifier.
	Name() string

	// Description explains the tool to the model.
	Description() string

	// Schema returns the JSON schema of the tool's input object.
	Schema() json.RawMessage

	// Execute runs the tool with the given JSON parameters.
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Result is the outcome of one tool execution.
type Result struct {
	Content string
	IsError bool
}

// Errorf builds an error Result from a format string.
func Errorf(format string, args ...any) *Result {
	return &Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

// MaxToolParamsSize caps tool parameter payloads (1MB).
const MaxToolParamsSize = 1 << 20

// Registry holds every tool registered in the process, independent of which
// skills are currently active. The turn pipeline executes through the full
// registry so a call bound under a previous turn's skill set still resolves.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a tool by name. Unknown tools and oversized parameters become
// error results, not Go errors.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (*Result, error) {
	if len(params) > MaxToolParamsSize {
		return Errorf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize), nil
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Errorf("tool not found: %s", name), nil
	}
	return tool.Execute(ctx, params)
}
