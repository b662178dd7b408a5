package toolbox

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/evanmarch/toolrun/llmgateway"
)

// RunFunc executes one tool invocation. It receives the parsed arguments
// and the environment the registry was built with.
type RunFunc func(ctx context.Context, args map[string]any, env ExecutionEnvironment) (any, error)

// Tool pairs a model-facing schema with its executor.
type Tool struct {
	Schema llmgateway.ToolSchema
	Run    RunFunc
}

// Registry holds the available tools. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	env   ExecutionEnvironment
}

// NewRegistry creates an empty registry bound to an execution environment.
func NewRegistry(env ExecutionEnvironment) *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
		env:   env,
	}
}

// Register adds or replaces a tool.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Schema.Name] = &tool
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has reports whether the named tool is registered.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// Names returns the registered tool names, sorted.
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

// Schemas returns the tool schemas to offer the model, in name order.
func (r *Registry) Schemas() []llmgateway.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llmgateway.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Schema)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs the named tool. This is the coordinator's dispatch entry
// point.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("tool not registered: %s", name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tool.Run(ctx, args, r.env)
}
