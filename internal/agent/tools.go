// Package agent drives an LLM-backed conversational agent through
// bounded-context turns, dispatching tool calls against the simulation.
package agent

import (
	"context"
	"encoding/json"

	"github.com/talgya/vendbench/internal/llm"
)

// ToolResult is what a tool hands back to the loop. IsDayReport marks
// results carrying a fresh day report, which the context window must not
// evict until the next one arrives.
type ToolResult struct {
	Content     string
	IsDayReport bool
}

// ToolFunc executes one tool call. Errors are surfaced to the model as
// structured failure text, never as a crashed loop.
type ToolFunc func(ctx context.Context, args json.RawMessage) (ToolResult, error)

// Tool pairs a model-visible definition with its implementation.
type Tool struct {
	Def llm.ToolDefinition
	Run ToolFunc
}

// Registry is an ordered tool set.
type Registry struct {
	tools  []Tool
	byName map[string]*Tool
}

// NewRegistry builds a registry from tools in presentation order.
func NewRegistry(tools []Tool) *Registry {
	r := &Registry{tools: tools, byName: make(map[string]*Tool, len(tools))}
	for i := range r.tools {
		r.byName[r.tools[i].Def.Name] = &r.tools[i]
	}
	return r
}

// Definitions returns the model-visible tool definitions.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Def)
	}
	return defs
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns all tool names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Def.Name)
	}
	return names
}

// Schema is a helper for writing JSON schemas inline.
func Schema(s string) json.RawMessage {
	return json.RawMessage(s)
}

// NoArgsSchema is the schema for tools taking no parameters.
var NoArgsSchema = Schema(`{"type":"object","properties":{},"required":[]}`)
