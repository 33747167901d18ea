// Package toolcall implements the tool-invocation transport: capability
// calls translated into named MCP tool calls against configured servers.
//
// The binding table maps capability names to (server, tool, argument
// schema) so operators can rebind to differently-named remote tools without
// code changes. Bindings are read-only after construction.
package toolcall

import (
	"context"
	"fmt"
)

// Invoker is the tool-invocation contract consumed by the transport
// backends: one synchronous named tool call returning the text payload.
type Invoker interface {
	InvokeTool(ctx context.Context, server, tool string, args map[string]any) (string, error)
}

// Binding maps one capability onto a named tool on a named server. Args
// maps the capability's logical argument names to the wire names the remote
// tool expects; logical names with no entry pass through unchanged.
type Binding struct {
	Server string
	Tool   string
	Args   map[string]string
}

// Registry is the capability-to-binding lookup table.
type Registry struct {
	bindings map[string]Binding
}

// NewRegistry builds a registry from a binding table.
func NewRegistry(bindings map[string]Binding) *Registry {
	copied := make(map[string]Binding, len(bindings))
	for capability, b := range bindings {
		copied[capability] = b
	}
	return &Registry{bindings: copied}
}

// Lookup returns the binding for a capability.
func (r *Registry) Lookup(capability string) (Binding, bool) {
	if r == nil {
		return Binding{}, false
	}
	b, ok := r.bindings[capability]
	return b, ok
}

// Translate resolves a capability to its binding and rewrites the logical
// argument names to the bound wire names.
func (r *Registry) Translate(capability string, args map[string]any) (Binding, map[string]any, error) {
	b, ok := r.Lookup(capability)
	if !ok {
		return Binding{}, nil, fmt.Errorf("no tool binding for capability %q", capability)
	}

	wire := make(map[string]any, len(args))
	for logical, value := range args {
		name := logical
		if mapped, ok := b.Args[logical]; ok {
			name = mapped
		}
		wire[name] = value
	}
	return b, wire, nil
}
