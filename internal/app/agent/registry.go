package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"nhlagent/internal/domain"
)

type registeredTool struct {
	spec     domain.ToolSpec
	resolved *jsonschema.Resolved
}

// Registry indexes tool specs by name and validates call arguments against
// each tool's parameter schema.
type Registry struct {
	tools map[string]registeredTool
	order []string
}

// NewRegistry resolves every schema up front so a malformed tool fails at
// startup instead of mid-run.
func NewRegistry(specs []domain.ToolSpec) (*Registry, error) {
	const op = "agent.registry"
	registry := &Registry{tools: make(map[string]registeredTool, len(specs))}
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, domain.E(domain.CodeInvalidConfig, op, "tool name is required", nil)
		}
		if _, dup := registry.tools[name]; dup {
			return nil, domain.E(domain.CodeInvalidConfig, op, fmt.Sprintf("duplicate tool %q", name), nil)
		}
		if spec.Handler == nil {
			return nil, domain.E(domain.CodeInvalidConfig, op, fmt.Sprintf("tool %q has no handler", name), nil)
		}
		entry := registeredTool{spec: spec}
		if spec.Parameters != nil {
			resolved, err := spec.Parameters.Resolve(nil)
			if err != nil {
				return nil, domain.E(domain.CodeInvalidConfig, op, fmt.Sprintf("resolve schema for %q", name), err)
			}
			entry.resolved = resolved
		}
		registry.tools[name] = entry
		registry.order = append(registry.order, name)
	}
	return registry, nil
}

// Definitions lists the model-facing tool definitions in registration order.
func (r *Registry) Definitions() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].spec.Definition())
	}
	return defs
}

// Names returns the registered tool names sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (registeredTool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Validate checks args against the named tool's schema.
func (r *Registry) Validate(name string, args map[string]any) error {
	tool, ok := r.lookup(name)
	if !ok {
		return domain.E(domain.CodeProtocolViolation, "agent.validate", fmt.Sprintf("unknown tool %q", name), domain.ErrUnknownTool)
	}
	return tool.validate(args)
}

func (t registeredTool) validate(args map[string]any) error {
	if t.resolved == nil {
		return nil
	}
	op := "tool." + t.spec.Name
	// Round-trip through JSON so values carry the types the validator expects.
	data, err := json.Marshal(args)
	if err != nil {
		return domain.E(domain.CodeInvalidArgument, op, "arguments are not JSON-encodable", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return domain.E(domain.CodeInvalidArgument, op, "arguments are not JSON-encodable", err)
	}
	if instance == nil {
		instance = map[string]any{}
	}
	if err := t.resolved.Validate(instance); err != nil {
		return domain.E(domain.CodeInvalidArgument, op, err.Error(), err)
	}
	return nil
}
