package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Tool defines the interface for a tool
type Tool interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, args string) (string, error)
}

// ToolRegistry manages the available tools
type ToolRegistry struct {
	tools map[string]Tool
}

// NewToolRegistry creates a new tool registry
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Names must be unique.
func (r *ToolRegistry) Register(t Tool) error {
	name := strings.TrimSpace(t.Definition().Name)
	if name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("register %s: %w", name, ErrDuplicateTool)
	}
	r.tools[name] = t
	return nil
}

// MustRegister is Register for static wiring at startup.
func (r *ToolRegistry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a tool by name
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *ToolRegistry) Len() int {
	return len(r.tools)
}

// Definitions returns the definitions of all registered tools, sorted by
// name so requests are stable across calls.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ParseArgs decodes a tool call's JSON arguments. An empty payload decodes
// as an empty object.
func ParseArgs(args string, v interface{}) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// schemaMap returns a tool's parameter schema as a generic map.
func schemaMap(params interface{}) map[string]interface{} {
	switch p := params.(type) {
	case nil:
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	case map[string]interface{}:
		return p
	case json.RawMessage:
		var m map[string]interface{}
		_ = json.Unmarshal(p, &m)
		return m
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil
		}
		var m map[string]interface{}
		_ = json.Unmarshal(raw, &m)
		return m
	}
}
