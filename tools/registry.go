// Tool registry.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Prompt rendering of tool signatures hidden

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry manages available tools with dynamic registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. The first tool registered under a name wins; MCP
// servers often expose overlapping names.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Metadata().Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool '%s' already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
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

// List returns metadata for all registered tools, sorted by name.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		metadata = append(metadata, tool.Metadata())
	}
	sort.Slice(metadata, func(i, j int) bool { return metadata[i].Name < metadata[j].Name })
	return metadata
}

// Description renders one signature line per tool for LLM prompts, sorted by
// name. Optional parameters carry a "?" suffix:
//
//	- run_query(sql: string, limit?: integer): Run a read-only SQL query
func (r *Registry) Description() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		meta := r.tools[name].Metadata()
		params := make([]string, len(meta.Parameters))
		for i, p := range meta.Parameters {
			opt := "?"
			if p.Required {
				opt = ""
			}
			params[i] = fmt.Sprintf("%s%s: %s", p.Name, opt, p.ParamType)
		}
		line := fmt.Sprintf("- %s(%s)", meta.Name, strings.Join(params, ", "))
		if meta.Description != "" {
			line += ": " + meta.Description
		}
		lines = append(lines, line)
		for _, p := range meta.Parameters {
			if p.Description != "" {
				lines = append(lines, fmt.Sprintf("    %s: %s", p.Name, p.Description))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// RegisterAll adds every tool, stopping at the first duplicate.
func (r *Registry) RegisterAll(tools ...Tool) error {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
