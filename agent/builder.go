// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"encoding/json"
	"fmt"

	"github.com/richinex/datagent/llm"
	"github.com/richinex/datagent/tools"
)

// Builder provides fluent configuration for creating agents.
// Usage: agent.NewBuilder("name") - no stutter.
type Builder struct {
	name           string
	description    string
	instruction    string
	tools          []tools.Tool
	outputKey      string
	generation     llm.Options
	responseSchema json.RawMessage
	beforeAgent    BeforeAgentFunc
	afterTool      AfterToolFunc
}

// NewBuilder creates a new agent builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:  name,
		tools: []tools.Tool{},
	}
}

// Description sets the agent's description.
func (b *Builder) Description(description string) *Builder {
	b.description = description
	return b
}

// Instruction sets the agent's instruction. {key} placeholders are filled from state.
func (b *Builder) Instruction(instruction string) *Builder {
	b.instruction = instruction
	return b
}

// OutputKey stores the final answer in state under key.
func (b *Builder) OutputKey(key string) *Builder {
	b.outputKey = key
	return b
}

// Generation sets sampling options for every LLM call the agent makes.
func (b *Builder) Generation(opts llm.Options) *Builder {
	b.generation = opts
	return b
}

// BeforeAgent sets the callback run before the reasoning loop.
func (b *Builder) BeforeAgent(fn BeforeAgentFunc) *Builder {
	b.beforeAgent = fn
	return b
}

// AfterTool sets the callback run after every tool call.
func (b *Builder) AfterTool(fn AfterToolFunc) *Builder {
	b.afterTool = fn
	return b
}

// Tool adds a tool to the agent.
func (b *Builder) Tool(tool tools.Tool) *Builder {
	b.tools = append(b.tools, tool)
	return b
}

// Tools adds multiple tools at once.
func (b *Builder) Tools(toolList []tools.Tool) *Builder {
	b.tools = append(b.tools, toolList...)
	return b
}

// ResponseSchema sets the JSON schema for structured outputs.
func (b *Builder) ResponseSchema(schema json.RawMessage) *Builder {
	b.responseSchema = schema
	return b
}

// Build creates the agent configuration.
func (b *Builder) Build() Config {
	description := b.description
	if description == "" {
		description = fmt.Sprintf("Agent: %s", b.name)
	}

	instruction := b.instruction
	if instruction == "" {
		instruction = fmt.Sprintf(
			"You are an agent named %s. Use available tools to complete tasks.",
			b.name,
		)
	}

	return Config{
		Name:           b.name,
		Description:    description,
		Instruction:    instruction,
		Tools:          b.tools,
		OutputKey:      b.outputKey,
		Generation:     b.generation,
		ResponseSchema: b.responseSchema,
		BeforeAgent:    b.beforeAgent,
		AfterTool:      b.afterTool,
	}
}

// Name returns the builder's agent name.
func (b *Builder) Name() string {
	return b.name
}

// ToolCount returns the number of tools registered.
func (b *Builder) ToolCount() int {
	return len(b.tools)
}

// Collection manages multiple agent configurations.
type Collection struct {
	configs []Config
}

// NewCollection creates an empty agent collection.
func NewCollection() *Collection {
	return &Collection{
		configs: []Config{},
	}
}

// Add adds an agent from a builder.
func (c *Collection) Add(builder *Builder) *Collection {
	c.configs = append(c.configs, builder.Build())
	return c
}

// AddConfig adds a pre-built config.
func (c *Collection) AddConfig(config Config) *Collection {
	c.configs = append(c.configs, config)
	return c
}

// Build returns all configurations.
func (c *Collection) Build() []Config {
	return c.configs
}

// Len returns the number of agents.
func (c *Collection) Len() int {
	return len(c.configs)
}

// AgentInfo describes an agent's basic information.
type AgentInfo struct {
	Name        string
	Description string
	OutputKey   string
	ToolCount   int
}

// List returns agent names and descriptions.
func (c *Collection) List() []AgentInfo {
	result := make([]AgentInfo, len(c.configs))
	for i, cfg := range c.configs {
		result[i] = AgentInfo{
			Name:        cfg.Name,
			Description: cfg.Description,
			OutputKey:   cfg.OutputKey,
			ToolCount:   len(cfg.Tools),
		}
	}
	return result
}
