// MCP Tool Wrapper - Makes MCP tools usable in the agent system.
//
// Information Hiding:
// - MCP client lifecycle hidden
// - Schema parsing hidden
// - Tool execution coordination hidden

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"goa.design/clue/log"

	"github.com/richinex/datagent/config"
	"github.com/richinex/datagent/telemetry"
	"github.com/richinex/datagent/tools"
)

// Toolset holds the tools of every connected server.
// The caller must call Close() when done to release resources.
type Toolset struct {
	clients []*Client
	tools   []tools.Tool
}

// Tools returns the discovered tools.
func (s *Toolset) Tools() []tools.Tool {
	if s == nil {
		return nil
	}
	return s.tools
}

// Servers returns the URLs of the connected servers.
func (s *Toolset) Servers() []string {
	if s == nil {
		return nil
	}
	urls := make([]string, len(s.clients))
	for i, c := range s.clients {
		urls[i] = c.URL()
	}
	return urls
}

// Close closes every client.
func (s *Toolset) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, c := range s.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConnectAll connects to every configured server and merges their tools.
// Unreachable servers are logged and skipped; a tool name already taken by an
// earlier server is skipped too.
func ConnectAll(ctx context.Context, cfg config.MCPConfig, tracer *telemetry.Tracer) *Toolset {
	set := &Toolset{}
	seen := map[string]bool{}

	for _, endpoint := range Endpoints(ctx, cfg) {
		client, err := Connect(ctx, endpoint)
		if err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "failed to connect to MCP server"}, log.KV{K: "url", V: endpoint.URL})
			continue
		}

		discovered, err := DiscoverTools(ctx, client, tracer)
		if err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "failed to discover MCP tools"}, log.KV{K: "url", V: endpoint.URL})
			client.Close()
			continue
		}

		set.clients = append(set.clients, client)
		for _, tool := range discovered {
			name := tool.Metadata().Name
			if seen[name] {
				log.Warn(ctx, log.KV{K: "msg", V: "duplicate MCP tool skipped"}, log.KV{K: "tool", V: name}, log.KV{K: "url", V: endpoint.URL})
				continue
			}
			seen[name] = true
			set.tools = append(set.tools, tool)
		}
		log.Info(ctx, log.KV{K: "msg", V: "created MCP toolset"}, log.KV{K: "url", V: endpoint.URL}, log.KV{K: "tools", V: len(discovered)})
	}
	return set
}

// DiscoverTools wraps every tool of a connected server.
func DiscoverTools(ctx context.Context, client *Client, tracer *telemetry.Tracer) ([]tools.Tool, error) {
	infos, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	if tracer == nil {
		tracer = telemetry.NewTracer()
	}

	result := make([]tools.Tool, len(infos))
	for i, info := range infos {
		result[i] = &toolWrapper{
			client: client,
			info:   info,
			params: parseParameters(info.InputSchema),
			tracer: tracer,
		}
	}
	return result, nil
}

// toolWrapper adapts one MCP tool to tools.Tool.
type toolWrapper struct {
	client *Client
	info   ToolInfo
	params []tools.ToolParameter
	tracer *telemetry.Tracer
}

// Metadata returns the tool metadata extracted from the MCP schema.
func (w *toolWrapper) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        w.info.Name,
		Description: w.info.Description,
		Parameters:  w.params,
	}
}

// Execute calls the MCP tool. Errors reported by the tool itself become a
// failed result; transport errors are returned.
func (w *toolWrapper) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	ctx, span := w.tracer.Start(ctx, "mcp.call_tool", "tool.name", w.info.Name, "mcp.server", w.client.URL())

	result, err := w.client.CallTool(ctx, w.info.Name, args)
	if err != nil {
		telemetry.End(span, err)
		return tools.ToolResult{}, err
	}
	if result.IsError {
		telemetry.End(span, errors.New(result.Output))
		return tools.FailureResultf("%s", result.Output), nil
	}
	telemetry.End(span, nil)
	return tools.SuccessResult(result.Output), nil
}

// Validate checks the arguments are a JSON object carrying every required parameter.
func (w *toolWrapper) Validate(args json.RawMessage) error {
	return tools.ValidateRequired(w.Metadata(), args)
}

// parseParameters extracts tool parameters from the JSON schema.
// Returns parameters in sorted order for deterministic output.
func parseParameters(inputSchema json.RawMessage) []tools.ToolParameter {
	var schema struct {
		Properties map[string]struct {
			Type        any    `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(inputSchema, &schema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range schema.Required {
		requiredSet[r] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]tools.ToolParameter, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		params = append(params, tools.ToolParameter{
			Name:        name,
			Description: prop.Description,
			ParamType:   schemaType(prop.Type),
			Required:    requiredSet[name],
		})
	}
	return params
}

// schemaType reads "type", which may be a string or a list like ["string", "null"].
func schemaType(t any) string {
	switch v := t.(type) {
	case string:
		if v != "" {
			return v
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "null" {
				return s
			}
		}
	}
	return "string"
}
