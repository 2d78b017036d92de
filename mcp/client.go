// Package mcp connects to Model Context Protocol tool servers over
// streamable HTTP and exposes their tools to agents.
//
// Information Hiding:
// - Transport and session handshake hidden
// - Result content decoding hidden

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	clientName    = "datagent"
	clientVersion = "0.1.0"
)

// ToolInfo describes a tool available on an MCP server.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// CallResult is the decoded outcome of a tool call.
type CallResult struct {
	// Output is the structured content as JSON when the server sent any,
	// otherwise the text content joined by newlines.
	Output  string
	IsError bool
}

// Client is a connected MCP session with one server.
type Client struct {
	url    string
	client *mcpclient.Client
}

// Connect opens a streamable-HTTP session and performs the initialize handshake.
func Connect(ctx context.Context, endpoint Endpoint) (*Client, error) {
	opts := []transport.StreamableHTTPCOption{}
	if len(endpoint.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(endpoint.Headers))
	}
	if endpoint.Timeout > 0 {
		opts = append(opts, transport.WithHTTPTimeout(endpoint.Timeout))
	}

	c, err := mcpclient.NewStreamableHttpClient(endpoint.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client for %s: %w", endpoint.URL, err)
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start MCP client for %s: %w", endpoint.URL, err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(ctx, req); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP session with %s: %w", endpoint.URL, err)
	}

	return &Client{url: endpoint.URL, client: c}, nil
}

// URL returns the server URL.
func (c *Client) URL() string {
	return c.url
}

// ListTools returns all tools available on the server.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	infos := make([]ToolInfo, 0, len(result.Tools))
	for _, tool := range result.Tools {
		schema := tool.RawInputSchema
		if len(schema) == 0 {
			schema, err = json.Marshal(tool.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("failed to encode input schema of %s: %w", tool.Name, err)
			}
		}
		infos = append(infos, ToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return infos, nil
}

// CallTool calls a tool with JSON arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (CallResult, error) {
	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return CallResult{}, fmt.Errorf("invalid JSON arguments: %w", err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		return CallResult{}, fmt.Errorf("tool call failed: %w", err)
	}
	return decodeResult(result)
}

func decodeResult(result *mcp.CallToolResult) (CallResult, error) {
	if result.StructuredContent != nil && !result.IsError {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return CallResult{}, fmt.Errorf("failed to encode structured content: %w", err)
		}
		return CallResult{Output: string(data)}, nil
	}

	var texts []string
	for _, content := range result.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			texts = append(texts, text.Text)
		}
	}
	return CallResult{Output: strings.Join(texts, "\n"), IsError: result.IsError}, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.client.Close()
}
