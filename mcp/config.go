// MCP server selection.
//
// Servers come from MCP_SERVERS_JSON, a list of entries:
//
//	[
//	  {"url": "http://postgres-mcp:8000/mcp", "auth": true},
//	  {"url": "http://hubspot-mcp:8000/mcp"}
//	]
//
// Servers marked auth receive "Authorization: <MCP_AUTH_SCHEME> <MCP_AUTH_TOKEN>".
package mcp

import (
	"context"
	"errors"
	"time"

	"goa.design/clue/log"

	"github.com/richinex/datagent/config"
)

var errMissingURL = errors.New("MCP server entry missing 'url'")

// ServerConfig is one configured MCP server.
type ServerConfig = config.MCPServer

// Endpoint is a server that is ready to connect to.
type Endpoint struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// Endpoints resolves the configured servers. Entries without a URL, and
// servers needing auth when no token is set, are logged and skipped.
func Endpoints(ctx context.Context, cfg config.MCPConfig) []Endpoint {
	if len(cfg.Servers) == 0 {
		log.Warn(ctx, log.KV{K: "msg", V: "MCP_SERVERS_JSON is not defined - MCP tools will not be available"})
		return nil
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	var endpoints []Endpoint
	for _, server := range cfg.Servers {
		if server.URL == "" {
			log.Error(ctx, errMissingURL, log.KV{K: "msg", V: "skipping MCP server entry"})
			continue
		}

		headers := map[string]string{}
		if server.Auth {
			header, err := cfg.AuthHeader()
			if err != nil {
				log.Error(ctx, err, log.KV{K: "msg", V: "MCP server requires auth, skipping"}, log.KV{K: "url", V: server.URL})
				continue
			}
			headers["Authorization"] = header
		}

		endpoints = append(endpoints, Endpoint{URL: server.URL, Headers: headers, Timeout: timeout})
	}
	return endpoints
}
