// Startup banner describing the agent team.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/richinex/datagent/orchestration"
)

// ExampleQueries show what each intent looks like.
var ExampleQueries = []string{
	"List all tables in the database",
	"Show me the customer records from last week",
	"Analyze sales trends by region",
	"Plot a bar chart of revenue per product",
	"Compare deal sizes between Q1 and Q2",
}

// PrintAgents writes the team, the connected MCP servers and their tools,
// and a few example queries.
func (a *App) PrintAgents() {
	PrintBanner(a.out, a.Orchestrator.Team(), a.Toolset.Servers())
}

// PrintBanner writes the banner for team to w.
func PrintBanner(w io.Writer, team *orchestration.Team, servers []string) {
	fmt.Fprintln(w, "Data Science Multi-Agent System")
	fmt.Fprintln(w, strings.Repeat("=", 32))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Agents:")
	for _, info := range team.Collection().List() {
		fmt.Fprintf(w, "  %-28s %s\n", info.Name, info.Description)
		if info.OutputKey != "" {
			fmt.Fprintf(w, "  %-28s output key: %s\n", "", info.OutputKey)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "MCP servers:")
	if len(servers) == 0 {
		fmt.Fprintln(w, "  (none connected)")
	}
	for _, url := range servers {
		fmt.Fprintf(w, "  %s\n", url)
	}
	fmt.Fprintln(w)

	tools := team.Retrieval.Tools()
	fmt.Fprintf(w, "Retrieval tools (%d):\n", len(tools))
	for _, meta := range tools {
		fmt.Fprintf(w, "  %s\n", meta)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Example queries:")
	for _, q := range ExampleQueries {
		fmt.Fprintf(w, "  [%s] %s\n", orchestration.Classify(q), q)
	}
}
