package orchestration

import (
	"context"

	"goa.design/clue/log"

	"github.com/richinex/datagent/agent"
	"github.com/richinex/datagent/telemetry"
	"github.com/richinex/datagent/tools"
)

// Session state keys shared by the agents of one invocation.
const (
	StateOriginalQuery       = "original_user_query"
	StateCurrentQuery        = "current_query"
	StateRetrievalQuery      = "retrieval_query"
	StateIntent              = "intent"
	StateRetrievedData       = "retrieved_data"
	StateRetrievedRaw        = "retrieved_raw_data"
	StateRetrievedStructured = "retrieved_structured"
	StateNeedsChart          = "needs_chart"
	StateAnalyticsOutput     = "analytics_output"
)

const unknownQuery = "Unknown query"

// RootBeforeAgent stores the user's query for every sub-agent.
func RootBeforeAgent(ctx context.Context, cb *agent.CallbackContext) error {
	query := cb.UserContent
	if query == "" {
		query = unknownQuery
		log.Warn(ctx, log.KV{K: "msg", V: "could not extract user query"})
	} else {
		log.Info(ctx, log.KV{K: "msg", V: "root agent extracted query"}, log.KV{K: "query", V: clip(query, 80)})
	}

	cb.State.Set(StateOriginalQuery, query)
	cb.State.Set(StateCurrentQuery, query)
	return nil
}

// RetrievalBeforeAgent copies the original query into retrieval_query,
// falling back to the agent's own task text.
func RetrievalBeforeAgent(ctx context.Context, cb *agent.CallbackContext) error {
	query := cb.State.GetString(StateOriginalQuery)
	if query == "" {
		log.Warn(ctx, log.KV{K: "msg", V: "no user query found in state for retrieval agent"})
		query = cb.UserContent
	}
	if query != "" {
		log.Info(ctx, log.KV{K: "msg", V: "retrieval agent processing query"}, log.KV{K: "query", V: clip(query, 80)})
		cb.State.Set(StateRetrievalQuery, query)
	}
	return nil
}

// RetrievalAfterTool normalizes each successful tool response and stores the
// raw text, the structured view and the chart flag in state.
func RetrievalAfterTool(metrics *telemetry.Metrics) agent.AfterToolFunc {
	return func(ctx context.Context, tc *agent.ToolContext) error {
		if !tc.Success() || tc.Response == nil {
			return nil
		}

		result := tools.Normalize(ctx, tc.Response)
		if result.Degraded() {
			metrics.RecordDegraded(ctx, tc.ToolName)
		}
		needsChart := NeedsChart(tc.State.GetString(StateOriginalQuery))

		tc.State.Set(StateRetrievedRaw, result.Raw)
		tc.State.Set(StateRetrievedData, map[string]any{
			"structured":  result.Structured,
			"needs_chart": needsChart,
		})
		tc.State.Set(StateRetrievedStructured, result.Structured)
		tc.State.Set(StateNeedsChart, needsChart)

		log.Info(ctx, log.KV{K: "msg", V: "retrieval results stored in state"},
			log.KV{K: "tool", V: tc.ToolName},
			log.KV{K: "shape", V: result.Shape.String()},
			log.KV{K: "needs_chart", V: needsChart})
		return nil
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
