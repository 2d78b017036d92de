// Orchestrator - single-hop multi-agent pipeline.
//
// A query is routed to an intent, the retrieval agent always runs, and
// analysis intents continue to the analytics agent with the retrieval's raw
// text. The session carries shared state across turns.
//
// Information Hiding:
// - Agent sequencing and state plumbing hidden
// - Contract validation hidden
// - Session persistence hidden

package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"goa.design/clue/log"

	"github.com/richinex/datagent/agent"
	"github.com/richinex/datagent/internal/jsonutil"
	"github.com/richinex/datagent/prompts"
	"github.com/richinex/datagent/storage"
	"github.com/richinex/datagent/telemetry"
)

// Contract names registered by New.
const (
	ContractRetrieval = "retrieval_to_analytics"
	ContractAnalytics = "analytics_to_user"
)

// DefaultMaxIterations bounds each agent's reasoning loop.
const DefaultMaxIterations = 10

// Result is the outcome of one orchestrated turn.
type Result struct {
	SessionID       string                      `json:"session_id"`
	Intent          Intent                      `json:"intent"`
	Type            agent.ResponseType          `json:"-"`
	Status          string                      `json:"status"`
	Answer          string                      `json:"answer"`
	Error           string                      `json:"error,omitempty"`
	Retrieval       string                      `json:"retrieval,omitempty"`
	Analytics       json.RawMessage             `json:"analytics,omitempty"`
	HasData         bool                        `json:"has_data"`
	NeedsChart      bool                        `json:"needs_chart"`
	Validation      map[string]ValidationResult `json:"validation"`
	Warnings        []string                    `json:"warnings,omitempty"`
	Steps           []Step                      `json:"steps"`
	TokenStats      TokenStats                  `json:"token_stats"`
	ExecutionTimeMs uint64                      `json:"execution_time_ms"`
}

// IsSuccess reports whether every agent that ran succeeded.
func (r Result) IsSuccess() bool {
	return r.Type == agent.ResponseSuccess
}

// Orchestrator runs the root, retrieval and analytics agents for one turn.
// Safe for concurrent use across different sessions.
type Orchestrator struct {
	team          *Team
	router        Router
	coordinator   *Coordinator
	store         storage.SessionStore
	maxIterations int
	tracer        *telemetry.Tracer
	metrics       *telemetry.Metrics
}

// New creates an orchestrator and registers the handoff contracts.
// A nil store skips persistence.
func New(team *Team, router Router, store storage.SessionStore, maxIterations int) (*Orchestrator, error) {
	if team == nil || team.Root == nil || team.Retrieval == nil || team.Analytics == nil {
		return nil, errors.New("orchestrator needs root, retrieval and analytics agents")
	}
	if router == nil {
		router = NewKeywordRouter()
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	coordinator := NewCoordinator()
	analytics := prompts.AnalyticsAgentName
	if err := coordinator.RegisterContract(ContractRetrieval, Contract{
		FromAgent: prompts.RetrievalAgentName,
		ToAgent:   &analytics,
		Schema:    prompts.RetrievalSchema,
	}); err != nil {
		return nil, err
	}
	if err := coordinator.RegisterContract(ContractAnalytics, Contract{
		FromAgent: prompts.AnalyticsAgentName,
		Schema:    prompts.AnalyticsSchema,
	}); err != nil {
		return nil, err
	}

	return &Orchestrator{
		team:          team,
		router:        router,
		coordinator:   coordinator,
		store:         store,
		maxIterations: maxIterations,
		tracer:        telemetry.NewTracer(),
		metrics:       telemetry.NewMetrics(),
	}, nil
}

// WithTelemetry replaces the tracer and metrics.
func (o *Orchestrator) WithTelemetry(tracer *telemetry.Tracer, metrics *telemetry.Metrics) *Orchestrator {
	if tracer != nil {
		o.tracer = tracer
	}
	if metrics != nil {
		o.metrics = metrics
	}
	return o
}

// Team returns the orchestrated agents.
func (o *Orchestrator) Team() *Team {
	return o.team
}

// Coordinator returns the handoff coordinator.
func (o *Orchestrator) Coordinator() *Coordinator {
	return o.coordinator
}

// Run handles one user query within session, then appends the turn to the
// session and saves it. The session's State and Events are updated in place.
func (o *Orchestrator) Run(ctx context.Context, session *storage.Session, query string) Result {
	startTime := time.Now()
	ctx = log.With(ctx, log.KV{K: "session", V: session.ID})
	ctx, span := o.tracer.Start(ctx, "orchestrator.run", "session.id", session.ID)

	res := o.run(ctx, session, query)
	res.SessionID = session.ID
	res.Status = res.Type.String()

	if res.Answer == "" && res.Error != "" {
		res.Answer = res.Error
	}
	session.AppendEvent("user", query)
	session.AppendEvent(prompts.RootAgentName, res.Answer)

	if o.store != nil {
		if err := o.store.Save(ctx, session); err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "failed to save session"})
			res.Warnings = append(res.Warnings, fmt.Sprintf("session not saved: %v", err))
		}
	}

	res.ExecutionTimeMs = uint64(time.Since(startTime).Milliseconds())
	var spanErr error
	if !res.IsSuccess() {
		spanErr = errors.New(res.Error)
	}
	telemetry.End(span, spanErr)
	return res
}

func (o *Orchestrator) run(ctx context.Context, session *storage.Session, query string) Result {
	state := agent.NewState(session.State)
	defer func() { session.State = state.Snapshot() }()

	res := Result{
		Type:       agent.ResponseSuccess,
		Validation: map[string]ValidationResult{},
		Steps:      []Step{},
	}

	if before := o.team.Root.Config().BeforeAgent; before != nil {
		cb := &agent.CallbackContext{AgentName: o.team.Root.Name(), UserContent: query, State: state}
		if err := before(ctx, cb); err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "root callback failed"})
		}
	}

	res.Intent = o.route(ctx, query)
	state.Set(StateIntent, res.Intent.String())

	// Retrieval results are per turn; a turn without a tool call has no data.
	for _, key := range []string{StateRetrievedRaw, StateRetrievedStructured, StateNeedsChart} {
		state.Delete(key)
	}

	retrieval := o.runAgent(ctx, o.team.Retrieval, state, query, &res)
	res.Retrieval = retrieval.ResultText()
	res.Validation[ContractRetrieval] = o.coordinator.Validate(ContractRetrieval, &retrieval)
	res.HasData = state.GetString(StateRetrievedRaw) != ""
	if v, ok := state.Get(StateNeedsChart); ok {
		res.NeedsChart, _ = v.(bool)
	}
	if !res.NeedsChart {
		res.NeedsChart = NeedsChart(query)
	}

	if !retrieval.IsSuccess() {
		res.Type = retrieval.Type
		res.Error = fmt.Sprintf("retrieval failed: %s", retrieval.ResultText())
		return res
	}
	if !res.Validation[ContractRetrieval].Valid {
		res.Warnings = append(res.Warnings, "retrieval output does not match its contract")
	}

	if res.Intent == IntentRetrieval {
		res.Answer = retrieval.Result
		return res
	}

	// Analytics sees the retrieval's raw text only, never the structured view.
	raw := state.GetString(StateRetrievedRaw)
	if raw == "" {
		raw = retrieval.Result
	}
	input := prompts.AnalyticsInput(state.GetString(StateOriginalQuery), raw)

	analytics := o.runAgent(ctx, o.team.Analytics, state, input, &res)
	res.Validation[ContractAnalytics] = o.coordinator.Validate(ContractAnalytics, &analytics)
	if !analytics.IsSuccess() {
		res.Type = analytics.Type
		res.Error = fmt.Sprintf("analytics failed: %s", analytics.ResultText())
		return res
	}
	if !res.Validation[ContractAnalytics].Valid {
		res.Warnings = append(res.Warnings, "analytics output does not match its contract")
	}

	res.Answer = analytics.Result
	if extracted, err := jsonutil.ExtractJSON(analytics.Result); err == nil {
		res.Analytics = json.RawMessage(extracted)
	}
	return res
}

func (o *Orchestrator) route(ctx context.Context, query string) Intent {
	ctx, span := o.tracer.Start(ctx, "orchestrator.route")
	intent, err := o.router.Route(ctx, query)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "routing failed, using keyword routing"})
		intent = Classify(query)
	}
	span.SetAttributes(attribute.String("intent", intent.String()))
	telemetry.End(span, nil)

	o.metrics.RecordRoute(ctx, intent.String())
	log.Info(ctx, log.KV{K: "msg", V: "query routed"}, log.KV{K: "intent", V: intent.String()})
	return intent
}

func (o *Orchestrator) runAgent(ctx context.Context, a *agent.Agent, state *agent.State, task string, res *Result) agent.Response {
	ctx, span := o.tracer.Start(ctx, "agent.run", "agent.name", a.Name())
	started := time.Now()

	resp := a.Run(ctx, state, task, o.maxIterations)

	o.metrics.RecordAgent(ctx, a.Name(), resp.Type.String(), time.Since(started))
	res.TokenStats.AddResponse(resp)
	res.Steps = append(res.Steps, resp.Steps...)

	var err error
	if !resp.IsSuccess() {
		err = errors.New(resp.ResultText())
	}
	telemetry.End(span, err)
	return resp
}
