package orchestration

import (
	"io"

	"github.com/richinex/datagent/agent"
	"github.com/richinex/datagent/llm"
	"github.com/richinex/datagent/prompts"
	"github.com/richinex/datagent/telemetry"
	"github.com/richinex/datagent/tools"
)

// Generation presets.
var (
	RootGeneration = llm.Options{
		Temperature: llm.Float32(0.1),
		TopP:        llm.Float32(0.95),
		MaxTokens:   4096,
	}
	RetrievalGeneration = llm.Options{
		Temperature: llm.Float32(0.1),
	}
	AnalyticsGeneration = llm.Options{
		Temperature: llm.Float32(0.0),
		MaxTokens:   4096,
	}
)

// Team holds the three agents of the data assistant.
type Team struct {
	Root      *agent.Agent
	Retrieval *agent.Agent
	Analytics *agent.Agent
}

// RootConfig configures the orchestrator agent.
func RootConfig() agent.Config {
	return agent.NewBuilder(prompts.RootAgentName).
		Description(prompts.RootDescription).
		Instruction(prompts.RootInstruction()).
		Generation(RootGeneration).
		BeforeAgent(RootBeforeAgent).
		Build()
}

// RetrievalConfig configures the retrieval agent around the given data tools.
func RetrievalConfig(dataTools []tools.Tool, metrics *telemetry.Metrics) agent.Config {
	return agent.NewBuilder(prompts.RetrievalAgentName).
		Description(prompts.RetrievalDescription).
		Instruction(prompts.RetrievalInstruction()).
		Tools(dataTools).
		OutputKey(StateRetrievedData).
		Generation(RetrievalGeneration).
		BeforeAgent(RetrievalBeforeAgent).
		AfterTool(RetrievalAfterTool(metrics)).
		Build()
}

// AnalyticsConfig configures the tool-less analytics agent.
func AnalyticsConfig() agent.Config {
	return agent.NewBuilder(prompts.AnalyticsAgentName).
		Description(prompts.AnalyticsDescription).
		Instruction(prompts.AnalyticsInstruction()).
		OutputKey(StateAnalyticsOutput).
		Generation(AnalyticsGeneration).
		ResponseSchema(prompts.AnalyticsSchema).
		Build()
}

// NewTeam builds the three agents on one provider.
func NewTeam(provider llm.Provider, dataTools []tools.Tool, metrics *telemetry.Metrics) *Team {
	return &Team{
		Root:      agent.New(RootConfig(), provider),
		Retrieval: agent.New(RetrievalConfig(dataTools, metrics), provider),
		Analytics: agent.New(AnalyticsConfig(), provider),
	}
}

// Verbose enables step tracing on every agent.
func (t *Team) Verbose(enabled bool, w io.Writer) *Team {
	t.Root.Verbose(enabled, w)
	t.Retrieval.Verbose(enabled, w)
	t.Analytics.Verbose(enabled, w)
	return t
}

// Collection lists the team's agent configurations.
func (t *Team) Collection() *agent.Collection {
	return agent.NewCollection().
		AddConfig(t.Root.Config()).
		AddConfig(t.Retrieval.Config()).
		AddConfig(t.Analytics.Config())
}
