// ReAct (Reason + Act) loop implementation.
//
// All agent execution goes through this module.
//
// Information Hiding:
// - ReAct loop internals hidden
// - LLM communication hidden
// - Tool execution coordination hidden
// - Callback and shared state plumbing hidden

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"goa.design/clue/log"

	"github.com/richinex/datagent/internal/jsonutil"
	"github.com/richinex/datagent/llm"
	"github.com/richinex/datagent/model"
	"github.com/richinex/datagent/tools"
)

// Agent executes tasks using the ReAct pattern.
type Agent struct {
	config       Config
	provider     llm.Provider
	toolRegistry *tools.Registry
	toolExecutor *tools.Executor
	verbose      bool
	out          io.Writer
}

// New creates a new agent with the given configuration and provider.
func New(config Config, provider llm.Provider) *Agent {
	registry := tools.NewRegistry()
	for _, tool := range config.Tools {
		_ = registry.Register(tool) // first registration wins on duplicate names
	}

	return &Agent{
		config:       config,
		provider:     provider,
		toolRegistry: registry,
		toolExecutor: tools.NewDefaultExecutor(),
		out:          os.Stderr,
	}
}

// WithToolConfig overrides the tool execution configuration.
func (a *Agent) WithToolConfig(config tools.ToolConfig) *Agent {
	a.toolExecutor = tools.NewExecutor(config)
	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.config.Name
}

// Description returns the agent's description.
func (a *Agent) Description() string {
	return a.config.Description
}

// Config returns the agent's configuration.
func (a *Agent) Config() Config {
	return a.config
}

// Tools returns metadata for the agent's tools.
func (a *Agent) Tools() []tools.ToolMetadata {
	return a.toolRegistry.List()
}

// Verbose enables printing each reasoning step to w (stderr when nil).
func (a *Agent) Verbose(enabled bool, w io.Writer) *Agent {
	a.verbose = enabled
	if w != nil {
		a.out = w
	}
	return a
}

// Execute runs a task with a fresh state.
func (a *Agent) Execute(ctx context.Context, task string, maxIterations int) Response {
	return a.Run(ctx, NewState(nil), task, maxIterations)
}

// Run executes a task against a shared state. BeforeAgent runs first; on success
// the final answer is stored under OutputKey.
func (a *Agent) Run(ctx context.Context, state *State, task string, maxIterations int) Response {
	if state == nil {
		state = NewState(nil)
	}

	if a.config.BeforeAgent != nil {
		cbCtx := &CallbackContext{AgentName: a.config.Name, UserContent: task, State: state}
		if err := a.config.BeforeAgent(ctx, cbCtx); err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "before-agent callback failed"}, log.KV{K: "agent", V: a.config.Name})
		}
	}

	// A client per run keeps usage accounting scoped to this run.
	client := llm.NewClient(a.provider)

	var resp Response
	if a.config.HasTools() {
		resp = a.react(ctx, client, state, task, maxIterations)
	} else {
		resp = a.answer(ctx, client, state, task)
	}

	if resp.IsSuccess() && a.config.OutputKey != "" {
		state.Set(a.config.OutputKey, resp.Result)
	}
	return resp
}

// answer handles tool-less agents with a single completion.
func (a *Agent) answer(ctx context.Context, client *llm.Client, state *State, task string) Response {
	startTime := time.Now()

	opts := a.config.Generation
	opts.JSON = opts.JSON || a.config.HasResponseSchema()

	conversation := []llm.ChatMessage{
		llm.SystemMessage(a.instruction(state)),
		llm.UserMessage(task),
	}

	response, err := client.Chat(ctx, conversation, opts)
	if err != nil {
		return NewFailureResponse(fmt.Sprintf("Failed to answer: %v", err), nil,
			uint64(time.Since(startTime).Milliseconds()), a.config.Name)
	}

	result := response.Content
	if a.config.HasResponseSchema() {
		if extracted, err := jsonutil.ExtractJSON(result); err == nil {
			result = extracted
		}
	}
	a.trace(0, "", nil, &result)

	usage, calls := client.Usage()
	steps := []model.Step{{Agent: a.config.Name, Iteration: 0, Observation: &result}}
	return NewSuccessResponse(result, steps, nil, uint64(time.Since(startTime).Milliseconds()),
		a.config.Name, &usage, calls)
}

func (a *Agent) react(ctx context.Context, client *llm.Client, state *State, task string, maxIterations int) Response {
	startTime := time.Now()
	var steps []model.Step
	var toolCalls []model.ToolCall

	conversation := []llm.ChatMessage{
		llm.SystemMessage(a.systemPrompt(state, maxIterations)),
		llm.UserMessage(fmt.Sprintf("Task: %s", task)),
	}

	elapsed := func() uint64 { return uint64(time.Since(startTime).Milliseconds()) }

	for iteration := 0; iteration < maxIterations; iteration++ {
		if ctx.Err() != nil {
			return NewFailureResponse(fmt.Sprintf("execution cancelled: %v", ctx.Err()), steps, elapsed(), a.config.Name)
		}

		remaining := maxIterations - iteration

		decision, err := a.think(ctx, client, conversation)
		if err != nil {
			return NewFailureResponse(fmt.Sprintf("Failed to reason: %v", err), steps, elapsed(), a.config.Name)
		}

		if decision.IsFinal {
			result := "Task completed"
			if decision.FinalAnswer != nil {
				result = *decision.FinalAnswer
			}
			a.trace(iteration, decision.Thought, nil, &result)
			steps = append(steps, model.Step{
				Agent:       a.config.Name,
				Iteration:   iteration,
				Thought:     decision.Thought,
				Observation: &result,
			})

			usage, calls := client.Usage()
			return NewSuccessResponse(result, steps, toolCalls, elapsed(), a.config.Name, &usage, calls)
		}

		if decision.Action == nil {
			if hasPriorProgress(steps) {
				result := implicitResult(decision, steps)
				usage, calls := client.Usage()
				return NewSuccessResponse(result, steps, toolCalls, elapsed(), a.config.Name, &usage, calls)
			}

			observation := "No action specified"
			steps = append(steps, model.Step{
				Agent:       a.config.Name,
				Iteration:   iteration,
				Thought:     decision.Thought,
				Observation: &observation,
			})
			conversation = append(conversation, llm.UserMessage(
				"Respond with a tool action, or set is_final=true with a final_answer."))
			continue
		}

		observation, toolCall, err := a.executeTool(ctx, state, decision.Action)
		if toolCall != nil {
			toolCalls = append(toolCalls, *toolCall)
		}

		assistantMsg, merr := json.Marshal(map[string]any{
			"thought":  decision.Thought,
			"action":   map[string]any{"tool": decision.Action.Tool, "input": rawOrEmpty(decision.Action.Input)},
			"is_final": false,
		})
		if merr != nil {
			assistantMsg = []byte(fmt.Sprintf(`{"thought": %q}`, decision.Thought))
		}
		conversation = append(conversation, llm.AssistantMessage(string(assistantMsg)))

		if err != nil {
			observation = fmt.Sprintf("Tool failed: %v", err)
		}

		urgency := ""
		if remaining <= 2 {
			urgency = fmt.Sprintf("\n\nWARNING: Only %d iterations remaining!", remaining-1)
		}
		conversation = append(conversation, llm.UserMessage(fmt.Sprintf(
			"Observation: %s%s\n\nIs the task complete? If yes, set is_final=true.", observation, urgency)))

		actionName := decision.Action.Tool
		a.trace(iteration, decision.Thought, &actionName, &observation)
		steps = append(steps, model.Step{
			Agent:       a.config.Name,
			Iteration:   iteration,
			Thought:     decision.Thought,
			Action:      &actionName,
			Observation: &observation,
		})
	}

	usage, calls := client.Usage()
	return NewTimeoutResponse(steps, toolCalls, elapsed(), a.config.Name, &usage, calls)
}

func (a *Agent) instruction(state *State) string {
	instruction := state.Render(a.config.Instruction)
	if a.config.HasResponseSchema() {
		instruction += fmt.Sprintf("\n\nYour answer must be a JSON document matching this schema:\n%s", a.config.ResponseSchema)
	}
	return instruction
}

func (a *Agent) systemPrompt(state *State, maxIterations int) string {
	return fmt.Sprintf(`%s

Available Tools:
%s

You have a maximum of %d iterations.
Respond in this JSON format:
{
  "thought": "your reasoning",
  "action": {"tool": "name", "input": {...}},
  "is_final": false,
  "final_answer": null
}

When complete: is_final=true, action=null, provide final_answer.`,
		a.instruction(state),
		a.toolRegistry.Description(),
		maxIterations,
	)
}

// think asks the LLM for the next action. Replies without usable JSON become
// a thought with no action.
func (a *Agent) think(ctx context.Context, client *llm.Client, conversation []llm.ChatMessage) (Decision, error) {
	response, err := client.Complete(ctx, conversation, a.config.Generation)
	if err != nil {
		return Decision{}, fmt.Errorf("LLM chat failed: %w", err)
	}

	extracted, err := jsonutil.ExtractJSON(response)
	if err != nil {
		return Decision{Thought: response}, nil
	}

	var decision Decision
	if err := json.Unmarshal([]byte(extracted), &decision); err != nil {
		return Decision{Thought: response}, nil
	}
	return decision, nil
}

// executeTool runs a tool, then hands the outcome to the AfterTool callback.
func (a *Agent) executeTool(ctx context.Context, state *State, action *Action) (string, *model.ToolCall, error) {
	tool, exists := a.toolRegistry.Get(action.Tool)
	if !exists {
		return "", nil, fmt.Errorf("tool '%s' not found", action.Tool)
	}

	args := rawOrEmpty(action.Input)
	startTime := time.Now()

	result, err := a.toolExecutor.Execute(ctx, tool, args)
	if err == nil && !result.Success() {
		err = result.Error
	}

	toolCall := &model.ToolCall{
		Name:       action.Tool,
		InputSize:  len(args),
		OutputSize: len(result.Output),
		DurationMs: uint64(time.Since(startTime).Milliseconds()),
		Success:    err == nil,
	}

	if a.config.AfterTool != nil {
		toolCtx := &ToolContext{
			AgentName: a.config.Name,
			ToolName:  action.Tool,
			Args:      args,
			Err:       err,
			State:     state,
		}
		if err == nil {
			toolCtx.Output = result.Output
			toolCtx.Response = decodeToolOutput(result.Output)
		}
		if cbErr := a.config.AfterTool(ctx, toolCtx); cbErr != nil {
			log.Error(ctx, cbErr, log.KV{K: "msg", V: "after-tool callback failed"},
				log.KV{K: "agent", V: a.config.Name}, log.KV{K: "tool", V: action.Tool})
		}
	}

	if err != nil {
		return "", toolCall, fmt.Errorf("tool %q failed: %w", action.Tool, err)
	}
	return result.Output, toolCall, nil
}

func (a *Agent) trace(iteration int, thought string, action, observation *string) {
	if !a.verbose {
		return
	}
	fmt.Fprintf(a.out, "[%s] step %d", a.config.Name, iteration+1)
	if thought != "" {
		fmt.Fprintf(a.out, " thought: %s", thought)
	}
	if action != nil {
		fmt.Fprintf(a.out, " -> %s", *action)
	}
	fmt.Fprintln(a.out)
	if observation != nil && action != nil {
		fmt.Fprintf(a.out, "  observation: %s\n", preview(*observation, 300))
	}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return json.RawMessage("{}")
	}
	return raw
}

func unmarshalUseNumber(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

func implicitResult(decision Decision, steps []model.Step) string {
	if decision.Thought != "" {
		return decision.Thought
	}
	if len(steps) > 0 && steps[len(steps)-1].Observation != nil {
		return *steps[len(steps)-1].Observation
	}
	return "Task completed"
}

func hasPriorProgress(steps []model.Step) bool {
	for _, s := range steps {
		if s.Action != nil && s.Observation != nil {
			return true
		}
	}
	return false
}
