// Command execution for CLI commands.
//
// Information Hiding:
// - Session lookup and creation hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/richinex/datagent/orchestration"
	"github.com/richinex/datagent/server"
	"github.com/richinex/datagent/storage"
	"github.com/richinex/datagent/tools"
)

const (
	// DefaultUserID owns sessions created from the command line.
	DefaultUserID = "cli"

	maxObservationLen = 300
)

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.Settings.Session.UsesInMemorySessions() {
		fmt.Fprintln(a.out, "Warning: sessions are kept in memory and will be lost on restart")
	}
	srv, err := server.New(a.Settings.Server, server.Deps{
		Orchestrator: a.Orchestrator,
		Store:        a.Store,
		Router:       a.Router,
		Debug:        a.Settings.Log.Debug,
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Ask answers a single query in a fresh or existing session.
func (a *App) Ask(ctx context.Context, query, userID, sessionID string, verbose bool) error {
	session, err := a.session(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	res := a.Orchestrator.Run(ctx, session, query)
	a.printResult(res, verbose)
	if !res.IsSuccess() {
		return fmt.Errorf("%s: %s", res.Status, res.Error)
	}
	return nil
}

// Chat reads queries from in until EOF or "exit". The session persists in
// the configured store, so passing the same session ID resumes it.
func (a *App) Chat(ctx context.Context, in io.Reader, userID, sessionID string, verbose bool) error {
	session, err := a.session(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	if n := len(session.Events); n > 0 {
		fmt.Fprintf(a.out, "Resuming session '%s' (%d messages)\n\n", session.ID, n)
	} else {
		fmt.Fprintf(a.out, "Session '%s'\n\n", session.ID)
	}
	fmt.Fprintf(a.out, "Ask about your data. Type 'exit' to quit.\n\n")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res := a.Orchestrator.Run(ctx, session, input)
		a.printResult(res, verbose)
	}
	return scanner.Err()
}

// session loads sessionID for userID, creating it when missing. An empty
// sessionID creates a new session.
func (a *App) session(ctx context.Context, userID, sessionID string) (*storage.Session, error) {
	if userID == "" {
		userID = DefaultUserID
	}
	appName := a.Settings.Server.AppName

	if sessionID != "" {
		session, err := a.Store.Get(ctx, appName, userID, sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, storage.ErrSessionNotFound) {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	session, err := a.Store.Create(ctx, appName, userID, sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (a *App) printResult(res orchestration.Result, verbose bool) {
	if verbose {
		printSteps(a.out, res.Steps)
	}

	fmt.Fprintf(a.out, "\n[%s] %s\n\n", res.Intent, res.Answer)
	if res.Analytics != nil {
		var pretty strings.Builder
		if err := json.Indent(&pretty, res.Analytics, "", "  "); err == nil {
			fmt.Fprintf(a.out, "%s\n\n", pretty.String())
		}
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(a.out, "Warning: %s\n", w)
	}
	if verbose {
		printTokenStats(a.out, res.TokenStats)
	}
	fmt.Fprintf(a.out, "(%s in %dms)\n\n", res.Status, res.ExecutionTimeMs)
}

// Classify prints the routing decision for query.
func Classify(ctx context.Context, w io.Writer, router orchestration.Router, query string) error {
	intent, err := router.Route(ctx, query)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "intent: %s\n", intent)
	fmt.Fprintf(w, "needs_chart: %t\n", orchestration.NeedsChart(query))
	return nil
}

// Normalize reads a tool result from path ("-" for stdin) and prints its
// normalized form as JSON.
func Normalize(ctx context.Context, w io.Writer, path string) error {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read tool result: %w", err)
	}

	out, err := json.MarshalIndent(tools.NormalizeJSON(ctx, data), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", out)
	return nil
}

func printSteps(w io.Writer, steps []orchestration.Step) {
	fmt.Fprintln(w, "--- Steps ---")
	for _, step := range steps {
		fmt.Fprintf(w, "[%s:%d] %s\n", step.Agent, step.Iteration, step.Thought)
		if step.Action != nil {
			fmt.Fprintf(w, "    Action: %s\n", *step.Action)
		}
		if step.Observation != nil {
			fmt.Fprintf(w, "    Observation: %s\n", truncateString(*step.Observation, maxObservationLen))
		}
	}
	fmt.Fprintln(w, "-------------")
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func printTokenStats(w io.Writer, stats orchestration.TokenStats) {
	fmt.Fprintf(w, "Token Usage:\n")
	fmt.Fprintf(w, "  LLM calls: %d\n", stats.LLMCalls)
	fmt.Fprintf(w, "  Prompt tokens: %d\n", stats.PromptTokens)
	fmt.Fprintf(w, "  Completion tokens: %d\n", stats.CompletionTokens)
	fmt.Fprintf(w, "  Total tokens: %d\n", stats.TotalTokens)
}
