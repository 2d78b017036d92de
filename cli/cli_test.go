package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richinex/datagent/config"
	"github.com/richinex/datagent/llm"
	"github.com/richinex/datagent/orchestration"
)

const cannedRetrieval = `{"data_source": "postgresql", "data_type": "table", "summary": "Customers", "data": {}, "needs_visualization": false, "error": null}`

type cannedProvider struct{}

func (cannedProvider) Name() string  { return "canned" }
func (cannedProvider) Model() string { return "canned-model" }
func (cannedProvider) Chat(ctx context.Context, messages []llm.ChatMessage, opts llm.Options) (llm.Response, error) {
	return llm.Response{Content: cannedRetrieval, Usage: &llm.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}}, nil
}

func testSettings() config.Settings {
	return config.Settings{
		MCP:     config.MCPConfig{AuthScheme: config.DefaultAuthScheme, TimeoutSeconds: 1},
		Session: config.SessionConfig{URI: "memory://"},
		Server:  config.ServerConfig{Port: config.DefaultPort, AppName: config.DefaultAppName},
		Agent:   config.AgentConfig{MaxIterations: 3, Routing: "keyword"},
		Log:     config.LogConfig{Format: "json"},
	}
}

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	app, err := setupWith(context.Background(), testSettings(), Options{}, cannedProvider{})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	t.Cleanup(func() { app.Close() })

	var out bytes.Buffer
	app.out = &out
	return app, &out
}

func TestAskPrintsAnswer(t *testing.T) {
	app, out := newTestApp(t)

	if err := app.Ask(context.Background(), "list all customers", "", "s1", true); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "[retrieval] "+cannedRetrieval) {
		t.Errorf("expected retrieval answer, got %q", got)
	}
	if !strings.Contains(got, "Total tokens: 5") {
		t.Errorf("expected token stats in verbose output, got %q", got)
	}

	session, err := app.Store.Get(context.Background(), config.DefaultAppName, DefaultUserID, "s1")
	if err != nil {
		t.Fatalf("expected session s1 to be created: %v", err)
	}
	if len(session.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(session.Events))
	}
}

func TestChatResumesSession(t *testing.T) {
	app, out := newTestApp(t)
	ctx := context.Background()

	if err := app.Chat(ctx, strings.NewReader("list all customers\n\nexit\nnot reached\n"), "alice", "chat-1", false); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !strings.Contains(out.String(), "Session 'chat-1'") {
		t.Errorf("expected new session banner, got %q", out.String())
	}

	out.Reset()
	if err := app.Chat(ctx, strings.NewReader("show tables\n"), "alice", "chat-1", false); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !strings.Contains(out.String(), "Resuming session 'chat-1' (2 messages)") {
		t.Errorf("expected resume banner, got %q", out.String())
	}

	session, err := app.Store.Get(ctx, config.DefaultAppName, "alice", "chat-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(session.Events) != 4 {
		t.Errorf("expected 4 events after two turns, got %d", len(session.Events))
	}
}

func TestSetupRejectsUnknownRouting(t *testing.T) {
	settings := testSettings()
	settings.Agent.Routing = "dice"
	if _, err := setupWith(context.Background(), settings, Options{}, cannedProvider{}); err == nil {
		t.Fatal("expected error for unknown routing mode")
	}
}

func TestClassify(t *testing.T) {
	var out bytes.Buffer
	if err := Classify(context.Background(), &out, orchestration.NewKeywordRouter(), "plot sales by region"); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	want := "intent: analysis\nneeds_chart: true\n"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

func TestNormalizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	if err := os.WriteFile(path, []byte(`{"columns": ["id"], "rows": [[1], [2]]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := Normalize(context.Background(), &out, path); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !strings.Contains(out.String(), `"shape": "tabular"`) {
		t.Errorf("expected tabular shape, got %s", out.String())
	}

	if err := Normalize(context.Background(), &out, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPrintBanner(t *testing.T) {
	app, out := newTestApp(t)
	app.PrintAgents()

	got := out.String()
	for _, want := range []string{
		"data_science_orchestrator",
		"data_retrieval_agent",
		"analytics_agent",
		"(none connected)",
		"Retrieval tools (0):",
		"[analysis] Analyze sales trends by region",
		"[retrieval] List all tables in the database",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected banner to contain %q", want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("héllo", 2); got != "hé..." {
		t.Errorf("expected %q, got %q", "hé...", got)
	}
	if got := truncateString("hi", 5); got != "hi" {
		t.Errorf("expected %q, got %q", "hi", got)
	}
}
