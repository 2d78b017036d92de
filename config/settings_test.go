package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var settingsEnvKeys = []string{
	"MODEL_TYPE", "DEEPSEEK_API_KEY", "DEEPSEEK_MODEL", "DEEPSEEK_BASE_URL",
	"VLLM_MODEL_NAME", "VLLM_BASE_URL", "VLLM_API_KEY",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "GEMINI_API_KEY", "GEMINI_MODEL",
	"LLM_MAX_TOKENS", "MCP_SERVERS_JSON", "MCP_AUTH_TOKEN", "MCP_AUTH_SCHEME", "MCP_TIMEOUT_SECONDS",
	"SESSION_SERVICE_URI", "PORT", "APP_NAME", "SERVE_WEB_INTERFACE",
	"AGENT_MAX_ITERATIONS", "ROUTING_MODE", "LOG_FORMAT", "DEBUG",
}

// clearEnv blanks every variable Load reads so host settings don't leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range settingsEnvKeys {
		t.Setenv(key, "")
	}
}

func TestNewDefaults(t *testing.T) {
	clearEnv(t)

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Model.Type != "vllm" {
		t.Errorf("expected model type 'vllm', got %q", settings.Model.Type)
	}
	if settings.Model.Name != "openai/mistral-large:123b" {
		t.Errorf("expected default vLLM model, got %q", settings.Model.Name)
	}
	if settings.Model.BaseURL != "http://localhost:9000/v1" {
		t.Errorf("expected default vLLM base URL, got %q", settings.Model.BaseURL)
	}
	if settings.Model.APIKey != "EMPTY" {
		t.Errorf("expected vLLM key 'EMPTY', got %q", settings.Model.APIKey)
	}
	if settings.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", settings.Server.Port)
	}
	if settings.MCP.AuthScheme != "Bearer" {
		t.Errorf("expected auth scheme 'Bearer', got %q", settings.MCP.AuthScheme)
	}
	if settings.Agent.Routing != "keyword" {
		t.Errorf("expected keyword routing, got %q", settings.Agent.Routing)
	}
	if !settings.Session.UsesInMemorySessions() {
		t.Error("expected in-memory sessions without SESSION_SERVICE_URI")
	}
	if len(settings.MCP.Servers) != 0 {
		t.Errorf("expected no MCP servers, got %d", len(settings.MCP.Servers))
	}
}

func TestDeepSeekKeySelectsDeepSeek(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Model.Type != "deepseek" {
		t.Errorf("expected 'deepseek', got %q", settings.Model.Type)
	}
	if settings.Model.Name != "deepseek-chat" {
		t.Errorf("expected 'deepseek-chat', got %q", settings.Model.Name)
	}
	if settings.Model.APIKey != "sk-test" {
		t.Errorf("expected key from env, got %q", settings.Model.APIKey)
	}
}

func TestExplicitModelTypeWinsOverDeepSeekKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("MODEL_TYPE", "claude")

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Model.Type != "anthropic" {
		t.Errorf("expected 'anthropic' (normalized from 'claude'), got %q", settings.Model.Type)
	}
}

func TestUnknownModelType(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_TYPE", "unknown_provider")

	if _, err := New(); err == nil {
		t.Error("expected error for unknown model type")
	}
}

func TestMCPServersFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCP_SERVERS_JSON", `[{"url": "http://localhost:8001/mcp"}, {"url": "https://crm.example.com/mcp", "auth": true}]`)
	t.Setenv("MCP_AUTH_TOKEN", "secret")
	t.Setenv("MCP_AUTH_SCHEME", "Token")

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(settings.MCP.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(settings.MCP.Servers))
	}
	if settings.MCP.Servers[0].Auth {
		t.Error("expected first server without auth")
	}
	if !settings.MCP.Servers[1].Auth {
		t.Error("expected second server with auth")
	}

	header, err := settings.MCP.AuthHeader()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if header != "Token secret" {
		t.Errorf("expected 'Token secret', got %q", header)
	}
}

func TestMCPServersMalformed(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCP_SERVERS_JSON", `{"url": "http://localhost"}`)

	_, err := New()
	if err == nil {
		t.Fatal("expected error for non-list MCP_SERVERS_JSON")
	}
	if !strings.Contains(err.Error(), "MCP_SERVERS_JSON") {
		t.Errorf("expected error to name MCP_SERVERS_JSON, got %v", err)
	}
}

func TestAuthHeaderWithoutToken(t *testing.T) {
	cfg := MCPConfig{AuthScheme: "Bearer"}
	if _, err := cfg.AuthHeader(); err == nil {
		t.Error("expected error when token is missing")
	}
}

func TestInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	_, err := New()
	if err == nil {
		t.Fatal("expected error for invalid PORT")
	}
	if !strings.Contains(err.Error(), "invalid value for PORT") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPortOutOfRangeFailsValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "70000")

	_, err := New()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "Port") {
		t.Errorf("expected error to mention Port, got %v", err)
	}
}

func TestInvalidRoutingMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROUTING_MODE", "random")

	if _, err := New(); err == nil {
		t.Error("expected validation error for unknown routing mode")
	}
}

func TestWebInterfaceFlag(t *testing.T) {
	cases := map[string]bool{
		"true":  true,
		"TRUE":  true,
		"1":     true,
		"false": false,
		"yes":   false,
	}
	for val, want := range cases {
		clearEnv(t)
		t.Setenv("SERVE_WEB_INTERFACE", val)

		settings, err := New()
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", val, err)
		}
		if settings.Server.WebInterface != want {
			t.Errorf("SERVE_WEB_INTERFACE=%q: expected %v, got %v", val, want, settings.Server.WebInterface)
		}
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "datagent.yaml")
	content := `
model:
  type: vllm
  name: meta-llama/Llama-3.1-70B
  base_url: http://vllm.internal:8000/v1
server:
  port: 9090
  app_name: analytics
agent:
  max_iterations: 4
mcp:
  servers:
    - url: http://localhost:8001/mcp
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write settings file: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Model.Name != "meta-llama/Llama-3.1-70B" {
		t.Errorf("expected model from file, got %q", settings.Model.Name)
	}
	if settings.Model.APIKey != "EMPTY" {
		t.Errorf("expected default vLLM key, got %q", settings.Model.APIKey)
	}
	if settings.Server.Port != 9090 {
		t.Errorf("expected port 9090 from file, got %d", settings.Server.Port)
	}
	if settings.Agent.MaxIterations != 4 {
		t.Errorf("expected 4 iterations from file, got %d", settings.Agent.MaxIterations)
	}
	if settings.Agent.Routing != "keyword" {
		t.Errorf("expected default routing to survive the file, got %q", settings.Agent.Routing)
	}
	if len(settings.MCP.Servers) != 1 {
		t.Errorf("expected 1 server from file, got %d", len(settings.MCP.Servers))
	}

	t.Setenv("PORT", "7000")
	t.Setenv("VLLM_MODEL_NAME", "override")

	settings, err = Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Server.Port != 7000 {
		t.Errorf("expected env port 7000, got %d", settings.Server.Port)
	}
	if settings.Model.Name != "override" {
		t.Errorf("expected env model, got %q", settings.Model.Name)
	}
}

func TestLoadFileForDifferentProviderIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_TYPE", "deepseek")

	path := filepath.Join(t.TempDir(), "datagent.yaml")
	content := "model:\n  type: vllm\n  name: local-model\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write settings file: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Model.Name != "deepseek-chat" {
		t.Errorf("expected deepseek default model, got %q", settings.Model.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing settings file")
	}
}

func TestMustNewPanicsOnInvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENT_MAX_ITERATIONS", "lots")

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected MustNew to panic")
		}
	}()
	MustNew()
}

func TestSupportedProviders(t *testing.T) {
	got := SupportedProviders()
	if len(got) != 5 {
		t.Errorf("expected 5 providers, got %d: %v", len(got), got)
	}
}
