// Package config provides application settings loaded from environment variables.
//
// Settings are created once via New() or Load() and passed explicitly to every
// component that needs them. Loading handles:
// - Optional YAML settings file
// - Environment variable parsing with validation
// - Default value application
// - Model provider selection (vLLM, DeepSeek, OpenAI, Anthropic, Gemini)

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Settings holds all application configuration.
type Settings struct {
	Model   ModelConfig   `yaml:"model"`
	MCP     MCPConfig     `yaml:"mcp"`
	Session SessionConfig `yaml:"session"`
	Server  ServerConfig  `yaml:"server"`
	Agent   AgentConfig   `yaml:"agent"`
	Log     LogConfig     `yaml:"log"`
}

// ModelConfig holds LLM provider configuration shared by all agents.
type ModelConfig struct {
	Type      string `yaml:"type" validate:"oneof=vllm deepseek openai anthropic gemini"`
	Name      string `yaml:"name" validate:"required"`
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
	APIKey    string `yaml:"api_key"`
	MaxTokens uint32 `yaml:"max_tokens" validate:"gt=0"`
}

// MCPServer is one entry of MCP_SERVERS_JSON.
type MCPServer struct {
	URL  string `json:"url" yaml:"url" validate:"omitempty,url"`
	Auth bool   `json:"auth" yaml:"auth"`
}

// MCPConfig holds MCP tool server configuration.
type MCPConfig struct {
	Servers        []MCPServer `yaml:"servers" validate:"dive"`
	AuthToken      string      `yaml:"auth_token"`
	AuthScheme     string      `yaml:"auth_scheme" validate:"required"`
	TimeoutSeconds int         `yaml:"timeout_seconds" validate:"min=1"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	// URI is empty for in-memory sessions, otherwise memory://, sqlite://path or redis://host.
	URI string `yaml:"uri"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int    `yaml:"port" validate:"min=1,max=65535"`
	AppName      string `yaml:"app_name" validate:"required"`
	WebInterface bool   `yaml:"web_interface"`
}

// AgentConfig holds agent execution configuration.
type AgentConfig struct {
	MaxIterations int    `yaml:"max_iterations" validate:"min=1"`
	Routing       string `yaml:"routing" validate:"oneof=keyword llm"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Format string `yaml:"format" validate:"oneof=auto json terminal"`
	Debug  bool   `yaml:"debug"`
}

// providerInfo holds environment lookup configuration for a model provider.
type providerInfo struct {
	modelEnv       string
	defaultModel   string
	apiKeyEnv      string
	defaultAPIKey  string
	baseURLEnv     string
	defaultBaseURL string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"vllm":      {"VLLM_MODEL_NAME", "openai/mistral-large:123b", "VLLM_API_KEY", "EMPTY", "VLLM_BASE_URL", "http://localhost:9000/v1"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY", "", "DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"},
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY", "", "OPENAI_BASE_URL", ""},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY", "", "", ""},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY", "", "", ""},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// Default values for settings not tied to a provider.
const (
	DefaultPort           = 8080
	DefaultAppName        = "data_science"
	DefaultAuthScheme     = "Bearer"
	DefaultMCPTimeout     = 60
	DefaultMaxIterations  = 10
	DefaultMaxTokens      = 4096
	DefaultRoutingMode    = "keyword"
	DefaultLogFormat      = "auto"
	defaultModelType      = "vllm"
	mcpServersEnvVariable = "MCP_SERVERS_JSON"
)

// New creates settings from environment variables only.
func New() (Settings, error) {
	return Load("")
}

// Load creates settings from an optional YAML file and environment variables.
// Environment variables take precedence over file values. An empty path skips the file.
// Returns an error if the file cannot be read, values are malformed, or validation fails.
func Load(path string) (Settings, error) {
	settings := defaults()

	if path != "" {
		if err := loadFile(path, &settings); err != nil {
			return Settings{}, err
		}
	}

	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	if err := validate(settings); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

// MustNew creates settings from the environment.
// Panics if environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

func defaults() Settings {
	return Settings{
		Model: ModelConfig{MaxTokens: DefaultMaxTokens},
		MCP: MCPConfig{
			AuthScheme:     DefaultAuthScheme,
			TimeoutSeconds: DefaultMCPTimeout,
		},
		Server: ServerConfig{
			Port:    DefaultPort,
			AppName: DefaultAppName,
		},
		Agent: AgentConfig{
			MaxIterations: DefaultMaxIterations,
			Routing:       DefaultRoutingMode,
		},
		Log: LogConfig{Format: DefaultLogFormat},
	}
}

func applyEnv(s *Settings) error {
	if err := applyModelEnv(&s.Model); err != nil {
		return err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", s.Model.MaxTokens)
	if err != nil {
		return err
	}
	s.Model.MaxTokens = maxTokens

	if raw := os.Getenv(mcpServersEnvVariable); raw != "" {
		servers, err := ParseMCPServers(raw)
		if err != nil {
			return err
		}
		s.MCP.Servers = servers
	}
	s.MCP.AuthToken = getEnvString("MCP_AUTH_TOKEN", s.MCP.AuthToken)
	s.MCP.AuthScheme = getEnvString("MCP_AUTH_SCHEME", s.MCP.AuthScheme)
	if s.MCP.TimeoutSeconds, err = getEnvInt("MCP_TIMEOUT_SECONDS", s.MCP.TimeoutSeconds); err != nil {
		return err
	}

	s.Session.URI = getEnvString("SESSION_SERVICE_URI", s.Session.URI)

	if s.Server.Port, err = getEnvInt("PORT", s.Server.Port); err != nil {
		return err
	}
	s.Server.AppName = getEnvString("APP_NAME", s.Server.AppName)
	s.Server.WebInterface = getEnvBool("SERVE_WEB_INTERFACE", s.Server.WebInterface)

	if s.Agent.MaxIterations, err = getEnvInt("AGENT_MAX_ITERATIONS", s.Agent.MaxIterations); err != nil {
		return err
	}
	s.Agent.Routing = strings.ToLower(getEnvString("ROUTING_MODE", s.Agent.Routing))

	s.Log.Format = strings.ToLower(getEnvString("LOG_FORMAT", s.Log.Format))
	s.Log.Debug = getEnvBool("DEBUG", s.Log.Debug)

	return nil
}

// applyModelEnv resolves the provider and fills model, key and base URL.
// A DeepSeek API key selects DeepSeek unless another hosted provider was requested.
func applyModelEnv(m *ModelConfig) error {
	fileType := normalizeProvider(m.Type)
	resolved := normalizeProvider(os.Getenv("MODEL_TYPE"))
	if resolved == "" {
		resolved = fileType
	}
	if resolved == "" {
		resolved = defaultModelType
	}
	if resolved == defaultModelType && os.Getenv("DEEPSEEK_API_KEY") != "" {
		resolved = "deepseek"
	}

	info, err := getProviderInfo(resolved)
	if err != nil {
		return err
	}

	// File values only apply to the provider they were written for.
	if fileType != "" && fileType != resolved {
		m.Name, m.APIKey, m.BaseURL = "", "", ""
	}

	m.Type = resolved
	m.Name = firstNonEmpty(os.Getenv(info.modelEnv), m.Name, info.defaultModel)
	m.APIKey = firstNonEmpty(os.Getenv(info.apiKeyEnv), m.APIKey, info.defaultAPIKey)
	if info.baseURLEnv != "" {
		m.BaseURL = firstNonEmpty(os.Getenv(info.baseURLEnv), m.BaseURL, info.defaultBaseURL)
	}
	return nil
}

// ParseMCPServers parses the MCP_SERVERS_JSON list format: [{"url": "...", "auth": true}].
func ParseMCPServers(raw string) ([]MCPServer, error) {
	var servers []MCPServer
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		return nil, fmt.Errorf("invalid value for %s: must be a JSON list of {url, auth}: %w", mcpServersEnvVariable, err)
	}
	return servers, nil
}

// AuthHeader returns the Authorization header value for servers that require auth.
func (c MCPConfig) AuthHeader() (string, error) {
	if c.AuthToken == "" {
		return "", fmt.Errorf("MCP_AUTH_TOKEN environment variable not set")
	}
	return c.AuthScheme + " " + c.AuthToken, nil
}

// UsesInMemorySessions reports whether sessions will be lost on restart.
func (c SessionConfig) UsesInMemorySessions() bool {
	return c.URI == "" || strings.HasPrefix(c.URI, "memory://")
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown model type: %q", provider)
	}
	return info, nil
}

// SupportedProviders returns the list of supported model types.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	switch strings.ToLower(val) {
	case "true", "1":
		return true
	default:
		return false
	}
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
