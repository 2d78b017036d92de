// Application wiring shared by every command.
//
// Information Hiding:
// - Settings, provider, tool and store construction hidden
// - Resource cleanup order hidden

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"goa.design/clue/log"

	"github.com/richinex/datagent/config"
	"github.com/richinex/datagent/llm"
	"github.com/richinex/datagent/mcp"
	"github.com/richinex/datagent/orchestration"
	"github.com/richinex/datagent/storage"
	"github.com/richinex/datagent/telemetry"
)

// Options holds global CLI flags.
type Options struct {
	ConfigPath string
	// Routing overrides ROUTING_MODE when set.
	Routing string
	Verbose bool
}

// App is a fully wired data assistant.
type App struct {
	Settings     config.Settings
	Provider     llm.Provider
	Toolset      *mcp.Toolset
	Store        storage.SessionStore
	Router       orchestration.Router
	Orchestrator *orchestration.Orchestrator

	out io.Writer
}

// LoadSettings reads settings and applies flag overrides.
func LoadSettings(opts Options) (config.Settings, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Settings{}, err
	}
	if opts.Routing != "" {
		settings.Agent.Routing = opts.Routing
	}
	if opts.Verbose {
		settings.Log.Debug = true
	}
	return settings, nil
}

// Setup connects the provider, MCP servers and session store and builds the
// orchestrator. The caller must Close the app.
func Setup(ctx context.Context, settings config.Settings, opts Options) (*App, error) {
	provider, err := Provider(settings)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, log.KV{K: "msg", V: "using model"}, log.KV{K: "provider", V: provider.Name()}, log.KV{K: "model", V: provider.Model()})

	return setupWith(ctx, settings, opts, provider)
}

// Provider creates the configured LLM provider.
func Provider(settings config.Settings) (llm.Provider, error) {
	provider, err := llm.FromConfig(settings.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return provider, nil
}

func setupWith(ctx context.Context, settings config.Settings, opts Options, provider llm.Provider) (*App, error) {
	app := &App{Settings: settings, Provider: provider, out: os.Stdout}

	router, err := orchestration.NewRouter(settings.Agent.Routing, provider, orchestration.RootGeneration)
	if err != nil {
		return nil, err
	}
	app.Router = router

	store, err := storage.Open(ctx, settings.Session.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	app.Store = store

	tracer := telemetry.NewTracer()
	metrics := telemetry.NewMetrics()
	app.Toolset = mcp.ConnectAll(ctx, settings.MCP, tracer)

	team := orchestration.NewTeam(provider, app.Toolset.Tools(), metrics)
	if opts.Verbose {
		team.Verbose(true, os.Stderr)
	}

	o, err := orchestration.New(team, router, store, settings.Agent.MaxIterations)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Orchestrator = o.WithTelemetry(tracer, metrics)
	return app, nil
}

// Close releases MCP sessions and the session store.
func (a *App) Close() error {
	var errs []error
	if err := a.Toolset.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
