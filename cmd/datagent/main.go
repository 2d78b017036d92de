// Package main provides the datagent CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/datagent/cli"
	"github.com/richinex/datagent/orchestration"
	"github.com/richinex/datagent/telemetry"
)

var opts cli.Options

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "datagent",
		Short: "Multi-agent data assistant over MCP tool servers",
		Long: `A data assistant that routes each question to a retrieval agent, which
queries databases and CRMs through MCP tools, and optionally on to an
analytics agent that returns structured insights and chart hints.

Configuration comes from the environment (MODEL_TYPE, MCP_SERVERS_JSON,
SESSION_SERVICE_URI, ...) or a YAML file given with --config.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to a YAML settings file")
	rootCmd.PersistentFlags().StringVar(&opts.Routing, "routing", "", "Routing mode: keyword or llm (overrides ROUTING_MODE)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show agent steps and debug logs")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(agentsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads settings, wires the app and runs fn with a logging context.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) error {
	settings, err := cli.LoadSettings(opts)
	if err != nil {
		return err
	}
	ctx := telemetry.LogContext(cmd.Context(), settings.Log)

	app, err := cli.Setup(ctx, settings, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the session, run, classify and normalize endpoints on :PORT.
Set SERVE_WEB_INTERFACE=true to also serve a minimal web page at /.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				app.PrintAgents()
				return app.Serve(ctx)
			})
		},
	}
}

func askCmd() *cobra.Command {
	var userID, sessionID string

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Answer a single question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return app.Ask(ctx, args[0], userID, sessionID, opts.Verbose)
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", cli.DefaultUserID, "User ID owning the session")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to continue (created if missing)")
	return cmd
}

func chatCmd() *cobra.Command {
	var userID, sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Start an interactive session. State is kept in the store selected by
SESSION_SERVICE_URI, so --session resumes an earlier conversation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return app.Chat(ctx, os.Stdin, userID, sessionID, opts.Verbose)
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", cli.DefaultUserID, "User ID owning the session")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to resume (created if missing)")
	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [query]",
		Short: "Show how a query would be routed",
		Long: `Print the intent (analysis or retrieval) and whether a chart was asked for.
Keyword routing needs no model; --routing llm asks the configured model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := cli.LoadSettings(opts)
			if err != nil {
				return err
			}
			ctx := telemetry.LogContext(cmd.Context(), settings.Log)

			router := orchestration.Router(orchestration.NewKeywordRouter())
			if settings.Agent.Routing == "llm" {
				provider, err := cli.Provider(settings)
				if err != nil {
					return err
				}
				router = orchestration.NewLLMRouter(provider, orchestration.RootGeneration)
			}
			return cli.Classify(ctx, cmd.OutOrStdout(), router, args[0])
		},
	}
}

func normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [file|-]",
		Short: "Normalize a tool result",
		Long:  `Read a tool result (JSON or text) from a file or stdin and print its structured and raw views.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return cli.Normalize(cmd.Context(), cmd.OutOrStdout(), path)
		},
	}
}

func agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List agents, connected tools and example queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				app.PrintAgents()
				return nil
			})
		},
	}
}
