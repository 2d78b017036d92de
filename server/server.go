// Package server exposes the orchestrator and session store over HTTP.
//
// Information Hiding:
// - Route table and request decoding hidden
// - Graceful shutdown sequencing hidden

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"goa.design/clue/debug"
	"goa.design/clue/log"

	"github.com/richinex/datagent/config"
	"github.com/richinex/datagent/orchestration"
	"github.com/richinex/datagent/storage"
)

const (
	readHeaderTimeout = 60 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Deps are the services the HTTP handlers call.
type Deps struct {
	Orchestrator *orchestration.Orchestrator
	Store        storage.SessionStore
	// Router answers /classify; nil uses keyword routing.
	Router orchestration.Router
	// Debug logs request and response bodies.
	Debug bool
}

// Server is the HTTP front end.
type Server struct {
	cfg      config.ServerConfig
	deps     Deps
	validate *validator.Validate
}

// New builds a server. Deps.Store is required; without an orchestrator
// /run answers 503.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server needs a session store")
	}
	if deps.Router == nil {
		deps.Router = orchestration.NewKeywordRouter()
	}
	if cfg.AppName == "" {
		cfg.AppName = config.DefaultAppName
	}
	return &Server{cfg: cfg, deps: deps, validate: validator.New()}, nil
}

// Handler returns the routed handler wrapped in request logging. The logger
// is taken from ctx.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /list-apps", s.listApps)

	const sessions = "/apps/{app}/users/{user}/sessions"
	mux.HandleFunc("POST "+sessions, s.createSession)
	mux.HandleFunc("POST "+sessions+"/{id}", s.createSession)
	mux.HandleFunc("GET "+sessions, s.listSessions)
	mux.HandleFunc("GET "+sessions+"/{id}", s.getSession)
	mux.HandleFunc("DELETE "+sessions+"/{id}", s.deleteSession)

	mux.HandleFunc("POST /run", s.run)
	mux.HandleFunc("POST /classify", s.classify)
	mux.HandleFunc("POST /normalize", s.normalize)

	if s.cfg.WebInterface {
		mux.HandleFunc("GET /{$}", s.index)
	}

	var handler http.Handler = mux
	if s.deps.Debug {
		handler = debug.HTTP()(handler)
	}
	return log.HTTP(ctx)(handler)
}

// Serve listens on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, log.KV{K: "msg", V: "HTTP server listening"}, log.KV{K: "addr", V: ln.Addr().String()})
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info(ctx, log.KV{K: "msg", V: "shutting down HTTP server"}, log.KV{K: "addr", V: ln.Addr().String()})
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}
	return nil
}
