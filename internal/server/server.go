// Package server implements the HTTP and WebSocket transport for the
// diagram-generation backend: REST endpoints for conversations, file
// scanning, diagram render/validate, shell sessions, and the MCP-style
// tool-call surface, grounded on the teacher's internal/server package
// (chi + cors + middleware skeleton, response helpers) generalized from
// an agentic coding-assistant API to this spec's conversation/diagram
// surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/codediagram/backend/internal/convo"
	"github.com/codediagram/backend/internal/diagram"
	"github.com/codediagram/backend/internal/history"
	"github.com/codediagram/backend/internal/scanner"
	"github.com/codediagram/backend/internal/shellsession"
	"github.com/codediagram/backend/internal/toolsurface"
	"github.com/codediagram/backend/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Port         int
	Directory    string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		Directory:    "",
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
	}
}

// Server is the HTTP + WS server for C5/C7 conversations, C8 shell
// sessions, and C9 tools, backed by C1/C4/C10.
type Server struct {
	config *Config
	router *chi.Mux
	httpSrv *http.Server

	appConfig *types.Config

	scanner    *scanner.Scanner
	renderer   *diagram.Renderer
	convos     *convo.Registry
	shells     *shellsession.Manager
	histories  *history.Store
	tools      *toolsurface.Registry

	upgrader websocketUpgrader
}

// New wires every collaborator package into a Server and registers routes.
func New(cfg *Config, appConfig *types.Config, deps convo.Deps, shells *shellsession.Manager, histories *history.Store, tools *toolsurface.Registry) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:    cfg,
		router:    r,
		appConfig: appConfig,
		scanner:   deps.Scanner,
		renderer:  deps.Renderer,
		convos:    convo.NewRegistry(deps),
		shells:    shells,
		histories: histories,
		tools:     tools,
		upgrader:  newWebsocketUpgrader(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.router.Use(s.instanceContext)
}

// instanceContext middleware injects the workspace directory into context,
// allowing a per-request override via the `directory` query param.
func (s *Server) instanceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dir := r.URL.Query().Get("directory")
		if dir == "" && s.appConfig != nil {
			dir = s.appConfig.CodePath
		}
		ctx := context.WithValue(r.Context(), contextKeyDirectory, dir)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its shell-session manager.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shells.Shutdown()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

type contextKey string

const contextKeyDirectory contextKey = "directory"

func getDirectory(ctx context.Context) string {
	if dir, ok := ctx.Value(contextKeyDirectory).(string); ok {
		return dir
	}
	return ""
}
