// Package httpapi is the HTTP+JSON front door for the moderation service.
// It maps REST routes onto the community registry and the moderation engine,
// validates input at the boundary, and translates domain errors into status
// codes. Everything stateful lives in the packages it composes.
package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/flagwise/moderation/internal/audit"
	"github.com/flagwise/moderation/internal/cache"
	"github.com/flagwise/moderation/internal/community"
	"github.com/flagwise/moderation/internal/events"
	"github.com/flagwise/moderation/internal/messaging"
	"github.com/flagwise/moderation/internal/metrics"
	"github.com/flagwise/moderation/internal/moderation"
	"github.com/flagwise/moderation/internal/ratelimit"
)

// Config holds tunable parameters for the HTTP server.
type Config struct {
	ListenAddr      string        // address to listen on, e.g. ":3000"
	CheckTimeout    time.Duration // deadline for one moderation check, backend call included
	ShutdownTimeout time.Duration // grace period for in-flight requests on shutdown
	CORSOrigins     []string      // allowed browser origins for the dashboard
	DecisionLimit   int           // max rows returned by the decisions endpoint
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":3000",
		CheckTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		DecisionLimit:   50,
	}
}

// Deps collects the server's collaborators. Registry and Engine are
// required; the rest are optional and skipped when nil (the corresponding
// feature is simply disabled).
type Deps struct {
	Registry  *community.Store
	Engine    *moderation.Engine
	Cache     *cache.Cache
	Audit     *audit.Store
	Limiter   *ratelimit.Limiter
	Publisher *messaging.Client
	Hub       *events.Hub
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	registry   *community.Store
	engine     *moderation.Engine
	cache      *cache.Cache
	audit      *audit.Store
	limiter    *ratelimit.Limiter
	publisher  *messaging.Client
	hub        *events.Hub
	httpServer *http.Server
}

// NewServer wires the routes and returns a Server ready to Start.
func NewServer(config Config, deps Deps) *Server {
	s := &Server{
		config:    config,
		registry:  deps.Registry,
		engine:    deps.Engine,
		cache:     deps.Cache,
		audit:     deps.Audit,
		limiter:   deps.Limiter,
		publisher: deps.Publisher,
		hub:       deps.Hub,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /community", s.handleCreate)
	mux.HandleFunc("GET /community", s.handleList)
	mux.HandleFunc("GET /community/{id}", s.handleGet)
	mux.HandleFunc("DELETE /community/{id}", s.handleDelete)
	mux.HandleFunc("POST /community/{id}/rules", s.handleSetRules)
	mux.HandleFunc("POST /community/{id}/check", s.handleCheck)
	mux.HandleFunc("GET /community/{id}/decisions", s.handleDecisions)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	if s.hub != nil {
		mux.HandleFunc("GET /ws/events", s.hub.HandleUpgrade)
	}

	s.httpServer = &http.Server{
		Addr:    config.ListenAddr,
		Handler: s.withMiddleware(mux),
	}
	return s
}

// Handler exposes the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called. http.ErrServerClosed is returned on clean shutdown.
func (s *Server) Start() error {
	log.Printf("[http] listening on %s", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting new requests and waits for in-flight ones up to
// the configured grace period.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
