// Package web serves the Blackbird Academy pages and the small JSON API.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/rs/cors"

	"github.com/felixgeelhaar/blackbird/internal/config"
	"github.com/felixgeelhaar/blackbird/internal/exercise"
	"github.com/felixgeelhaar/blackbird/internal/gate"
	"github.com/felixgeelhaar/blackbird/internal/lesson"
	"github.com/felixgeelhaar/blackbird/internal/mount"
	"github.com/felixgeelhaar/blackbird/internal/progress"
	"github.com/felixgeelhaar/blackbird/internal/remote"
	"github.com/felixgeelhaar/blackbird/internal/storage"
	"github.com/felixgeelhaar/blackbird/internal/tree"
)

// Authenticator performs login and registration against the auth service
type Authenticator interface {
	Login(ctx context.Context, req remote.LoginRequest) (string, error)
	Register(ctx context.Context, req remote.RegisterRequest) error
}

// Deps are the collaborators the server is built from
type Deps struct {
	Config   *config.Config
	KV       storage.KV
	Auth     Authenticator
	Fetcher  exercise.Fetcher
	Lessons  *lesson.Registry
	Progress *progress.Service

	// Clock drives exercise sessions (default: exercise.SystemClock)
	Clock exercise.Clock

	// Version is reported by /health
	Version string
}

// Server is the Blackbird web daemon
type Server struct {
	cfg      *config.Config
	kv       storage.KV
	auth     Authenticator
	fetcher  exercise.Fetcher
	lessons  *lesson.Registry
	progress *progress.Service
	clock    exercise.Clock
	version  string

	router   *http.ServeMux
	handler  http.Handler
	server   *http.Server
	pages    *renderer
	limiter  ratelimit.RateLimiter
	views    *mount.Registry[*tree.View]
	sessions *mount.Registry[*exercise.Session]
	started  time.Time
}

// NewServer wires routes and middleware
func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.KV == nil || deps.Auth == nil || deps.Fetcher == nil || deps.Lessons == nil {
		return nil, fmt.Errorf("kv, auth, fetcher and lessons are required")
	}

	pages, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	clock := deps.Clock
	if clock == nil {
		clock = exercise.SystemClock{}
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	cfg := deps.Config
	s := &Server{
		cfg:      cfg,
		kv:       deps.KV,
		auth:     deps.Auth,
		fetcher:  deps.Fetcher,
		lessons:  deps.Lessons,
		progress: deps.Progress,
		clock:    clock,
		version:  version,
		router:   http.NewServeMux(),
		pages:    pages,
		views:    mount.NewRegistry[*tree.View]("views", cfg.Exercise.SessionTTL()),
		sessions: mount.NewRegistry[*exercise.Session]("sessions", cfg.Exercise.SessionTTL()),
		started:  time.Now(),
	}

	proxies, err := cfg.Server.ProxyPrefixes()
	if err != nil {
		return nil, err
	}

	s.setupRoutes()

	handler := identityMiddleware(s.router)
	handler = s.browserMiddleware(handler)
	if cfg.Server.RateLimit.Enabled {
		rate := cfg.Server.RateLimit.Rate
		if rate <= 0 {
			rate = 20
		}
		burst := cfg.Server.RateLimit.Burst
		if burst <= 0 {
			burst = rate * 2
		}
		s.limiter = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    burst,
			Interval: time.Second,
		})
		handler = rateLimitMiddleware(s.limiter, proxies)(handler)
	}
	handler = loggingMiddleware(handler)
	handler = correlationIDMiddleware(handler)
	s.handler = recoveryMiddleware(handler)

	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)

	// Pages
	s.router.HandleFunc("GET /{$}", guard(gate.Public, s.handleHome))
	s.router.HandleFunc("GET /login", guard(gate.GuestOnly, s.handleLoginPage))
	s.router.HandleFunc("POST /login", guard(gate.GuestOnly, s.handleLogin))
	s.router.HandleFunc("GET /signup", guard(gate.GuestOnly, s.handleSignupPage))
	s.router.HandleFunc("POST /signup", guard(gate.GuestOnly, s.handleSignup))
	s.router.HandleFunc("POST /logout", s.handleLogout)
	s.router.HandleFunc("GET /dashboard", guard(gate.Protected, s.handleDashboard))

	// Lesson tree
	s.router.HandleFunc("GET /lessons", guard(gate.Protected, s.handleMountLessons))
	s.router.HandleFunc("GET /lessons/{view}", guard(gate.Protected, s.handleLessons))
	s.router.HandleFunc("POST /lessons/{view}/nodes/{path}/click", guard(gate.Protected, s.handleNodeClick))
	s.router.HandleFunc("POST /lessons/{view}/nodes/{path}/toggle", guard(gate.Protected, s.handleNodeToggle))
	s.router.HandleFunc("POST /lessons/{view}/nodes/{path}/exercises/{index}", guard(gate.Protected, s.handleExerciseClick))

	// Exercise sessions
	s.router.HandleFunc("GET /exercise/{code}", guard(gate.Protected, s.handleMountExercise))
	s.router.HandleFunc("GET /exercise/{code}/{session}", guard(gate.Protected, s.handleExercise))
	s.router.HandleFunc("POST /exercise/{code}/{session}/answer", guard(gate.Protected, s.handleAnswer))
	s.router.HandleFunc("POST /exercise/{code}/{session}/difficulty", guard(gate.Protected, s.handleDifficulty))
	s.router.HandleFunc("POST /exercise/{code}/{session}/hints", guard(gate.Protected, s.handleHints))
	s.router.HandleFunc("POST /exercise/{code}/{session}/next", guard(gate.Protected, s.handleNext))
	s.router.HandleFunc("POST /exercise/{code}/{session}/close", guard(gate.Protected, s.handleClose))

	// JSON API
	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/lessons", guard(gate.Protected, s.handleAPILessons))
	api.HandleFunc("GET /api/v1/sessions/{session}", guard(gate.Protected, s.handleAPISession))
	api.HandleFunc("GET /api/v1/me", guard(gate.Protected, s.handleAPIMe))

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", CorrelationIDHeader},
		ExposedHeaders:   []string{CorrelationIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
	s.router.Handle("/api/", c.Handler(api))
}

// Handler returns the full middleware chain, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start sweeps idle instances in the background and serves until Shutdown
func (s *Server) Start(ctx context.Context) error {
	go s.views.Run(ctx, time.Minute)
	go s.sessions.Run(ctx, time.Minute)

	slog.Info("starting blackbird daemon",
		"addr", s.server.Addr,
		"api", s.cfg.API.BaseURL,
		"storage", s.cfg.Storage.Driver,
		"events", s.cfg.Events.Enabled,
	)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and tears down mounted instances
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	err := s.server.Shutdown(ctx)
	s.views.CloseAll()
	s.sessions.CloseAll()

	if s.limiter != nil {
		if cerr := s.limiter.Close(); cerr != nil {
			slog.Warn("failed to close rate limiter", "error", cerr)
		}
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   s.version,
		"uptime_s":  int(time.Since(s.started).Seconds()),
		"sessions":  s.sessions.Len(),
		"views":     s.views.Len(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
