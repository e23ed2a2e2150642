// Package daemon wires the blackbird services together for the web daemon
// and the CLI.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/blackbird/internal/config"
	"github.com/felixgeelhaar/blackbird/internal/lesson"
	"github.com/felixgeelhaar/blackbird/internal/progress"
	"github.com/felixgeelhaar/blackbird/internal/queue"
	"github.com/felixgeelhaar/blackbird/internal/remote"
	"github.com/felixgeelhaar/blackbird/internal/storage"
	"github.com/felixgeelhaar/blackbird/internal/web"
)

// Services are the collaborators shared by every entry point
type Services struct {
	Backend   storage.Backend
	Remote    *remote.Client
	Lessons   *lesson.Registry
	Progress  *progress.Service
	Publisher queue.Publisher

	conn *queue.Connection
}

// Open builds the services described by cfg. Event publishing is
// best-effort: an unreachable broker logs a warning and falls back to the
// no-op publisher.
func Open(ctx context.Context, cfg *config.Config) (*Services, error) {
	backend, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	client, err := remote.New(RemoteConfig(cfg.API))
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("create api client: %w", err)
	}

	lessons := lesson.NewRegistry(lesson.NewLoader(cfg.Lessons.Path))
	if err := lessons.Load(); err != nil {
		backend.Close()
		return nil, err
	}

	s := &Services{
		Backend:   backend,
		Remote:    client,
		Lessons:   lessons,
		Publisher: queue.NopPublisher{},
	}

	if cfg.Events.Enabled {
		conn, err := queue.NewConnection(cfg.Events.AMQPURL, cfg.Events.MessageTTL())
		if err != nil {
			slog.Warn("event publishing disabled", "error", err)
		} else {
			s.conn = conn
			s.Publisher = queue.NewProducer(conn)
		}
	}

	s.Progress = progress.NewService(backend, s.Publisher)
	return s, nil
}

// Close releases the broker connection and the storage backend
func (s *Services) Close() error {
	var errs []error
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}
	if err := s.Backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}

// RemoteConfig maps the api config section onto the client settings
func RemoteConfig(api config.APIConfig) remote.Config {
	rc := remote.DefaultConfig()
	if api.BaseURL != "" {
		rc.BaseURL = api.BaseURL
	}
	if t := api.Timeout(); t > 0 {
		rc.Timeout = t
	}
	if api.MaxAttempts > 0 {
		rc.Resilience.MaxAttempts = api.MaxAttempts
	}
	rc.Resilience.EnableRetry = rc.Resilience.MaxAttempts > 1
	rc.Resilience.EnableCircuitBreaker = api.CircuitBreaker
	return rc
}

// Daemon is the running web daemon
type Daemon struct {
	cfg      *config.Config
	services *Services
	server   *web.Server
}

// New opens the services and builds the web server
func New(ctx context.Context, cfg *config.Config, version string) (*Daemon, error) {
	services, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	server, err := web.NewServer(web.Deps{
		Config:   cfg,
		KV:       services.Backend,
		Auth:     services.Remote,
		Fetcher:  services.Remote,
		Lessons:  services.Lessons,
		Progress: services.Progress,
		Version:  version,
	})
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("create server: %w", err)
	}

	return &Daemon{cfg: cfg, services: services, server: server}, nil
}

// Handler exposes the full middleware chain
func (d *Daemon) Handler() http.Handler {
	return d.server.Handler()
}

// Run serves until ctx is cancelled, then shuts down within timeout
func (d *Daemon) Run(ctx context.Context, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		d.services.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := d.server.Shutdown(shutdownCtx)
	if cerr := d.services.Close(); cerr != nil {
		slog.Error("close services", "error", cerr)
	}
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
