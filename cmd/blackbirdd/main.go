package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/blackbird/internal/config"
	"github.com/felixgeelhaar/blackbird/internal/daemon"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFileName     = "blackbirdd.pid"
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file (default ~/.blackbird/config.yaml)")
	flag.Parse()

	// Ensure ~/.blackbird directory exists
	dir, err := config.EnsureBlackbirdDir()
	if err != nil {
		return fmt.Errorf("ensure blackbird dir: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFile, err := setupLogging(dir, cfg.Server.SlogLevel())
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()

	pidPath := filepath.Join(dir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, cfg, Version)
	if err != nil {
		return err
	}

	if err := d.Run(ctx, shutdownTimeout); err != nil {
		return err
	}

	slog.Info("daemon stopped")
	return nil
}

func setupLogging(dir string, level slog.Level) (*os.File, error) {
	logPath := filepath.Join(dir, "logs", "blackbirdd.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// JSON to the file, text to stderr for foreground mode
	handler := &multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		},
	}

	slog.SetDefault(slog.New(handler))

	return logFile, nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// multiHandler logs to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
