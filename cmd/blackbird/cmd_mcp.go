package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/blackbird/internal/daemon"
	"github.com/felixgeelhaar/blackbird/internal/domain"
	mcpserver "github.com/felixgeelhaar/blackbird/internal/mcp"
)

// cmdMCP starts the MCP server on stdio
func cmdMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	user := fs.String("user", os.Getenv("BLACKBIRD_USER"), "record solved attempts under this username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout carries the protocol
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.SlogLevel(),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := daemon.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open services: %w", err)
	}
	defer services.Close()

	srv := mcpserver.NewServer(mcpserver.Config{
		Lessons:           services.Lessons,
		Fetcher:           services.Remote,
		Progress:          services.Progress,
		Username:          *user,
		DefaultDifficulty: domain.Difficulty(cfg.Exercise.DefaultDifficulty),
		SessionTTL:        cfg.Exercise.SessionTTL(),
		Version:           Version,
	})
	defer srv.Close()

	return srv.ServeStdio(ctx)
}
