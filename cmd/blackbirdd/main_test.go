package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMultiHandler_FansOut(t *testing.T) {
	var info, debug bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}
	logger := slog.New(h).With("component", "test")

	logger.Debug("quiet")
	logger.Info("loud")

	if strings.Contains(info.String(), "quiet") {
		t.Error("info handler received a debug record")
	}
	if !strings.Contains(info.String(), "loud") || !strings.Contains(debug.String(), "quiet") {
		t.Errorf("records missing: info=%q debug=%q", info.String(), debug.String())
	}
	if !strings.Contains(debug.String(), "component=test") {
		t.Error("attrs not propagated")
	}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = false; want true")
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), pidFileName)
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		t.Error("pid file is empty")
	}
}
