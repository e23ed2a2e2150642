package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixgeelhaar/blackbird/internal/storage/migrations"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a sql.DB connection to a SQLite database with migration support.
type DB struct {
	*sql.DB
	path string
}

// Open creates a SQLite connection with WAL mode and foreign keys enabled,
// creating the parent directory when needed.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)

	return &DB{DB: db, path: path}, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending SQL migrations from the embedded filesystem.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := db.Version(ctx)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, name := range files {
		version, err := parseVersion(name)
		if err != nil {
			slog.Warn("skipping non-migration file", "name", name, "error", err)
			continue
		}
		if version <= current {
			continue
		}

		if err := db.apply(ctx, name, version); err != nil {
			return err
		}
		applied++
		slog.Info("applied migration", "name", name, "version", version)
	}

	if applied > 0 {
		slog.Info("migrations complete", "applied", applied, "path", db.path)
	}
	return nil
}

func (db *DB) apply(ctx context.Context, name string, version int) error {
	data, err := fs.ReadFile(migrations.FS, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for migration %s: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

// Version returns the current schema version.
func (db *DB) Version(ctx context.Context) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// parseVersion extracts the version number from a migration filename like "001_kv.sql".
func parseVersion(name string) (int, error) {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid migration filename: %s", name)
	}
	var version int
	if _, err := fmt.Sscanf(parts[0], "%d", &version); err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return version, nil
}
