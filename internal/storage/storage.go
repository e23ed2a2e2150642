// Package storage holds the server-side stand-in for the browser's
// key-value store and the record of solved attempts.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"github.com/felixgeelhaar/blackbird/internal/gate"
	"github.com/felixgeelhaar/blackbird/internal/storage/local"
	"github.com/felixgeelhaar/blackbird/internal/storage/sqlite"
)

// KV is a key-value store partitioned by browser id
type KV interface {
	Get(ctx context.Context, browserID, key string) (string, bool, error)
	Set(ctx context.Context, browserID, key, value string) error
	Delete(ctx context.Context, browserID, key string) error
}

// AttemptStore persists solved attempts
type AttemptStore interface {
	SaveAttempt(ctx context.Context, a *domain.Attempt) error
	ListAttempts(ctx context.Context, username string) ([]*domain.Attempt, error)
}

// Backend is an opened storage driver
type Backend interface {
	KV
	AttemptStore
	io.Closer
}

// Drivers
const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
)

// Options selects and locates a driver
type Options struct {
	Driver string
	// Path is the database file for sqlite and the root directory for json
	Path string
}

// Open opens the configured driver, running migrations where needed
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		db, err := sqlite.Open(opts.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		slog.Info("storage opened", "driver", DriverSQLite, "path", opts.Path)
		return &sqliteBackend{
			KVStore:      sqlite.NewKVStore(db),
			AttemptStore: sqlite.NewAttemptStore(db),
			db:           db,
		}, nil

	case DriverJSON:
		store, err := local.NewStore(opts.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("storage opened", "driver", DriverJSON, "path", opts.Path)
		return &jsonBackend{
			KVStore:      local.NewKVStore(store),
			AttemptStore: local.NewAttemptStore(store),
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

type sqliteBackend struct {
	*sqlite.KVStore
	*sqlite.AttemptStore
	db *sqlite.DB
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

type jsonBackend struct {
	*local.KVStore
	*local.AttemptStore
}

func (b *jsonBackend) Close() error {
	return nil
}

// BrowserStore is the key-value view of a single browser
type BrowserStore struct {
	kv KV
	id string
}

// Browser binds kv to one browser id
func Browser(kv KV, browserID string) *BrowserStore {
	return &BrowserStore{kv: kv, id: browserID}
}

// ID returns the bound browser id
func (b *BrowserStore) ID() string {
	return b.id
}

func (b *BrowserStore) Get(ctx context.Context, key string) (string, bool, error) {
	return b.kv.Get(ctx, b.id, key)
}

func (b *BrowserStore) Set(ctx context.Context, key, value string) error {
	return b.kv.Set(ctx, b.id, key, value)
}

func (b *BrowserStore) Delete(ctx context.Context, key string) error {
	return b.kv.Delete(ctx, b.id, key)
}

var _ gate.Writer = (*BrowserStore)(nil)
