package storage

import (
	"github.com/felixgeelhaar/blackbird/internal/storage/local"
	"github.com/felixgeelhaar/blackbird/internal/storage/sqlite"
)

// Ensure both drivers implement the storage interfaces.
var (
	_ KV           = (*sqlite.KVStore)(nil)
	_ AttemptStore = (*sqlite.AttemptStore)(nil)
	_ KV           = (*local.KVStore)(nil)
	_ AttemptStore = (*local.AttemptStore)(nil)
	_ Backend      = (*sqliteBackend)(nil)
	_ Backend      = (*jsonBackend)(nil)
)
