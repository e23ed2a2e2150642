package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store provides thread-safe JSON file storage. Each record is one file:
// basePath/collection/id.json, or basePath/collection/id/subdir/name.json
// for records nested under a parent.
type Store struct {
	basePath string
	mu       sync.RWMutex
}

// NewStore creates a new local JSON store
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// BasePath returns the store root
func (s *Store) BasePath() string {
	return s.basePath
}

// Save persists data to a JSON file
func (s *Store) Save(collection, id string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(filepath.Join(s.basePath, collection), id, data)
}

// Load reads data from a JSON file
func (s *Store) Load(collection, id string, data any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readJSON(filepath.Join(s.basePath, collection, id+".json"), data)
}

// Delete removes a JSON file
func (s *Store) Delete(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.basePath, collection, id+".json")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// SaveDir saves data to a subdirectory within a collection
func (s *Store) SaveDir(collection, id, subdir, filename string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(filepath.Join(s.basePath, collection, id, subdir), filename, data)
}

// LoadDir loads data from a subdirectory within a collection
func (s *Store) LoadDir(collection, id, subdir, filename string, data any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readJSON(filepath.Join(s.basePath, collection, id, subdir, filename+".json"), data)
}

// ListDir lists the record names in a subdirectory
func (s *Store) ListDir(collection, id, subdir string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.basePath, collection, id, subdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) == ".json" {
			names = append(names, name[:len(name)-5])
		}
	}
	return names, nil
}

// writeJSON writes to a temp file and renames it so readers never see a
// partially written record.
func writeJSON(dir, name string, data any) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create collection directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		tmp.Close()
		return fmt.Errorf("encode json: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, name+".json")); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

func readJSON(path string, data any) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(data); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
