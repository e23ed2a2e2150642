package local

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const browsersCollection = "browsers"

// KVStore keeps each browser's keys in one JSON document
type KVStore struct {
	store *Store
	mu    sync.Mutex
}

// NewKVStore creates a key-value store over s
func NewKVStore(s *Store) *KVStore {
	return &KVStore{store: s}
}

// Get returns the value of key for the browser
func (k *KVStore) Get(_ context.Context, browserID, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load(browserID)
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

// Set stores value under key for the browser
func (k *KVStore) Set(_ context.Context, browserID, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load(browserID)
	if err != nil {
		return err
	}
	doc[key] = value
	if err := k.store.Save(browsersCollection, browserID, doc); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key for the browser. The document goes away with its
// last key.
func (k *KVStore) Delete(_ context.Context, browserID, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load(browserID)
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)

	if len(doc) == 0 {
		if err := k.store.Delete(browsersCollection, browserID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	}
	if err := k.store.Save(browsersCollection, browserID, doc); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (k *KVStore) load(browserID string) (map[string]string, error) {
	doc := make(map[string]string)
	err := k.store.Load(browsersCollection, browserID, &doc)
	if errors.Is(err, ErrNotFound) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load browser %s: %w", browserID, err)
	}
	return doc, nil
}
