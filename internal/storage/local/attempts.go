package local

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

const (
	usersCollection = "users"
	attemptsDir     = "attempts"
)

// AttemptStore writes one JSON file per solved attempt under the user
type AttemptStore struct {
	store *Store
}

// NewAttemptStore creates an attempt store over s
func NewAttemptStore(s *Store) *AttemptStore {
	return &AttemptStore{store: s}
}

// SaveAttempt persists an attempt
func (a *AttemptStore) SaveAttempt(_ context.Context, at *domain.Attempt) error {
	if err := a.store.SaveDir(usersCollection, userKey(at.Username), attemptsDir, at.ID.String(), at); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

// ListAttempts returns a user's attempts, oldest first
func (a *AttemptStore) ListAttempts(_ context.Context, username string) ([]*domain.Attempt, error) {
	key := userKey(username)
	names, err := a.store.ListDir(usersCollection, key, attemptsDir)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	out := make([]*domain.Attempt, 0, len(names))
	for _, name := range names {
		var at domain.Attempt
		if err := a.store.LoadDir(usersCollection, key, attemptsDir, name, &at); err != nil {
			return nil, fmt.Errorf("load attempt %s: %w", name, err)
		}
		out = append(out, &at)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].SolvedAt.Before(out[j].SolvedAt)
	})
	return out, nil
}

// userKey makes a username safe to use as a directory name. The prefix
// keeps names like ".." from escaping the collection.
func userKey(username string) string {
	return "u_" + url.PathEscape(username)
}
