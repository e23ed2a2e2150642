// Package progress records solved attempts and summarizes them per user.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"github.com/felixgeelhaar/blackbird/internal/queue"
	"github.com/felixgeelhaar/blackbird/internal/storage"
)

// DefaultRecordTimeout bounds one Record call when the caller has no deadline
const DefaultRecordTimeout = 5 * time.Second

// Service persists attempts and announces them on the event queue
type Service struct {
	store     storage.AttemptStore
	publisher queue.Publisher
}

// NewService creates a progress service. A nil publisher disables events.
func NewService(store storage.AttemptStore, publisher queue.Publisher) *Service {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	return &Service{store: store, publisher: publisher}
}

// Record saves a solved attempt and publishes it. Publishing is
// best-effort; only a storage failure is returned. Anonymous attempts are
// not stored.
func (s *Service) Record(ctx context.Context, a domain.Attempt) error {
	if a.Username == "" {
		slog.Debug("skipping anonymous attempt", "code", a.Code)
		return nil
	}

	if err := s.store.SaveAttempt(ctx, &a); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}

	if err := s.publisher.PublishAttempt(ctx, a); err != nil {
		slog.Warn("failed to publish attempt event",
			"attempt_id", a.ID,
			"username", a.Username,
			"error", err)
	}

	slog.Info("attempt recorded",
		"username", a.Username,
		"code", a.Code,
		"difficulty", int(a.Difficulty),
		"points", a.Points)
	return nil
}

// RecordAsync records from a context-free callback such as a session's
// OnSolved hook
func (s *Service) RecordAsync(a domain.Attempt) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultRecordTimeout)
		defer cancel()
		if err := s.Record(ctx, a); err != nil {
			slog.Error("failed to record attempt", "username", a.Username, "code", a.Code, "error", err)
		}
	}()
}

// Summary aggregates every attempt of a user
func (s *Service) Summary(ctx context.Context, username string) (domain.Progress, error) {
	p := domain.Progress{Username: username}
	if username == "" {
		return p, nil
	}

	attempts, err := s.store.ListAttempts(ctx, username)
	if err != nil {
		return p, fmt.Errorf("list attempts: %w", err)
	}
	for _, a := range attempts {
		p.Add(a)
	}
	return p, nil
}

// Recent returns up to n of the user's latest attempts, newest first
func (s *Service) Recent(ctx context.Context, username string, n int) ([]*domain.Attempt, error) {
	if username == "" || n <= 0 {
		return nil, nil
	}

	attempts, err := s.store.ListAttempts(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].SolvedAt.After(attempts[j].SolvedAt)
	})
	if len(attempts) > n {
		attempts = attempts[:n]
	}
	return attempts, nil
}
