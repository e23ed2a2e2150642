package sqlite

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"github.com/google/uuid"
)

// AttemptStore persists solved exercise attempts in SQLite.
type AttemptStore struct {
	db *DB
}

// NewAttemptStore creates a new SQLite-backed attempt store.
func NewAttemptStore(db *DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// SaveAttempt inserts or replaces an attempt.
func (s *AttemptStore) SaveAttempt(ctx context.Context, a *domain.Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, username, code, difficulty, attempts, elapsed_seconds, points, solved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username=excluded.username, code=excluded.code, difficulty=excluded.difficulty,
			attempts=excluded.attempts, elapsed_seconds=excluded.elapsed_seconds,
			points=excluded.points, solved_at=excluded.solved_at`,
		a.ID.String(), a.Username, a.Code, int(a.Difficulty),
		a.Attempts, a.ElapsedSeconds, a.Points, a.SolvedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}
	return nil
}

// ListAttempts returns a user's attempts, oldest first.
func (s *AttemptStore) ListAttempts(ctx context.Context, username string) ([]*domain.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, code, difficulty, attempts, elapsed_seconds, points, solved_at
		FROM attempts WHERE username = ? ORDER BY solved_at ASC`, username)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Attempt
	for rows.Next() {
		var (
			a          domain.Attempt
			id         string
			difficulty int
		)
		if err := rows.Scan(&id, &a.Username, &a.Code, &difficulty,
			&a.Attempts, &a.ElapsedSeconds, &a.Points, &a.SolvedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse attempt id %q: %w", id, err)
		}
		a.Difficulty = domain.Difficulty(difficulty)
		out = append(out, &a)
	}
	return out, rows.Err()
}
