package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

func TestAttemptStore_SaveList(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(openTestDB(t))

	first := domain.NewAttempt("ana@example.com", "001", 3, 2, 41, 9)
	first.SolvedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := domain.NewAttempt("ana@example.com", "002A", 1, 1, 12, 10)
	second.SolvedAt = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	other := domain.NewAttempt("bob@example.com", "001", 1, 1, 5, 10)

	for _, a := range []*domain.Attempt{second, first, other} {
		if err := store.SaveAttempt(ctx, a); err != nil {
			t.Fatalf("SaveAttempt() error = %v", err)
		}
	}

	got, err := store.ListAttempts(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("ListAttempts() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(ListAttempts()) = %d; want 2", len(got))
	}
	if got[0].ID != first.ID {
		t.Errorf("got[0].ID = %s; want oldest attempt first", got[0].ID)
	}
	if got[0].Difficulty != 3 || got[0].Points != 9 || got[0].ElapsedSeconds != 41 {
		t.Errorf("got[0] = %+v", got[0])
	}
	if !got[1].SolvedAt.Equal(second.SolvedAt) {
		t.Errorf("SolvedAt = %v; want %v", got[1].SolvedAt, second.SolvedAt)
	}
}

func TestAttemptStore_ListUnknownUser(t *testing.T) {
	store := NewAttemptStore(openTestDB(t))

	got, err := store.ListAttempts(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListAttempts() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(ListAttempts()) = %d; want 0", len(got))
	}
}
