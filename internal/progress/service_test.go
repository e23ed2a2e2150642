package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"github.com/felixgeelhaar/blackbird/internal/storage"
)

type memStore struct {
	mu       sync.Mutex
	attempts map[string][]*domain.Attempt
	err      error
}

func newMemStore() *memStore {
	return &memStore{attempts: make(map[string][]*domain.Attempt)}
}

func (m *memStore) SaveAttempt(_ context.Context, a *domain.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := *a
	m.attempts[a.Username] = append(m.attempts[a.Username], &cp)
	return nil
}

func (m *memStore) ListAttempts(_ context.Context, username string) ([]*domain.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]*domain.Attempt(nil), m.attempts[username]...), nil
}

var _ storage.AttemptStore = (*memStore)(nil)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Attempt
	err    error
}

func (p *recordingPublisher) PublishAttempt(_ context.Context, a domain.Attempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, a)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestRecordStoresAndPublishes(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewService(store, pub)

	a := domain.NewAttempt("ada", "001", 2, 2, 30, 9)
	if err := svc.Record(context.Background(), *a); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if got := len(store.attempts["ada"]); got != 1 {
		t.Errorf("stored attempts = %d; want 1", got)
	}
	if pub.count() != 1 || pub.events[0].ID != a.ID {
		t.Errorf("published = %+v", pub.events)
	}
}

func TestRecordPublishFailureIsNotFatal(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, &recordingPublisher{err: errors.New("broker down")})

	if err := svc.Record(context.Background(), *domain.NewAttempt("ada", "001", 1, 1, 5, 10)); err != nil {
		t.Fatalf("Record() error = %v; want nil", err)
	}
	if got := len(store.attempts["ada"]); got != 1 {
		t.Errorf("stored attempts = %d; want 1", got)
	}
}

func TestRecordStoreFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("disk full")
	pub := &recordingPublisher{}
	svc := NewService(store, pub)

	if err := svc.Record(context.Background(), *domain.NewAttempt("ada", "001", 1, 1, 5, 10)); err == nil {
		t.Fatal("Record() error = nil; want error")
	}
	if pub.count() != 0 {
		t.Errorf("published %d events after store failure; want 0", pub.count())
	}
}

func TestRecordSkipsAnonymous(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewService(store, pub)

	if err := svc.Record(context.Background(), *domain.NewAttempt("", "001", 1, 1, 5, 10)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(store.attempts) != 0 || pub.count() != 0 {
		t.Error("anonymous attempt was recorded")
	}
}

func TestRecordAsync(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(newMemStore(), pub)

	svc.RecordAsync(*domain.NewAttempt("ada", "001", 1, 1, 5, 10))

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("RecordAsync did not publish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSummary(t *testing.T) {
	svc := NewService(newMemStore(), nil)
	ctx := context.Background()

	for _, a := range []*domain.Attempt{
		domain.NewAttempt("ada", "001", 1, 1, 40, 10),
		domain.NewAttempt("ada", "002A", 5, 3, 25, 8),
		domain.NewAttempt("bob", "001", 1, 1, 3, 10),
	} {
		if err := svc.Record(ctx, *a); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	p, err := svc.Summary(ctx, "ada")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	want := domain.Progress{Username: "ada", Solved: 2, TotalPoints: 18, TotalAttempts: 4, BestSeconds: 25}
	if p != want {
		t.Errorf("Summary() = %+v; want %+v", p, want)
	}

	empty, err := svc.Summary(ctx, "")
	if err != nil || empty.Solved != 0 {
		t.Errorf("Summary(\"\") = %+v, %v", empty, err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, code := range []string{"001", "002A", "002B"} {
		a := domain.NewAttempt("ada", code, 1, 1, 5, 10)
		a.SolvedAt = base.Add(time.Duration(i) * time.Minute)
		store.SaveAttempt(ctx, a)
	}

	got, err := svc.Recent(ctx, "ada", 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 || got[0].Code != "002B" || got[1].Code != "002A" {
		t.Errorf("Recent() codes = %v", codes(got))
	}
}

func codes(as []*domain.Attempt) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Code
	}
	return out
}
