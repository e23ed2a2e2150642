package mount

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

type closer struct {
	closed atomic.Int32
}

func (c *closer) Close() error {
	c.closed.Add(1)
	return nil
}

func TestMountGetUnmount(t *testing.T) {
	r := NewRegistry[*closer]("views", 0)
	c := &closer{}

	id := r.Mount("b1", c)
	got, err := r.Get("b1", id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != c {
		t.Error("Get() returned a different instance")
	}

	if err := r.Unmount("b1", id); err != nil {
		t.Fatalf("Unmount() error = %v", err)
	}
	if n := c.closed.Load(); n != 1 {
		t.Errorf("Close calls = %d; want 1", n)
	}
	if _, err := r.Get("b1", id); !errors.Is(err, domain.ErrNotMounted) {
		t.Errorf("Get() after unmount error = %v; want ErrNotMounted", err)
	}
	if err := r.Unmount("b1", id); !errors.Is(err, domain.ErrNotMounted) {
		t.Errorf("second Unmount() error = %v; want ErrNotMounted", err)
	}
}

func TestOtherOwnerCannotReach(t *testing.T) {
	r := NewRegistry[*closer]("sessions", 0)
	c := &closer{}
	id := r.Mount("b1", c)

	if _, err := r.Get("b2", id); !errors.Is(err, domain.ErrNotMounted) {
		t.Errorf("Get() by another owner error = %v; want ErrNotMounted", err)
	}
	if err := r.Unmount("b2", id); !errors.Is(err, domain.ErrNotMounted) {
		t.Errorf("Unmount() by another owner error = %v; want ErrNotMounted", err)
	}
	if c.closed.Load() != 0 || r.Len() != 1 {
		t.Error("another owner tore the instance down")
	}
	if _, err := r.Get("b1", id); err != nil {
		t.Errorf("Get() by owner error = %v", err)
	}
}

func TestGetInvalidID(t *testing.T) {
	r := NewRegistry[*closer]("views", 0)
	if _, err := r.Get("", "not-a-uuid"); !errors.Is(err, domain.ErrNotMounted) {
		t.Errorf("Get() error = %v; want ErrNotMounted", err)
	}
}

func TestSweepExpiresIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry[*closer]("sessions", time.Minute)
	r.now = func() time.Time { return now }

	idle, busy := &closer{}, &closer{}
	r.Mount("b1", idle)
	busyID := r.Mount("b1", busy)

	now = now.Add(50 * time.Second)
	if _, err := r.Get("b1", busyID); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	now = now.Add(20 * time.Second)
	if n := r.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d; want 1", n)
	}
	if idle.closed.Load() != 1 {
		t.Error("idle instance not closed")
	}
	if busy.closed.Load() != 0 {
		t.Error("recently used instance closed")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d; want 1", r.Len())
	}
}

func TestRunClosesAllOnCancel(t *testing.T) {
	r := NewRegistry[*closer]("views", 0)
	a, b := &closer{}, &closer{}
	r.Mount("b1", a)
	r.Mount("b2", b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if a.closed.Load() != 1 || b.closed.Load() != 1 {
		t.Error("instances not closed on shutdown")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d; want 0", r.Len())
	}
}
