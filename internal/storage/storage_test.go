package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"github.com/felixgeelhaar/blackbird/internal/gate"
)

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		opts Options
	}{
		{"sqlite", Options{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "bb.db")}},
		{"default driver", Options{Path: filepath.Join(t.TempDir(), "bb.db")}},
		{"json", Options{Driver: DriverJSON, Path: t.TempDir()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := Open(ctx, tt.opts)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer backend.Close()

			browser := Browser(backend, "b-1")
			session := gate.NewSession(browser)

			if gate.IsAuthenticated(ctx, browser) {
				t.Fatal("fresh browser should be signed out")
			}
			if err := session.SignIn(ctx, "tok", "ana@example.com"); err != nil {
				t.Fatalf("SignIn() error = %v", err)
			}
			id := gate.Resolve(ctx, browser)
			if !id.Authenticated || id.Username != "ana@example.com" {
				t.Errorf("Resolve() = %+v", id)
			}
			if gate.IsAuthenticated(ctx, Browser(backend, "b-2")) {
				t.Error("another browser sees the session")
			}
			if err := session.SignOut(ctx); err != nil {
				t.Fatalf("SignOut() error = %v", err)
			}
			if gate.IsAuthenticated(ctx, browser) {
				t.Error("still signed in after SignOut")
			}

			a := domain.NewAttempt("ana@example.com", "001", 1, 2, 30, 9)
			if err := backend.SaveAttempt(ctx, a); err != nil {
				t.Fatalf("SaveAttempt() error = %v", err)
			}
			got, err := backend.ListAttempts(ctx, "ana@example.com")
			if err != nil || len(got) != 1 || got[0].ID != a.ID {
				t.Errorf("ListAttempts() = %v, %v", got, err)
			}
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "postgres"}); err == nil {
		t.Error("Open() should reject unknown drivers")
	}
}

func TestBrowser_ID(t *testing.T) {
	if got := Browser(nil, "abc").ID(); got != "abc" {
		t.Errorf("ID() = %q; want abc", got)
	}
}
