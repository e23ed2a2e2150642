package gate

import (
	"context"
	"errors"
	"testing"
)

type mapStore struct {
	data map[string]string
	err  error
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string]string)}
}

func (m *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *mapStore) Delete(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func TestIsAuthenticated(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		store *mapStore
		want  bool
	}{
		{"no token key", newMapStore(), false},
		{"token present", &mapStore{data: map[string]string{"token": "abc"}}, true},
		{"empty token still counts", &mapStore{data: map[string]string{"token": ""}}, true},
		{"username only", &mapStore{data: map[string]string{"username": "ana"}}, false},
		{"store failure fails closed", &mapStore{err: errors.New("disk gone")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthenticated(ctx, tt.store); got != tt.want {
				t.Errorf("IsAuthenticated() = %v; want %v", got, tt.want)
			}
		})
	}

	if IsAuthenticated(ctx, nil) {
		t.Error("IsAuthenticated(nil) = true; want false")
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		access Access
		authed bool
		want   string
	}{
		{Public, false, ""},
		{Public, true, ""},
		{GuestOnly, false, ""},
		{GuestOnly, true, "/dashboard"},
		{Protected, false, "/login"},
		{Protected, true, ""},
	}

	for _, tt := range tests {
		if got := Decide(tt.access, tt.authed); got != tt.want {
			t.Errorf("Decide(%v, %v) = %q; want %q", tt.access, tt.authed, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	store := &mapStore{data: map[string]string{"token": "t", "username": "ana@example.com"}}
	id := Resolve(ctx, store)
	if !id.Authenticated || id.Username != "ana@example.com" {
		t.Errorf("Resolve() = %+v", id)
	}

	// username without a token is ignored
	store = &mapStore{data: map[string]string{"username": "ghost"}}
	id = Resolve(ctx, store)
	if id.Authenticated || id.Username != "" {
		t.Errorf("Resolve() = %+v; want anonymous", id)
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{Authenticated: true, Username: "ana"})
	if got := FromContext(ctx); got.Username != "ana" {
		t.Errorf("FromContext() = %+v", got)
	}
	if got := FromContext(context.Background()); got.Authenticated {
		t.Error("empty context should be anonymous")
	}
}

func TestSession_SignInSignOut(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	s := NewSession(store)

	if err := s.SignIn(ctx, "tok-1", "ana@example.com"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if store.data["token"] != "tok-1" || store.data["username"] != "ana@example.com" {
		t.Errorf("store after SignIn = %v", store.data)
	}
	if !IsAuthenticated(ctx, store) {
		t.Error("IsAuthenticated() = false after SignIn")
	}

	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if len(store.data) != 0 {
		t.Errorf("store after SignOut = %v; want empty", store.data)
	}
}

func TestSession_SignInError(t *testing.T) {
	store := &mapStore{data: map[string]string{}, err: errors.New("read only")}
	if err := NewSession(store).SignIn(context.Background(), "t", "u"); err == nil {
		t.Error("SignIn() should surface store errors")
	}
}
