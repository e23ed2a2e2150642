// Package gate decides whether a browser holds a session token and which
// routes it may enter.
package gate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// Keys written to the per-browser store
const (
	KeyToken    = "token"
	KeyUsername = "username"
)

// Store is the read side of the per-browser key-value store
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// Writer is the full per-browser key-value store
type Writer interface {
	Store
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// IsAuthenticated reports whether a token is present, whatever its value.
// A failing store counts as signed out.
func IsAuthenticated(ctx context.Context, store Store) bool {
	if store == nil {
		return false
	}
	_, ok, err := store.Get(ctx, KeyToken)
	if err != nil {
		slog.Warn("session store unavailable", "error", err)
		return false
	}
	return ok
}

// Access is the protection class of a route
type Access int

const (
	Public Access = iota
	GuestOnly
	Protected
)

func (a Access) String() string {
	switch a {
	case GuestOnly:
		return "guest-only"
	case Protected:
		return "protected"
	default:
		return "public"
	}
}

// Decide returns where to redirect a request with the given access class,
// or "" when the requested page should render.
func Decide(access Access, authenticated bool) string {
	switch {
	case access == Protected && !authenticated:
		return domain.RouteLogin
	case access == GuestOnly && authenticated:
		return domain.RouteDashboard
	default:
		return ""
	}
}

// Identity is the per-request view of who is signed in
type Identity struct {
	Authenticated bool
	Username      string
}

// Resolve derives the identity from the store in one pass
func Resolve(ctx context.Context, store Store) Identity {
	id := Identity{Authenticated: IsAuthenticated(ctx, store)}
	if !id.Authenticated {
		return id
	}
	name, ok, err := store.Get(ctx, KeyUsername)
	if err != nil {
		slog.Warn("read username", "error", err)
		return id
	}
	if ok {
		id.Username = name
	}
	return id
}

type identityKey struct{}

// WithIdentity returns a context carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// Session writes and clears the sign-in keys of one browser
type Session struct {
	store Writer
}

// NewSession creates a session writer over store
func NewSession(store Writer) *Session {
	return &Session{store: store}
}

// SignIn stores the token and display name after a successful login
func (s *Session) SignIn(ctx context.Context, token, username string) error {
	if err := s.store.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := s.store.Set(ctx, KeyUsername, username); err != nil {
		return fmt.Errorf("store username: %w", err)
	}
	return nil
}

// SignOut removes both keys
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.store.Delete(ctx, KeyToken); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if err := s.store.Delete(ctx, KeyUsername); err != nil {
		return fmt.Errorf("delete username: %w", err)
	}
	return nil
}
