package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"runtime/debug"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/blackbird/internal/gate"
	"github.com/felixgeelhaar/blackbird/internal/storage"
)

// ContextKey is the type for context keys used in this package
type ContextKey string

const (
	// CorrelationIDKey is the context key for the correlation ID
	CorrelationIDKey ContextKey = "correlation_id"
	// BrowserKey is the context key for the per-browser store
	BrowserKey ContextKey = "browser"
	// CorrelationIDHeader is the HTTP header name for correlation ID
	CorrelationIDHeader = "X-Request-ID"
)

// GetCorrelationID extracts the correlation ID from a context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// GetBrowser returns the per-browser store bound by browserMiddleware
func GetBrowser(ctx context.Context) *storage.BrowserStore {
	b, _ := ctx.Value(BrowserKey).(*storage.BrowserStore)
	return b
}

// correlationIDMiddleware adds or propagates a correlation ID for request tracing
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		w.Header().Set(CorrelationIDHeader, correlationID)
		ctx := context.WithValue(r.Context(), CorrelationIDKey, correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests with timing and status
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"correlation_id", GetCorrelationID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		}

		switch {
		case wrapped.statusCode >= 500:
			slog.Error("request", attrs...)
		case wrapped.statusCode >= 400:
			slog.Warn("request", attrs...)
		default:
			slog.Debug("request", attrs...)
		}
	})
}

// recoveryMiddleware catches panics and logs them
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"correlation_id", GetCorrelationID(r.Context()),
					"error", err,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// browserMiddleware issues the per-browser id cookie and binds the
// browser's key-value store to the request
func (s *Server) browserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(s.cfg.Cookies.Name); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     s.cfg.Cookies.Name,
				Value:    id,
				Path:     "/",
				MaxAge:   int(s.cfg.Cookies.MaxAge().Seconds()),
				HttpOnly: true,
				Secure:   s.cfg.Cookies.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		browser := storage.Browser(s.kv, id)
		ctx := context.WithValue(r.Context(), BrowserKey, browser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityMiddleware resolves the session gate once per request
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var store gate.Store
		if b := GetBrowser(r.Context()); b != nil {
			store = b
		}
		id := gate.Resolve(r.Context(), store)
		next.ServeHTTP(w, r.WithContext(gate.WithIdentity(r.Context(), id)))
	})
}

// rateLimitMiddleware rejects clients that exceed the configured rate
func rateLimitMiddleware(limiter ratelimit.RateLimiter, proxies []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			key := clientIP(r, proxies)
			if !limiter.Allow(r.Context(), key) {
				slog.Warn("rate limit exceeded",
					"ip", key,
					"path", r.URL.Path,
					"correlation_id", GetCorrelationID(r.Context()),
				)
				w.Header().Set("Retry-After", "1")
				WriteError(w, r, http.StatusTooManyRequests,
					NewAPIError("RATE_LIMITED", "too many requests, please try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP address from the request. Forwarding
// headers count only when the peer is one of the trusted proxies.
func clientIP(r *http.Request, proxies []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !trusted(host, proxies) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return host
}

func trusted(host string, proxies []netip.Prefix) bool {
	if len(proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// guard enforces the access class of a route
func guard(access gate.Access, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := gate.FromContext(r.Context())
		target := gate.Decide(access, id.Authenticated)
		if target == "" {
			h(w, r)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") {
			WriteError(w, r, http.StatusUnauthorized, NewAPIError("UNAUTHORIZED", "authentication required"))
			return
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}
