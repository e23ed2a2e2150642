// Package remote talks to the external auth and exercise services.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// Messages shown when the service gives no detail
const (
	loginFailed       = "Login failed"
	registerFailed    = "Registration failed"
	loginUnreachable  = "An error occurred during login"
	signupUnreachable = "An error occurred during signup"
)

// maxBody caps how much of a response body is read
const maxBody = 1 << 20

// Config holds configuration for the remote client
type Config struct {
	BaseURL    string // default: http://localhost:8000
	Timeout    time.Duration
	Resilience ResilienceConfig
}

// DefaultConfig returns the defaults used by the daemon
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8000",
		Timeout:    10 * time.Second,
		Resilience: DefaultResilienceConfig(),
	}
}

// Client calls the auth and exercise endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
	exercises  *guard[*domain.Exercise]
	auth       *guard[*authOutcome]
}

// authOutcome carries a rejection through the breaker as a successful
// call, so wrong passwords do not open the circuit.
type authOutcome struct {
	Token     string
	Rejection *domain.AuthError
}

// New creates a client for the service at cfg.BaseURL
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: newHTTPClient(cfg.Timeout),
		exercises:  newGuard[*domain.Exercise]("exercises", cfg.Resilience),
		auth:       newGuard[*authOutcome]("auth", cfg.Resilience),
	}, nil
}

// BaseURL returns the service root
func (c *Client) BaseURL() string {
	return c.baseURL
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Login exchanges credentials for an access token. Rejections come back as
// *domain.AuthError, bad input as *domain.ValidationError.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("username", req.Username)
	form.Set("password", req.Password)

	out, err := c.auth.Execute(ctx, func(ctx context.Context) (*authOutcome, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		httpReq.Header.Set("Accept", "application/json")

		status, body, err := c.do(httpReq)
		if err != nil {
			return nil, err
		}
		if status < 200 || status > 299 {
			return rejectOrRetry("login", status, body, loginFailed)
		}

		var tok tokenResponse
		if err := json.Unmarshal(body, &tok); err != nil {
			return nil, fmt.Errorf("decode login response: %w", err)
		}
		if tok.AccessToken == "" {
			return &authOutcome{Rejection: &domain.AuthError{Op: "login", Status: status, Detail: loginFailed}}, nil
		}
		return &authOutcome{Token: tok.AccessToken}, nil
	})
	if err != nil {
		return "", unreachable("login", err, loginUnreachable)
	}
	if out.Rejection != nil {
		return "", out.Rejection
	}
	return out.Token, nil
}

// Register creates an account
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode register request: %w", err)
	}

	out, err := c.auth.Execute(ctx, func(ctx context.Context) (*authOutcome, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/register", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		status, body, err := c.do(httpReq)
		if err != nil {
			return nil, err
		}
		if status < 200 || status > 299 {
			return rejectOrRetry("register", status, body, registerFailed)
		}
		return &authOutcome{}, nil
	})
	if err != nil {
		return unreachable("register", err, signupUnreachable)
	}
	if out.Rejection != nil {
		return out.Rejection
	}
	return nil
}

// FetchExercise retrieves a generated exercise for (code, difficulty).
// Every failure is returned as *domain.LoadError.
func (c *Client) FetchExercise(ctx context.Context, code string, difficulty domain.Difficulty) (*domain.Exercise, error) {
	if !difficulty.Valid() {
		return nil, &domain.LoadError{Code: code, Difficulty: difficulty, Err: domain.ErrInvalidDifficulty}
	}

	endpoint := fmt.Sprintf("%s/exercises/%s?difficulty=%s",
		c.baseURL, url.PathEscape(code), strconv.Itoa(int(difficulty)))

	ex, err := c.exercises.Execute(ctx, func(ctx context.Context) (*domain.Exercise, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Accept", "application/json")

		status, body, err := c.do(httpReq)
		if err != nil {
			return nil, err
		}
		if status < 200 || status > 299 {
			return nil, &statusError{Status: status, Detail: detailOf(body)}
		}

		var ex domain.Exercise
		if err := json.Unmarshal(body, &ex); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedExercise, err)
		}
		if err := ex.Validate(); err != nil {
			return nil, err
		}
		return &ex, nil
	})
	if err != nil {
		le := &domain.LoadError{Code: code, Difficulty: difficulty, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			le.Status = se.Status
		}
		return nil, le
	}
	return ex, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// rejectOrRetry classifies a non-2xx auth response: retryable statuses go
// back to the retrier, everything else is a rejection shown to the user.
func rejectOrRetry(op string, status int, body []byte, fallback string) (*authOutcome, error) {
	detail := detailOf(body)
	if retryableStatus(status) {
		return nil, &statusError{Status: status, Detail: detail}
	}
	if detail == "" {
		detail = fallback
	}
	return &authOutcome{Rejection: &domain.AuthError{Op: op, Status: status, Detail: detail}}, nil
}

// unreachable turns a failure that survived retries into a user-facing
// AuthError, keeping the service's own detail when it sent one.
func unreachable(op string, err error, fallback string) error {
	slog.Warn("auth service call failed", "op", op, "error", err)

	ae := &domain.AuthError{Op: op, Detail: fallback}
	var se *statusError
	if errors.As(err, &se) {
		ae.Status = se.Status
		if se.Detail != "" {
			ae.Detail = se.Detail
		}
	}
	return ae
}

// detailOf extracts the detail message of an error payload. FastAPI sends
// either a string or a list of {msg} objects for input errors.
func detailOf(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || len(er.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(er.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(er.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
