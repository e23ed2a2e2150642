package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"github.com/felixgeelhaar/blackbird/internal/exercise"
	"github.com/felixgeelhaar/blackbird/internal/lesson"
)

type stubFetcher struct {
	ex  *domain.Exercise
	err error
}

func (f *stubFetcher) FetchExercise(_ context.Context, code string, d domain.Difficulty) (*domain.Exercise, error) {
	if f.err != nil {
		return nil, f.err
	}
	ex := *f.ex
	return &ex, nil
}

// stillClock never fires, keeping elapsed time at zero
type stillClock struct{}

func (stillClock) Every(time.Duration, func()) func() { return func() {} }
func (stillClock) AfterFunc(time.Duration, func()) func() bool { return func() bool { return true } }

// setupTestServer creates a test MCP server over the built-in lesson forest
func setupTestServer(t *testing.T, fetcher *stubFetcher) *Server {
	t.Helper()

	registry := lesson.NewRegistry(lesson.NewLoader(""))
	if err := registry.Load(); err != nil {
		t.Fatalf("load lessons: %v", err)
	}

	s := NewServer(Config{
		Lessons: registry,
		Fetcher: fetcher,
		Clock:   stillClock{},
	})
	t.Cleanup(s.Close)
	return s
}

func sampleFetcher() *stubFetcher {
	return &stubFetcher{ex: &domain.Exercise{
		QuestionLatex: "x^2 = 16",
		Solution:      "4",
		Hints:         []string{"square it"},
	}}
}

func TestNewServer(t *testing.T) {
	s := setupTestServer(t, sampleFetcher())

	if s.GetMCPServer() == nil {
		t.Fatal("expected non-nil MCP server")
	}
	if s.cfg.DefaultDifficulty != domain.DefaultDifficulty {
		t.Errorf("DefaultDifficulty = %d; want %d", s.cfg.DefaultDifficulty, domain.DefaultDifficulty)
	}
}

func TestServerConfig_Empty(t *testing.T) {
	s := NewServer(Config{})
	if s == nil {
		t.Fatal("expected non-nil server even with empty config")
	}
	if _, err := s.handleLessons(context.Background(), LessonsInput{}); err == nil {
		t.Error("handleLessons() without lessons should fail")
	}
	if _, err := s.handleStart(context.Background(), StartInput{Code: "001"}); err == nil {
		t.Error("handleStart() without a fetcher should fail")
	}
}

func TestHandleLessons(t *testing.T) {
	s := setupTestServer(t, sampleFetcher())

	out, err := s.handleLessons(context.Background(), LessonsInput{})
	if err != nil {
		t.Fatalf("handleLessons() error = %v", err)
	}
	if !strings.Contains(out.Outline, "S1 E1 Radicali") {
		t.Errorf("outline missing first lesson:\n%s", out.Outline)
	}
	if len(out.Codes) == 0 {
		t.Error("expected exercise codes")
	}
}

func TestSessionFlow(t *testing.T) {
	s := setupTestServer(t, sampleFetcher())
	ctx := context.Background()

	start, err := s.handleStart(ctx, StartInput{Code: "001"})
	if err != nil {
		t.Fatalf("handleStart() error = %v", err)
	}
	if start.Question != "x^2 = 16" || start.Difficulty != 1 {
		t.Errorf("start = %+v", start)
	}

	status, err := s.handleStatus(ctx, SessionInput{SessionID: start.SessionID})
	if err != nil {
		t.Fatalf("handleStatus() error = %v", err)
	}
	if status.State != "ready" || status.Elapsed != "0:00" {
		t.Errorf("status = %+v; want ready at 0:00", status)
	}

	wrong, err := s.handleAnswer(ctx, AnswerInput{SessionID: start.SessionID, Answer: "3"})
	if err != nil {
		t.Fatalf("handleAnswer() error = %v", err)
	}
	if wrong.Correct || wrong.Attempts != 1 || wrong.Message != exercise.MessageRetry {
		t.Errorf("wrong answer = %+v", wrong)
	}

	hints, err := s.handleHints(ctx, SessionInput{SessionID: start.SessionID})
	if err != nil {
		t.Fatalf("handleHints() error = %v", err)
	}
	if len(hints.Hints) != 1 || hints.Hints[0] != "square it" {
		t.Errorf("hints = %v", hints.Hints)
	}

	// Asking twice keeps the hints visible
	hints, _ = s.handleHints(ctx, SessionInput{SessionID: start.SessionID})
	if len(hints.Hints) != 1 {
		t.Errorf("second hints call = %v", hints.Hints)
	}

	right, err := s.handleAnswer(ctx, AnswerInput{SessionID: start.SessionID, Answer: "4"})
	if err != nil {
		t.Fatalf("handleAnswer() error = %v", err)
	}
	if !right.Correct || right.Points != 9 || right.Score != 9 {
		t.Errorf("right answer = %+v; want 9 points", right)
	}

	if _, err := s.handleStop(ctx, SessionInput{SessionID: start.SessionID}); err != nil {
		t.Fatalf("handleStop() error = %v", err)
	}
	if _, err := s.handleStatus(ctx, SessionInput{SessionID: start.SessionID}); !errors.Is(err, domain.ErrNotMounted) {
		t.Errorf("status after stop error = %v; want ErrNotMounted", err)
	}
}

func TestHandleStart_Validation(t *testing.T) {
	s := setupTestServer(t, sampleFetcher())

	if _, err := s.handleStart(context.Background(), StartInput{}); err == nil {
		t.Error("expected error for missing code")
	}
	_, err := s.handleStart(context.Background(), StartInput{Code: "001", Difficulty: 15})
	if !errors.Is(err, domain.ErrInvalidDifficulty) {
		t.Errorf("error = %v; want ErrInvalidDifficulty", err)
	}
}

func TestHandleStart_LoadFailure(t *testing.T) {
	s := setupTestServer(t, &stubFetcher{err: errors.New("connection refused")})

	_, err := s.handleStart(context.Background(), StartInput{Code: "001"})
	if err == nil {
		t.Fatal("expected load failure")
	}
	if !strings.Contains(err.Error(), exercise.MessageLoadFailed) {
		t.Errorf("error = %q; want the load failure message", err)
	}
	if s.sessions.Len() != 0 {
		t.Errorf("sessions = %d; want 0 after failed start", s.sessions.Len())
	}
}

func TestHandleAnswer_BlankRejected(t *testing.T) {
	s := setupTestServer(t, sampleFetcher())
	ctx := context.Background()

	start, err := s.handleStart(ctx, StartInput{Code: "001", Difficulty: 3})
	if err != nil {
		t.Fatalf("handleStart() error = %v", err)
	}

	_, err = s.handleAnswer(ctx, AnswerInput{SessionID: start.SessionID, Answer: "  "})
	if _, ok := domain.IsValidationError(err); !ok {
		t.Errorf("error = %v; want validation error", err)
	}
}
