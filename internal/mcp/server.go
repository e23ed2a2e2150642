package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"github.com/felixgeelhaar/blackbird/internal/exercise"
	"github.com/felixgeelhaar/blackbird/internal/lesson"
	"github.com/felixgeelhaar/blackbird/internal/mount"
	"github.com/felixgeelhaar/blackbird/internal/progress"
)

// Server wraps the MCP server with Blackbird functionality
type Server struct {
	mcpServer *server.Server
	lessons   *lesson.Registry
	fetcher   exercise.Fetcher
	progress  *progress.Service
	sessions  *mount.Registry[*exercise.Session]
	cfg       Config
}

// Config contains configuration for the MCP server
type Config struct {
	Lessons  *lesson.Registry
	Fetcher  exercise.Fetcher
	Progress *progress.Service

	// Username is recorded on solved attempts; empty keeps them anonymous
	Username string

	// DefaultDifficulty applies when blackbird_start omits one
	DefaultDifficulty domain.Difficulty

	// SessionTTL unmounts idle sessions (default: 30m)
	SessionTTL time.Duration

	// Clock drives session timers (default: exercise.SystemClock)
	Clock exercise.Clock

	Version string
}

// NewServer creates a new MCP server for Blackbird
func NewServer(cfg Config) *Server {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if !cfg.DefaultDifficulty.Valid() {
		cfg.DefaultDifficulty = domain.DefaultDifficulty
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		lessons:  cfg.Lessons,
		fetcher:  cfg.Fetcher,
		progress: cfg.Progress,
		sessions: mount.NewRegistry[*exercise.Session]("sessions", cfg.SessionTTL),
		cfg:      cfg,
	}

	s.mcpServer = server.New(server.Info{
		Name:    "blackbird",
		Version: cfg.Version,
	}, server.WithInstructions(`
Blackbird Academy serves math exercises from a nested lesson tree.

Available tools:
- blackbird_lessons: Show the lesson outline and exercise codes
- blackbird_start: Start an exercise session for a code and difficulty (1-14)
- blackbird_answer: Submit an answer; the first correct try scores 10 points
- blackbird_hints: Reveal the hints of the current exercise
- blackbird_status: Show question, score, attempts and elapsed time
- blackbird_stop: End a session
`))

	s.registerTools()

	return s
}

// registerTools registers all Blackbird MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("blackbird_lessons").
		Description("Show the lesson outline with the exercise codes it links to.").
		Handler(s.handleLessons)

	s.mcpServer.Tool("blackbird_start").
		Description("Start an exercise session and return its question.").
		Handler(s.handleStart)

	s.mcpServer.Tool("blackbird_answer").
		Description("Submit an answer to the current exercise.").
		Handler(s.handleAnswer)

	s.mcpServer.Tool("blackbird_hints").
		Description("Reveal the hints of the current exercise.").
		Handler(s.handleHints)

	s.mcpServer.Tool("blackbird_status").
		Description("Get current session status.").
		Handler(s.handleStatus)

	s.mcpServer.Tool("blackbird_stop").
		Description("End a Blackbird exercise session.").
		Handler(s.handleStop)
}

// Input/Output types for tools

type LessonsInput struct{}

type LessonsOutput struct {
	Outline string   `json:"outline"`
	Codes   []string `json:"codes"`
}

type StartInput struct {
	Code       string `json:"code" jsonschema:"description=Exercise code from blackbird_lessons"`
	Difficulty int    `json:"difficulty,omitempty" jsonschema:"description=Difficulty from 1 (easy) to 14 (hard)"`
}

type StartOutput struct {
	SessionID  string `json:"session_id"`
	Code       string `json:"code"`
	Difficulty int    `json:"difficulty"`
	Question   string `json:"question"`
	Message    string `json:"message"`
}

type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from blackbird_start"`
}

type AnswerInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from blackbird_start"`
	Answer    string `json:"answer" jsonschema:"description=Answer compared after trimming whitespace"`
}

type AnswerOutput struct {
	Correct  bool   `json:"correct"`
	Points   int    `json:"points"`
	Attempts int    `json:"attempts"`
	Score    int    `json:"score"`
	Message  string `json:"message"`
}

type HintsOutput struct {
	Hints []string `json:"hints"`
}

type StatusOutput struct {
	SessionID  string `json:"session_id"`
	Code       string `json:"code"`
	State      string `json:"state"`
	Difficulty int    `json:"difficulty"`
	Question   string `json:"question,omitempty"`
	Attempts   int    `json:"attempts"`
	Score      int    `json:"score"`
	Elapsed    string `json:"elapsed"`
}

type StopOutput struct {
	Message string `json:"message"`
}

// Tool handlers

func (s *Server) handleLessons(ctx context.Context, _ LessonsInput) (LessonsOutput, error) {
	if s.lessons == nil {
		return LessonsOutput{}, fmt.Errorf("no lessons loaded")
	}
	return LessonsOutput{
		Outline: s.lessons.Outline(),
		Codes:   s.lessons.Codes(),
	}, nil
}

func (s *Server) handleStart(ctx context.Context, input StartInput) (StartOutput, error) {
	if input.Code == "" {
		return StartOutput{}, fmt.Errorf("code is required")
	}
	if s.fetcher == nil {
		return StartOutput{}, fmt.Errorf("exercise service not configured")
	}
	if s.lessons != nil && !s.lessons.HasCode(input.Code) {
		slog.Warn("starting exercise outside the lesson tree", "code", input.Code)
	}

	difficulty := s.cfg.DefaultDifficulty
	if input.Difficulty != 0 {
		difficulty = domain.Difficulty(input.Difficulty)
		if !difficulty.Valid() {
			return StartOutput{}, fmt.Errorf("%w: %d", domain.ErrInvalidDifficulty, input.Difficulty)
		}
	}

	sess := exercise.New(input.Code, s.fetcher, exercise.Options{
		Difficulty: difficulty,
		Username:   s.cfg.Username,
		Clock:      s.cfg.Clock,
		OnSolved:   s.recordAttempt,
	})
	if err := sess.Start(); err != nil {
		return StartOutput{}, fmt.Errorf("failed to start session: %w", err)
	}

	snap, err := sess.Await(ctx)
	if err != nil {
		sess.Close()
		return StartOutput{}, fmt.Errorf("waiting for exercise: %w", err)
	}
	if snap.State == exercise.StateLoadFailed.String() {
		sess.Close()
		return StartOutput{}, fmt.Errorf("exercise %s: %s", snap.Code, snap.Error)
	}

	id := s.sessions.Mount(s.cfg.Username, sess)
	return StartOutput{
		SessionID:  id,
		Code:       snap.Code,
		Difficulty: snap.Difficulty,
		Question:   snap.Question,
		Message:    fmt.Sprintf("Session started at difficulty %d (%s).", snap.Difficulty, snap.Band),
	}, nil
}

func (s *Server) recordAttempt(a domain.Attempt) {
	if s.progress != nil {
		s.progress.RecordAsync(a)
	}
}

func (s *Server) handleAnswer(ctx context.Context, input AnswerInput) (AnswerOutput, error) {
	sess, err := s.sessions.Get(s.cfg.Username, input.SessionID)
	if err != nil {
		return AnswerOutput{}, fmt.Errorf("session not found: %w", err)
	}

	res, err := sess.Submit(input.Answer)
	if err != nil {
		return AnswerOutput{}, fmt.Errorf("submit answer: %w", err)
	}

	return AnswerOutput{
		Correct:  res.Correct,
		Points:   res.Points,
		Attempts: res.Attempts,
		Score:    sess.Snapshot().Score,
		Message:  res.Feedback.Message,
	}, nil
}

func (s *Server) handleHints(ctx context.Context, input SessionInput) (HintsOutput, error) {
	sess, err := s.sessions.Get(s.cfg.Username, input.SessionID)
	if err != nil {
		return HintsOutput{}, fmt.Errorf("session not found: %w", err)
	}

	if !sess.Snapshot().ShowHints {
		if _, err := sess.ToggleHints(); err != nil {
			return HintsOutput{}, fmt.Errorf("show hints: %w", err)
		}
	}
	return HintsOutput{Hints: sess.Snapshot().Hints}, nil
}

func (s *Server) handleStatus(ctx context.Context, input SessionInput) (StatusOutput, error) {
	sess, err := s.sessions.Get(s.cfg.Username, input.SessionID)
	if err != nil {
		return StatusOutput{}, fmt.Errorf("session not found: %w", err)
	}

	snap := sess.Snapshot()
	return StatusOutput{
		SessionID:  input.SessionID,
		Code:       snap.Code,
		State:      snap.State,
		Difficulty: snap.Difficulty,
		Question:   snap.Question,
		Attempts:   snap.Attempts,
		Score:      snap.Score,
		Elapsed:    snap.ElapsedText(),
	}, nil
}

func (s *Server) handleStop(ctx context.Context, input SessionInput) (StopOutput, error) {
	if err := s.sessions.Unmount(s.cfg.Username, input.SessionID); err != nil {
		return StopOutput{}, fmt.Errorf("failed to stop session: %w", err)
	}

	return StopOutput{
		Message: "Session ended successfully",
	}, nil
}

// ServeStdio starts the MCP server on stdio. Idle sessions are swept until
// ctx is done.
func (s *Server) ServeStdio(ctx context.Context) error {
	go s.sessions.Run(ctx, time.Minute)
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	go s.sessions.Run(ctx, time.Minute)
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}

// Close ends every open session
func (s *Server) Close() {
	s.sessions.CloseAll()
}
