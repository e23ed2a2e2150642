// Package exercise runs one exercise attempt from fetch to resolution.
package exercise

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// State of an exercise session
type State int

const (
	StateLoading State = iota
	StateReady
	StateSolved
	StateLoadFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSolved:
		return "solved"
	case StateLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Feedback kinds
const (
	FeedbackSuccess = "success"
	FeedbackError   = "error"
)

// User-facing messages
const (
	MessageCorrect    = "Correct! Well done!"
	MessageRetry      = "Not quite right. Try again!"
	MessageLoadFailed = "Failed to load exercise. Please try again."
)

// Feedback is the message shown after a submission
type Feedback struct {
	Kind    string `json:"type"`
	Message string `json:"message"`
}

// Fetcher retrieves exercises from the exercise service
type Fetcher interface {
	FetchExercise(ctx context.Context, code string, difficulty domain.Difficulty) (*domain.Exercise, error)
}

// Options tune a session
type Options struct {
	// Difficulty of the first fetch (default: 1)
	Difficulty domain.Difficulty

	// TickInterval between elapsed-time increments (default: 1s)
	TickInterval time.Duration

	// RedirectDelay before a failed load navigates back to the lesson list
	RedirectDelay time.Duration

	// FetchTimeout bounds one fetch (default: 30s)
	FetchTimeout time.Duration

	// Username is recorded on solved attempts
	Username string

	// Clock drives ticks and the redirect timer (default: SystemClock)
	Clock Clock

	// OnSolved receives each solved attempt
	OnSolved func(domain.Attempt)

	// OnRedirect receives the route once a failed load's delay elapses
	OnRedirect func(route string)
}

func (o *Options) applyDefaults() {
	if !o.Difficulty.Valid() {
		o.Difficulty = domain.DefaultDifficulty
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.RedirectDelay < 0 {
		o.RedirectDelay = 0
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
}

// Session is one exercise attempt. All transitions happen under its mutex;
// the fetch and the ticker are the only goroutines it owns.
type Session struct {
	mu      sync.Mutex
	fetcher Fetcher
	opts    Options

	code       string
	difficulty domain.Difficulty
	state      State
	exercise   *domain.Exercise
	answer     string
	feedback   Feedback
	showHints  bool
	ticks      int
	attempts   int
	score      int
	loadErr    error
	redirect   string

	gen          uint64
	started      bool
	closed       bool
	settled      chan struct{}
	cancelFetch  context.CancelFunc
	stopTicker   func()
	stopRedirect func() bool
}

// New creates a session for an exercise code. Nothing happens until Start.
func New(code string, fetcher Fetcher, opts Options) *Session {
	opts.applyDefaults()
	return &Session{
		fetcher:    fetcher,
		opts:       opts,
		code:       code,
		difficulty: opts.Difficulty,
		settled:    make(chan struct{}),
	}
}

// Start enters Loading with the initial code and difficulty
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrNotMounted
	}
	if s.started {
		return nil
	}
	s.started = true
	s.enterLoading()
	return nil
}

// SetDifficulty refetches at a new difficulty. Setting the current value
// is a no-op.
func (s *Session) SetDifficulty(d domain.Difficulty) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidDifficulty, d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}
	if d == s.difficulty {
		return nil
	}
	s.difficulty = d
	s.enterLoading()
	return nil
}

// SetCode refetches for another exercise code. Setting the current value
// is a no-op.
func (s *Session) SetCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}
	if code == s.code {
		return nil
	}
	s.code = code
	s.enterLoading()
	return nil
}

// Next fetches a fresh exercise with the same code and difficulty
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}
	s.enterLoading()
	return nil
}

// Result describes what a submission did
type Result struct {
	Correct  bool
	Points   int
	Attempts int
	Feedback Feedback
}

// Submit checks an answer against the solution. Only Ready sessions
// accept answers; a blank answer is rejected without counting.
func (s *Session) Submit(answer string) (Result, error) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return Result{}, domain.ErrNotMounted
	}
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: session is %s", domain.ErrNotReady, state)
	}

	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		s.mu.Unlock()
		return Result{}, &domain.ValidationError{Fields: map[string]string{"answer": domain.ErrEmptyAnswer.Error()}}
	}

	s.answer = answer
	before := s.attempts
	s.attempts++

	if trimmed != string(s.exercise.Solution) {
		s.feedback = Feedback{Kind: FeedbackError, Message: MessageRetry}
		res := Result{Attempts: s.attempts, Feedback: s.feedback}
		s.mu.Unlock()
		return res, nil
	}

	points := domain.PointsFor(before)
	s.score += points
	s.state = StateSolved
	s.feedback = Feedback{Kind: FeedbackSuccess, Message: MessageCorrect}
	s.haltTicker()

	res := Result{Correct: true, Points: points, Attempts: s.attempts, Feedback: s.feedback}
	attempt := *domain.NewAttempt(s.opts.Username, s.code, s.difficulty, s.attempts, s.elapsedSeconds(), points)
	onSolved := s.opts.OnSolved
	s.mu.Unlock()

	if onSolved != nil {
		onSolved(attempt)
	}
	return res, nil
}

// ToggleHints flips hint visibility once an exercise is loaded
func (s *Session) ToggleHints() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, domain.ErrNotMounted
	}
	if s.exercise == nil || (s.state != StateReady && s.state != StateSolved) {
		return false, fmt.Errorf("%w: session is %s", domain.ErrNotReady, s.state)
	}
	s.showHints = !s.showHints
	return s.showHints, nil
}

// Close tears the session down: the fetch is cancelled, timers stop and
// late results are dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.gen++
	s.haltFetch()
	s.haltTicker()
	s.haltRedirect()
	s.settle()
	return nil
}

// Await blocks until the current load has resolved or ctx is done
func (s *Session) Await(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		if s.state != StateLoading || s.closed || !s.started {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		ch := s.settled
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

func (s *Session) checkActive() error {
	if s.closed {
		return domain.ErrNotMounted
	}
	if !s.started {
		return fmt.Errorf("%w: session not started", domain.ErrNotReady)
	}
	if s.state == StateLoadFailed {
		return domain.ErrSessionEnded
	}
	return nil
}

// enterLoading supersedes any live fetch, resets the per-exercise state
// and restarts the elapsed counter. The score carries over.
func (s *Session) enterLoading() {
	s.gen++
	gen := s.gen

	s.haltFetch()
	s.haltTicker()
	s.haltRedirect()

	s.state = StateLoading
	s.exercise = nil
	s.answer = ""
	s.feedback = Feedback{}
	s.showHints = false
	s.ticks = 0
	s.attempts = 0
	s.loadErr = nil
	s.redirect = ""
	s.settled = make(chan struct{})

	s.stopTicker = s.opts.Clock.Every(s.opts.TickInterval, func() { s.tick(gen) })

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.FetchTimeout)
	s.cancelFetch = cancel
	code, difficulty := s.code, s.difficulty

	go func() {
		ex, err := s.fetcher.FetchExercise(ctx, code, difficulty)
		s.finishFetch(gen, ex, err)
	}()
}

func (s *Session) finishFetch(gen uint64, ex *domain.Exercise, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		return
	}
	s.haltFetch()

	if err == nil && ex == nil {
		err = fmt.Errorf("%w: empty response", domain.ErrMalformedExercise)
	}
	if err == nil {
		err = ex.Validate()
	}
	if err != nil {
		s.fail(gen, err)
		return
	}

	s.exercise = ex
	s.state = StateReady
	s.settle()
}

func (s *Session) fail(gen uint64, err error) {
	slog.Warn("exercise load failed",
		"code", s.code,
		"difficulty", int(s.difficulty),
		"error", err)

	s.state = StateLoadFailed
	s.loadErr = err
	s.feedback = Feedback{Kind: FeedbackError, Message: MessageLoadFailed}
	s.haltTicker()
	s.settle()

	s.stopRedirect = s.opts.Clock.AfterFunc(s.opts.RedirectDelay, func() { s.fireRedirect(gen) })
}

func (s *Session) fireRedirect(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.state != StateLoadFailed {
		s.mu.Unlock()
		return
	}
	s.redirect = domain.RouteLessons
	onRedirect := s.opts.OnRedirect
	s.mu.Unlock()

	if onRedirect != nil {
		onRedirect(domain.RouteLessons)
	}
}

func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		return
	}
	if s.state != StateLoading && s.state != StateReady {
		return
	}
	s.ticks++
}

func (s *Session) haltFetch() {
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
}

func (s *Session) haltTicker() {
	if s.stopTicker != nil {
		s.stopTicker()
		s.stopTicker = nil
	}
}

func (s *Session) haltRedirect() {
	if s.stopRedirect != nil {
		s.stopRedirect()
		s.stopRedirect = nil
	}
}

// settle wakes Await callers. Safe to call more than once per load.
func (s *Session) settle() {
	select {
	case <-s.settled:
	default:
		close(s.settled)
	}
}

func (s *Session) elapsedSeconds() int {
	return int(time.Duration(s.ticks) * s.opts.TickInterval / time.Second)
}
