package exercise

import (
	"fmt"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// Snapshot is a read-only view of a session. The solution is never
// included.
type Snapshot struct {
	State      string   `json:"state"`
	Code       string   `json:"code"`
	Difficulty int      `json:"difficulty"`
	Band       string   `json:"band"`
	Question   string   `json:"question,omitempty"`
	Hints      []string `json:"hints,omitempty"`
	ShowHints  bool     `json:"show_hints"`
	Answer     string   `json:"answer,omitempty"`
	Feedback   Feedback `json:"feedback"`
	Elapsed    int      `json:"elapsed_seconds"`
	Attempts   int      `json:"attempts"`
	Score      int      `json:"score"`
	Error      string   `json:"error,omitempty"`
	Redirect   string   `json:"redirect,omitempty"`
}

// Loaded reports whether a question is available
func (s Snapshot) Loaded() bool {
	return s.State == StateReady.String() || s.State == StateSolved.String()
}

// ElapsedText renders the elapsed time as m:ss
func (s Snapshot) ElapsedText() string {
	return FormatElapsed(s.Elapsed)
}

// Snapshot returns the current session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      s.state.String(),
		Code:       s.code,
		Difficulty: int(s.difficulty),
		Band:       s.difficulty.Band(),
		ShowHints:  s.showHints,
		Answer:     s.answer,
		Feedback:   s.feedback,
		Elapsed:    s.elapsedSeconds(),
		Attempts:   s.attempts,
		Score:      s.score,
		Redirect:   s.redirect,
	}
	if s.exercise != nil {
		snap.Question = s.exercise.QuestionLatex
		snap.Hints = append([]string(nil), s.exercise.Hints...)
	}
	if s.loadErr != nil {
		snap.Error = MessageLoadFailed
	}
	return snap
}

// FormatElapsed renders seconds as m:ss
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// State returns the session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Code returns the current exercise code
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Difficulty returns the current difficulty
func (s *Session) Difficulty() domain.Difficulty {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.difficulty
}
