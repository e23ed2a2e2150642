package domain

import (
	"time"

	"github.com/google/uuid"
)

// Attempt records one solved exercise session
type Attempt struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Code           string     `json:"code"`
	Difficulty     Difficulty `json:"difficulty"`
	Attempts       int        `json:"attempts"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	Points         int        `json:"points"`
	SolvedAt       time.Time  `json:"solved_at"`
}

// NewAttempt creates an attempt record stamped with a fresh ID
func NewAttempt(username, code string, difficulty Difficulty, attempts, elapsed, points int) *Attempt {
	return &Attempt{
		ID:             uuid.New(),
		Username:       username,
		Code:           code,
		Difficulty:     difficulty,
		Attempts:       attempts,
		ElapsedSeconds: elapsed,
		Points:         points,
		SolvedAt:       time.Now().UTC(),
	}
}

// Progress aggregates a user's solved attempts for the dashboard
type Progress struct {
	Username      string `json:"username"`
	Solved        int    `json:"solved"`
	TotalPoints   int    `json:"total_points"`
	TotalAttempts int    `json:"total_attempts"`
	BestSeconds   int    `json:"best_seconds"`
}

// Add folds one attempt into the summary
func (p *Progress) Add(a *Attempt) {
	p.Solved++
	p.TotalPoints += a.Points
	p.TotalAttempts += a.Attempts
	if p.Solved == 1 || a.ElapsedSeconds < p.BestSeconds {
		p.BestSeconds = a.ElapsedSeconds
	}
}

// PointsFor returns the points awarded for solving after the given number
// of earlier, unsuccessful submissions.
func PointsFor(previousAttempts int) int {
	return max(10-previousAttempts, 1)
}
