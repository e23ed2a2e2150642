package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Difficulty selects how hard a generated exercise is (1 to 14)
type Difficulty int

const (
	MinDifficulty     Difficulty = 1
	MaxDifficulty     Difficulty = 14
	DefaultDifficulty Difficulty = MinDifficulty
)

// Valid reports whether the difficulty is within range
func (d Difficulty) Valid() bool {
	return d >= MinDifficulty && d <= MaxDifficulty
}

// Band returns a coarse label used for display
func (d Difficulty) Band() string {
	switch {
	case d <= 4:
		return "easy"
	case d <= 9:
		return "medium"
	default:
		return "hard"
	}
}

// Difficulties lists every selectable difficulty in order
func Difficulties() []Difficulty {
	out := make([]Difficulty, 0, MaxDifficulty)
	for d := MinDifficulty; d <= MaxDifficulty; d++ {
		out = append(out, d)
	}
	return out
}

// ParseDifficulty converts form input into a Difficulty
func ParseDifficulty(s string) (Difficulty, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
	}
	d := Difficulty(n)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDifficulty, n)
	}
	return d, nil
}

// Exercise is a generated exercise as delivered by the exercise service
type Exercise struct {
	QuestionLatex string   `json:"questionLatex"`
	Solution      Solution `json:"solution"`
	Hints         []string `json:"hints"`
}

// Validate checks that the payload carries everything a session needs
func (e *Exercise) Validate() error {
	if e.QuestionLatex == "" {
		return fmt.Errorf("%w: missing questionLatex", ErrMalformedExercise)
	}
	if e.Solution == "" {
		return fmt.Errorf("%w: missing solution", ErrMalformedExercise)
	}
	if e.Hints == nil {
		return fmt.Errorf("%w: missing hints", ErrMalformedExercise)
	}
	return nil
}

// Solution is the expected answer text. The exercise service sends it
// either as a JSON string or as a JSON number.
type Solution string

// UnmarshalJSON accepts strings and numbers
func (s *Solution) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Solution(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("solution must be a string or number: %w", err)
	}
	f, err := num.Float64()
	if err != nil {
		return fmt.Errorf("parse solution: %w", err)
	}
	*s = Solution(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}
