package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDifficulty_Valid(t *testing.T) {
	tests := []struct {
		d    Difficulty
		want bool
	}{
		{0, false},
		{1, true},
		{7, true},
		{14, true},
		{15, false},
		{-3, false},
	}

	for _, tt := range tests {
		if got := tt.d.Valid(); got != tt.want {
			t.Errorf("Difficulty(%d).Valid() = %v; want %v", tt.d, got, tt.want)
		}
	}
}

func TestDifficulty_Band(t *testing.T) {
	tests := []struct {
		d    Difficulty
		want string
	}{
		{1, "easy"},
		{4, "easy"},
		{5, "medium"},
		{9, "medium"},
		{10, "hard"},
		{14, "hard"},
	}

	for _, tt := range tests {
		if got := tt.d.Band(); got != tt.want {
			t.Errorf("Difficulty(%d).Band() = %q; want %q", tt.d, got, tt.want)
		}
	}
}

func TestDifficulties(t *testing.T) {
	all := Difficulties()
	if len(all) != 14 {
		t.Fatalf("len(Difficulties()) = %d; want 14", len(all))
	}
	if all[0] != 1 || all[13] != 14 {
		t.Errorf("Difficulties() = %v; want 1..14", all)
	}
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty("9")
	if err != nil {
		t.Fatalf("ParseDifficulty(9) error = %v", err)
	}
	if d != 9 {
		t.Errorf("ParseDifficulty(9) = %d; want 9", d)
	}

	for _, in := range []string{"", "abc", "0", "15"} {
		if _, err := ParseDifficulty(in); !errors.Is(err, ErrInvalidDifficulty) {
			t.Errorf("ParseDifficulty(%q) error = %v; want ErrInvalidDifficulty", in, err)
		}
	}
}

func TestExercise_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		solution Solution
	}{
		{"string solution", `{"questionLatex":"x^2","solution":"4","hints":["square it"]}`, "4"},
		{"integer solution", `{"questionLatex":"2+2","solution":4,"hints":[]}`, "4"},
		{"float solution", `{"questionLatex":"1/2","solution":0.5,"hints":[]}`, "0.5"},
		{"whole float solution", `{"questionLatex":"6/2","solution":3.0,"hints":[]}`, "3"},
		{"null solution", `{"questionLatex":"?","solution":null,"hints":[]}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ex Exercise
			if err := json.Unmarshal([]byte(tt.payload), &ex); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if ex.Solution != tt.solution {
				t.Errorf("Solution = %q; want %q", ex.Solution, tt.solution)
			}
		})
	}
}

func TestExercise_UnmarshalJSON_BadSolution(t *testing.T) {
	var ex Exercise
	err := json.Unmarshal([]byte(`{"questionLatex":"x","solution":[1],"hints":[]}`), &ex)
	if err == nil {
		t.Error("Unmarshal() should reject an array solution")
	}
}

func TestExercise_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ex      Exercise
		wantErr bool
	}{
		{"complete", Exercise{QuestionLatex: "x^2", Solution: "4", Hints: []string{"square it"}}, false},
		{"empty hints list", Exercise{QuestionLatex: "x^2", Solution: "4", Hints: []string{}}, false},
		{"missing question", Exercise{Solution: "4", Hints: []string{}}, true},
		{"missing solution", Exercise{QuestionLatex: "x^2", Hints: []string{}}, true},
		{"missing hints", Exercise{QuestionLatex: "x^2", Solution: "4"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ex.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedExercise) {
				t.Errorf("Validate() error = %v; want ErrMalformedExercise", err)
			}
		})
	}
}
