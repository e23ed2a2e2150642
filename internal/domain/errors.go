package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// -----------------------------------------------------------------------------
// Domain Errors
// Every failure the client surfaces falls into one of three classes:
// AuthError (inline, retryable form), LoadError (banner, redirect away) and
// ValidationError (caught before any round trip).
// -----------------------------------------------------------------------------

// Exercise errors
var (
	ErrInvalidDifficulty = errors.New("difficulty must be between 1 and 14")
	ErrMalformedExercise = errors.New("malformed exercise payload")
	ErrNotReady          = errors.New("exercise is not accepting answers")
	ErrEmptyAnswer       = errors.New("answer is required")
	ErrSessionEnded      = errors.New("exercise session has ended")
)

// Lesson tree errors
var (
	ErrNodeNotFound     = errors.New("lesson node not found")
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrNotExpandable    = errors.New("lesson node has no nested content")
	ErrNodeClosed       = errors.New("lesson node is collapsed")
)

// View errors
var (
	ErrNotMounted = errors.New("view is not mounted")
)

// AuthError is a rejected login or registration. The message comes from
// the auth service's detail field and is safe to show to the user.
type AuthError struct {
	Op     string
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Detail)
}

// LoadError is a failure to obtain an exercise: transport errors, non-2xx
// responses and malformed payloads all end up here.
type LoadError struct {
	Code       string
	Difficulty Difficulty
	Status     int
	Err        error
}

func (e *LoadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("load exercise %s (difficulty %d): status %d: %v", e.Code, e.Difficulty, e.Status, e.Err)
	}
	return fmt.Sprintf("load exercise %s (difficulty %d): %v", e.Code, e.Difficulty, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ValidationError lists input fields that failed validation
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range sortedKeys(e.Fields) {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsAuthError reports whether err is an AuthError and returns it
func IsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsLoadError reports whether err is a LoadError and returns it
func IsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// IsValidationError reports whether err is a ValidationError and returns it
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
