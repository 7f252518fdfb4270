// Package analysis implements the change-aware periodic analysis loop for a
// whiteboard session: capture the surface, skip unchanged content, call the
// reasoning service and route the resulting verdict.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/capability"
)

// Region is a normalized rectangle over the surface. Coordinates and sizes
// are fractions of the surface dimensions in [0, 1].
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the fraction of the surface covered by the region.
func (r Region) Area() float64 {
	return r.Width * r.Height
}

// Valid reports whether the region has positive size and lies within the surface.
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0 &&
		r.X >= 0 && r.Y >= 0 &&
		r.X+r.Width <= 1 && r.Y+r.Height <= 1
}

// Verdict is the result of one analysis call. It is never mutated after the
// loop emits it.
type Verdict struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	IsCorrect     bool      `json:"is_correct"`
	IsIncomplete  bool      `json:"is_incomplete"`
	Feedback      string    `json:"feedback"`
	Hints         []string  `json:"hints"`
	Encouragement string    `json:"encouragement"`
	Speak         string    `json:"speak,omitempty"`
	Region        *Region   `json:"region,omitempty"`
	Signature     string    `json:"signature"`
	CreatedAt     time.Time `json:"created_at"`
}

// Request is the input of one analysis call.
type Request struct {
	Problem          string
	Image            capability.Image
	PreviousFeedback string
	Context          string
}

// Analyzer is the reasoning service contract for periodic checks.
// Failures must wrap capability.ErrService.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Verdict, error)
}

// Normalize enforces the verdict invariants. A verdict flagged both correct
// and incomplete is treated as incomplete. The speak summary is only kept
// for definite errors, and a highlight region is dropped when it is invalid
// or covers maxFraction of the surface or more.
func Normalize(v Verdict, maxFraction float64) Verdict {
	if v.IsCorrect && v.IsIncomplete {
		v.IsCorrect = false
	}
	if v.IsCorrect || v.IsIncomplete {
		v.Speak = ""
	}
	if v.Region != nil && (!v.Region.Valid() || v.Region.Area() >= maxFraction) {
		v.Region = nil
	}
	if v.Hints == nil {
		v.Hints = []string{}
	}
	return v
}
