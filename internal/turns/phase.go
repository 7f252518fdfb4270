// Package turns implements the turn-taking state machine that serializes
// speech input and speech output for a conversational session.
package turns

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Phase is the active turn-taking state. Exactly one phase is active per
// session at any instant.
type Phase string

const (
	// Speaking: output is active, input is off.
	Speaking Phase = "speaking"
	// Listening: input is active (or armed behind a gesture), output is silent.
	Listening Phase = "listening"
	// Processing: a reasoning call is in flight, input and output are off.
	Processing Phase = "processing"
	// AwaitingInput: paused after a question until the user resumes.
	AwaitingInput Phase = "awaiting_input"
)

var ErrInvalidTransition = errors.New("invalid phase transition")

var transitions = map[Phase][]Phase{
	Speaking:      {Listening, AwaitingInput},
	Listening:     {Listening, Processing},
	Processing:    {Speaking, AwaitingInput},
	AwaitingInput: {Listening, Processing, Speaking},
}

// CanTransition reports whether the phase graph allows from -> to.
func CanTransition(from, to Phase) bool {
	return slices.Contains(transitions[from], to)
}

// ParsePhase converts a string to a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if _, ok := transitions[p]; !ok {
		return "", fmt.Errorf("unknown phase: %s", s)
	}
	return p, nil
}

// UnmarshalJSON validates the phase on decode.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
