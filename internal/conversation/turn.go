// Package conversation drives conversational tutoring sessions: it decides
// whether an utterance answers a pending question or starts a new turn,
// calls the reasoning service and feeds the result to the turn-taking
// state machine.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadyAsked = errors.New("a question was already posed in this idle period")
	ErrInvalidRole  = errors.New("role must be user or assistant")
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidRole, s)
	}
}

// UnmarshalJSON validates the role on decode.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Turn is one entry of the conversation. Turns are append-only.
type Turn struct {
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	IsQuestion bool      `json:"is_question"`
	At         time.Time `json:"at"`
}

// ReplyRequest asks the reasoning service for the next assistant turn.
type ReplyRequest struct {
	Turns   []Turn
	Context string
	// WantQuestion asks the service to pose a question the student should answer.
	WantQuestion bool
}

// Reply is the reasoning service's next assistant turn.
type Reply struct {
	Text       string `json:"text"`
	Speak      string `json:"speak"`
	IsQuestion bool   `json:"is_question"`
}

// EvaluateRequest asks the reasoning service to judge an answer to the
// most recent question.
type EvaluateRequest struct {
	Turns   []Turn
	Answer  string
	Context string
}

// Evaluation is the judgment of an answer.
type Evaluation struct {
	Correct bool   `json:"correct"`
	Text    string `json:"text"`
	Speak   string `json:"speak"`
}

// Replier is the reasoning service contract for conversations. Failures
// must wrap capability.ErrService.
type Replier interface {
	Reply(ctx context.Context, req ReplyRequest) (Reply, error)
	Evaluate(ctx context.Context, req EvaluateRequest) (Evaluation, error)
}

// TurnStore persists the turn history. Writes are fire-and-forget.
type TurnStore interface {
	AppendTurns(sessionID uuid.UUID, turns []Turn)
}
