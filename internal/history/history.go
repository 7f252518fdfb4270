// Package history is the durable record of tutoring sessions: session rows,
// verdicts, conversation turns and completion records in PostgreSQL, final
// snapshots in blob storage, and hot per-session state in Redis.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrDuplicate   = errors.New("session already exists")
	ErrInvalidKind = errors.New("kind must be whiteboard or conversation")
	ErrNoProblem   = errors.New("whiteboard sessions require a problem")
	ErrNoClient    = errors.New("client_id is required")
)

// MapHTTPStatus maps history errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidKind), errors.Is(err, ErrNoProblem), errors.Is(err, ErrNoClient):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Kind distinguishes whiteboard sessions from conversational ones.
type Kind string

const (
	KindWhiteboard   Kind = "whiteboard"
	KindConversation Kind = "conversation"
)

// ParseKind validates a session kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindWhiteboard, KindConversation:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// UnmarshalJSON validates the kind on decode.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Session is the durable record of one tutoring session.
type Session struct {
	ID          uuid.UUID  `json:"id"`
	ClientID    string     `json:"client_id"`
	Kind        Kind       `json:"kind"`
	Problem     string     `json:"problem"`
	Context     string     `json:"context"`
	Muted       bool       `json:"muted"`
	LastChecked string     `json:"last_checked,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// Ended reports whether the session has been closed.
func (s Session) Ended() bool {
	return s.EndedAt != nil
}

// CreateCommand describes a new session.
type CreateCommand struct {
	ClientID string `json:"client_id"`
	Kind     Kind   `json:"kind"`
	Problem  string `json:"problem"`
	Context  string `json:"context"`
	Muted    bool   `json:"muted"`
}

// Validate checks the command's required fields.
func (c CreateCommand) Validate() error {
	if c.ClientID == "" {
		return ErrNoClient
	}
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	if c.Kind == KindWhiteboard && c.Problem == "" {
		return ErrNoProblem
	}
	return nil
}

// SnapshotKey is the blob key of a session snapshot.
func SnapshotKey(sessionID, snapshotID uuid.UUID, ext string) string {
	return fmt.Sprintf("sessions/%s/snapshots/%s.%s", sessionID, snapshotID, ext)
}
