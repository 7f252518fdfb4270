package sessions

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/history"
	"github.com/JaimeStill/mentor/internal/turns"
	"github.com/JaimeStill/mentor/internal/whiteboard"
)

var (
	ErrClientOffline = errors.New("client is not connected")
	ErrNotLive       = errors.New("session is not active")
	ErrAlreadyLive   = errors.New("session is already active")
	ErrEnded         = errors.New("session has ended")
	ErrWrongKind     = errors.New("operation not supported for this session kind")
)

// MapHTTPStatus maps session and core errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrWrongKind),
		errors.Is(err, turns.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrClientOffline),
		errors.Is(err, ErrNotLive),
		errors.Is(err, ErrAlreadyLive),
		errors.Is(err, ErrEnded),
		errors.Is(err, turns.ErrBusy),
		errors.Is(err, turns.ErrClosed),
		errors.Is(err, turns.ErrStarted),
		errors.Is(err, conversation.ErrAlreadyAsked),
		errors.Is(err, whiteboard.ErrFinalized):
		return http.StatusConflict
	default:
		return history.MapHTTPStatus(err)
	}
}
