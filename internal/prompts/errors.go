package prompts

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound      = errors.New("prompt not found")
	ErrDuplicate     = errors.New("prompt name already exists")
	ErrInvalidStage  = errors.New("stage must be check, reply, question, evaluate, or review")
	ErrEmptyPrompt   = errors.New("prompt name and instructions are required")
	ErrInvalidID     = errors.New("invalid prompt id")
	ErrSameAsDefault = errors.New("instructions match the stage default")
)

// MapHTTPStatus maps prompt domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidStage), errors.Is(err, ErrEmptyPrompt),
		errors.Is(err, ErrInvalidID), errors.Is(err, ErrSameAsDefault):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
