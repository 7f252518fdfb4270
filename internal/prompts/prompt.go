// Package prompts owns the instructions sent to the reasoning service.
// Every stage has hard-coded default instructions and an immutable response
// spec; tutors can store named instruction overrides and activate one per
// stage to change tone or pedagogy without a redeploy.
package prompts

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prompt is a named instruction override for a stage.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Stage        Stage     `json:"stage"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Command carries the fields of a create or update request.
type Command struct {
	Name         string  `json:"name"`
	Stage        Stage   `json:"stage"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}

// validate rejects blank fields and overrides that restate the stage
// default, which would only shadow future changes to it.
func (c Command) validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Instructions) == "" {
		return ErrEmptyPrompt
	}
	if _, err := ParseStage(string(c.Stage)); err != nil {
		return err
	}
	if def, _ := Instructions(c.Stage); strings.TrimSpace(c.Instructions) == strings.TrimSpace(def) {
		return ErrSameAsDefault
	}
	return nil
}
