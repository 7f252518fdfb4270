package prompts

import (
	"context"
	"fmt"
	"strings"
)

// Source resolves the effective instructions of a stage.
type Source interface {
	Instructions(ctx context.Context, stage Stage) (string, error)
}

// Defaults is a Source serving the hard-coded instructions only.
type Defaults struct{}

func (Defaults) Instructions(_ context.Context, stage Stage) (string, error) {
	return Instructions(stage)
}

// Section is a titled block appended after the instructions and spec.
type Section struct {
	Title string
	Body  string
}

// Compose builds a system prompt from the stage's effective instructions,
// its response spec and any non-empty sections.
func Compose(ctx context.Context, src Source, stage Stage, sections ...Section) (string, error) {
	text, err := src.Instructions(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := Spec(stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n\n")
	sb.WriteString(spec)

	for _, s := range sections {
		if strings.TrimSpace(s.Body) == "" {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(s.Title)
		sb.WriteString(":\n\n")
		sb.WriteString(s.Body)
	}

	return sb.String(), nil
}
