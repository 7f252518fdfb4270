package prompts_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/JaimeStill/mentor/internal/prompts"
)

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{prompts.ErrNotFound, http.StatusNotFound},
		{prompts.ErrDuplicate, http.StatusConflict},
		{prompts.ErrInvalidStage, http.StatusBadRequest},
		{prompts.ErrEmptyPrompt, http.StatusBadRequest},
		{prompts.ErrInvalidID, http.StatusBadRequest},
		{prompts.ErrSameAsDefault, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := prompts.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestEveryStageHasInstructionsAndSpec(t *testing.T) {
	for _, stage := range prompts.Stages() {
		if _, err := prompts.Instructions(stage); err != nil {
			t.Errorf("Instructions(%s): %v", stage, err)
		}
		if _, err := prompts.Spec(stage); err != nil {
			t.Errorf("Spec(%s): %v", stage, err)
		}
	}

	if _, err := prompts.ParseStage("classify"); !errors.Is(err, prompts.ErrInvalidStage) {
		t.Errorf("ParseStage(classify) = %v, want ErrInvalidStage", err)
	}
}

type overrideSource map[prompts.Stage]string

func (s overrideSource) Instructions(_ context.Context, stage prompts.Stage) (string, error) {
	if text, ok := s[stage]; ok {
		return text, nil
	}
	return prompts.Instructions(stage)
}

func TestCompose(t *testing.T) {
	src := overrideSource{prompts.StageCheck: "Custom check instructions."}

	got, err := prompts.Compose(t.Context(), src, prompts.StageCheck,
		prompts.Section{Title: "Problem", Body: "Solve 2x + 3 = 7"},
		prompts.Section{Title: "Previous feedback", Body: ""},
	)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if !strings.HasPrefix(got, "Custom check instructions.") {
		t.Error("override instructions should lead the prompt")
	}
	if !strings.Contains(got, `"is_incomplete"`) {
		t.Error("check spec should be included")
	}
	if !strings.Contains(got, "Problem:\n\nSolve 2x + 3 = 7") {
		t.Error("non-empty section should be included")
	}
	if strings.Contains(got, "Previous feedback") {
		t.Error("empty section should be skipped")
	}

	if _, err := prompts.Compose(t.Context(), prompts.Defaults{}, prompts.Stage("grade")); err == nil {
		t.Error("unknown stage should fail")
	}
}
