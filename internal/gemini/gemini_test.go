package gemini_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/internal/gemini"
)

type call struct {
	system string
	parts  []genai.Part
}

type fakeGenerator struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   []call
}

func (f *fakeGenerator) Generate(_ context.Context, system string, parts ...genai.Part) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.calls)
	f.calls = append(f.calls, call{system: system, parts: parts})

	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return f.replies[len(f.replies)-1], nil
}

func newClient(gen gemini.Generator) *gemini.Client {
	cfg := &gemini.Config{}
	if err := cfg.Finalize(nil); err != nil {
		panic(err)
	}
	cfg.Backoff = "1ms"
	return gemini.NewWithGenerator(gen, cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAnalyze(t *testing.T) {
	gen := &fakeGenerator{replies: []string{`{
		"is_correct": false,
		"is_incomplete": false,
		"feedback": " The sign flips when you move 3 across. ",
		"hints": ["Subtract 3 from both sides"],
		"encouragement": "Almost there!",
		"speak": "Check the sign",
		"region": {"x": 0.1, "y": 0.2, "width": 0.3, "height": 0.1}
	}`}}

	v, err := newClient(gen).Analyze(t.Context(), analysis.Request{
		Problem:          "Solve 2x + 3 = 7",
		Image:            capability.Image{Data: []byte("png"), MIME: "image/png"},
		PreviousFeedback: "Watch the division step.",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if v.Feedback != "The sign flips when you move 3 across." || v.Speak != "Check the sign" {
		t.Errorf("verdict = %+v", v)
	}
	if v.Region == nil || v.Region.Width != 0.3 {
		t.Errorf("region = %+v", v.Region)
	}

	c := gen.calls[0]
	if !strings.Contains(c.system, "Solve 2x + 3 = 7") || !strings.Contains(c.system, "Watch the division step.") {
		t.Error("system prompt should carry the problem and previous feedback")
	}
	if len(c.parts) != 2 {
		t.Fatalf("parts = %d, want text and image", len(c.parts))
	}
	if blob, ok := c.parts[1].(genai.Blob); !ok || blob.MIMEType != "image/png" {
		t.Errorf("image part = %#v", c.parts[1])
	}
}

func TestRetriesThenSucceeds(t *testing.T) {
	gen := &fakeGenerator{
		errs:    []error{errors.New("503"), errors.New("503")},
		replies: []string{"", "", `{"text":"Good question!","speak":"","is_question":false}`},
	}

	r, err := newClient(gen).Reply(t.Context(), conversation.ReplyRequest{
		Turns: []conversation.Turn{{Role: conversation.RoleUser, Text: "Why is the sky blue?"}},
	})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if len(gen.calls) != 3 {
		t.Errorf("calls = %d, want 3", len(gen.calls))
	}
	if r.Speak != "Good question!" {
		t.Errorf("empty speak should fall back to text, got %q", r.Speak)
	}
	if !strings.Contains(gen.calls[2].system, "Student: Why is the sky blue?") {
		t.Error("transcript should be part of the system prompt")
	}
}

func TestFailuresWrapServiceError(t *testing.T) {
	t.Run("exhausted retries", func(t *testing.T) {
		boom := errors.New("boom")
		gen := &fakeGenerator{errs: []error{boom, boom, boom}, replies: []string{""}}

		_, err := newClient(gen).Evaluate(t.Context(), conversation.EvaluateRequest{Answer: "42"})
		if !errors.Is(err, capability.ErrService) || !errors.Is(err, boom) {
			t.Errorf("err = %v", err)
		}
		if len(gen.calls) != 3 {
			t.Errorf("calls = %d, want 3", len(gen.calls))
		}
	})

	t.Run("unparseable", func(t *testing.T) {
		gen := &fakeGenerator{replies: []string{"I think it's right"}}

		_, err := newClient(gen).Analyze(t.Context(), analysis.Request{Problem: "1+1"})
		if !errors.Is(err, capability.ErrService) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		c := newClient(nil)
		if c.Available() {
			t.Error("client without generator should be unavailable")
		}
		_, err := c.Analyze(t.Context(), analysis.Request{})
		if !errors.Is(err, capability.ErrService) || !errors.Is(err, capability.ErrUnavailable) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestQuestionReplyIsFlagged(t *testing.T) {
	gen := &fakeGenerator{replies: []string{`{"text":"What is 7 times 8?","speak":"What is seven times eight?"}`}}

	r, err := newClient(gen).Reply(t.Context(), conversation.ReplyRequest{WantQuestion: true, Context: "times tables"})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if !r.IsQuestion {
		t.Error("a requested question should be flagged as a question")
	}
}

func TestReview(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"```json\n{\"review\": \"Clear, careful work.\"}\n```"}}

	got, err := newClient(gen).Review(t.Context(), feedback.Completion{
		Problem:  "Solve 2x + 3 = 7",
		Solved:   true,
		Attempts: 2,
	})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if got != "Clear, careful work." {
		t.Errorf("review = %q", got)
	}
	if len(gen.calls[0].parts) != 1 {
		t.Error("no image part expected without a snapshot")
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_GEMINI_MODEL", "gemini-pro-vision")

	cfg := gemini.Config{}
	if err := cfg.Finalize(&gemini.Env{Model: "TEST_GEMINI_MODEL"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if cfg.Model != "gemini-pro-vision" || cfg.MaxAttempts != 3 {
		t.Errorf("cfg = %+v", cfg)
	}

	bad := gemini.Config{Temperature: 3}
	if err := bad.Finalize(nil); err == nil {
		t.Error("temperature above 2 should fail")
	}
}
