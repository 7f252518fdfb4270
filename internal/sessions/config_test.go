package sessions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/internal/sessions"
)

func TestConfigDefaults(t *testing.T) {
	cfg := sessions.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	wb := cfg.Whiteboard()
	if wb.Loop.Interval != 15*time.Second || wb.Loop.Prefetch != 3*time.Second {
		t.Errorf("loop = %+v", wb.Loop)
	}
	if wb.Loop.FailureNotice != 3 {
		t.Errorf("failure notice = %d, want 3", wb.Loop.FailureNotice)
	}
	if wb.Feedback.Dismiss != 12*time.Second {
		t.Errorf("dismiss = %v", wb.Feedback.Dismiss)
	}
	if cfg.Turns().RestartDelay != 500*time.Millisecond {
		t.Errorf("restart delay = %v", cfg.Turns().RestartDelay)
	}
}

func TestConfigEnvAndValidation(t *testing.T) {
	t.Setenv("TEST_TICK", "20s")

	cfg := sessions.Config{}
	if err := cfg.Finalize(&sessions.Env{TickInterval: "TEST_TICK"}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.TickInterval != "20s" {
		t.Errorf("tick = %q", cfg.TickInterval)
	}

	tests := []struct {
		name string
		cfg  sessions.Config
	}{
		{"prefetch beyond interval", sessions.Config{TickInterval: "2s", PrefetchOffset: "5s"}},
		{"bad duration", sessions.Config{FeedbackDismiss: "soon"}},
		{"highlight fraction", sessions.Config{MaxHighlight: 1.5}},
		{"capture notice", sessions.Config{CaptureNotice: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type fakeReviewer struct {
	review string
	err    error
}

func (r fakeReviewer) Review(ctx context.Context, c feedback.Completion) (string, error) {
	return r.review, r.err
}

func TestReviewEnricher(t *testing.T) {
	store := newFakeStore()
	c := feedback.Completion{ID: [16]byte{7}, Solved: true}

	if err := sessions.ReviewEnricher(fakeReviewer{review: "Clean work."}, store)(context.Background(), c); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if store.reviews[c.ID] != "Clean work." {
		t.Errorf("review = %q", store.reviews[c.ID])
	}

	failing := sessions.ReviewEnricher(fakeReviewer{err: errors.New("quota")}, store)
	if err := failing(context.Background(), c); err == nil {
		t.Error("expected error")
	}
}
