package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/signature"
	"github.com/JaimeStill/mentor/pkg/lifecycle"
)

// Outcome reports what a tick did.
type Outcome int

const (
	Closed Outcome = iota
	Busy
	Empty
	Unchanged
	Correct
	Incomplete
	Incorrect
	Failed
)

var outcomeNames = [...]string{"closed", "busy", "empty", "unchanged", "correct", "incomplete", "incorrect", "failed"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Handler receives the loop's results. Calls are made from the tick
// goroutine and never after the session scope closes.
type Handler interface {
	// Correct is called for a correct verdict; the session should finalize.
	Correct(v Verdict)
	// Incorrect is called for a definite, objective error.
	Incorrect(v Verdict)
	// Failed is called when the reasoning service fails, and once per run of
	// FailureNotice consecutive surface failures.
	Failed(err error)
	// Checked is called whenever the last-checked signature advances.
	Checked(sig string)
}

// Countdown is optionally implemented by a Handler to receive the visible
// countdown of the timer-driven loop.
type Countdown interface {
	Countdown(remaining time.Duration)
}

// Config tunes the loop.
type Config struct {
	// Interval is the period of the visible countdown.
	Interval time.Duration
	// Prefetch issues the analysis this long before the countdown reaches zero.
	Prefetch time.Duration
	// Step is the countdown resolution.
	Step time.Duration
	// MaxHighlight is the exclusive upper bound on a highlight region's area.
	MaxHighlight float64
	// FailureNotice is the number of consecutive surface failures after which
	// the handler is told. Zero keeps surface failures silent.
	FailureNotice int
}

// Params identify the session the loop analyzes.
type Params struct {
	SessionID uuid.UUID
	Problem   string
	Context   string
}

// Loop is the per-session analysis scheduler. At most one analysis is in
// flight at any time.
type Loop struct {
	params   Params
	cfg      Config
	scope    *lifecycle.Scope
	surface  capability.Surface
	analyzer Analyzer
	handler  Handler
	logger   *slog.Logger
	now      func() time.Time

	inflight atomic.Bool
	wg       sync.WaitGroup

	mu           sync.Mutex
	lastChecked  string
	hasChecked   bool
	lastFeedback string
	history      []Verdict
	failures     int
}

// NewLoop creates a loop bound to scope.
func NewLoop(
	scope *lifecycle.Scope,
	params Params,
	cfg Config,
	surface capability.Surface,
	analyzer Analyzer,
	handler Handler,
	logger *slog.Logger,
) *Loop {
	return &Loop{
		params:   params,
		cfg:      cfg,
		scope:    scope,
		surface:  surface,
		analyzer: analyzer,
		handler:  handler,
		logger:   logger.With("system", "analysis", "session", params.SessionID),
		now:      time.Now,
	}
}

// Restore seeds the loop from a previously persisted state so a resumed
// session does not re-analyze content it already judged.
func (l *Loop) Restore(lastChecked, lastFeedback string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lastChecked != "" {
		l.lastChecked = lastChecked
		l.hasChecked = true
	}
	if lastFeedback != "" {
		l.lastFeedback = lastFeedback
	}
}

// ScheduleTick starts an analysis in the background. It returns false
// without doing anything when an analysis is already in flight or the
// session is closed.
func (l *Loop) ScheduleTick() bool {
	if !l.scope.Alive() || !l.inflight.CompareAndSwap(false, true) {
		return false
	}

	l.wg.Go(func() {
		defer l.inflight.Store(false)
		l.tick(l.scope.Context())
	})
	return true
}

// Tick runs one analysis synchronously.
func (l *Loop) Tick(ctx context.Context) Outcome {
	if !l.scope.Alive() {
		return Closed
	}
	if !l.inflight.CompareAndSwap(false, true) {
		return Busy
	}
	defer l.inflight.Store(false)
	return l.tick(ctx)
}

// InFlight reports whether an analysis is running.
func (l *Loop) InFlight() bool {
	return l.inflight.Load()
}

// Run drives the countdown until ctx is done. The analysis is issued when
// the remaining time reaches the prefetch offset, and the countdown resets
// when it reaches zero.
func (l *Loop) Run(ctx context.Context) {
	step := l.cfg.Step
	if step <= 0 {
		step = time.Second
	}

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	countdown, _ := l.handler.(Countdown)
	remaining := l.cfg.Interval
	issued := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !l.scope.Alive() {
			return
		}

		remaining -= step
		if !issued && remaining <= l.cfg.Prefetch {
			l.ScheduleTick()
			issued = true
		}
		if remaining <= 0 {
			remaining = l.cfg.Interval
			issued = false
		}
		if countdown != nil {
			countdown.Countdown(remaining)
		}
	}
}

// Wait blocks until background ticks started by ScheduleTick return.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// LastChecked returns the last-checked signature.
func (l *Loop) LastChecked() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastChecked, l.hasChecked
}

// LastFeedback returns the feedback text of the most recent incorrect verdict.
func (l *Loop) LastFeedback() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastFeedback
}

// History returns the verdicts shown to the student, oldest first.
func (l *Loop) History() []Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Verdict, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Loop) tick(ctx context.Context) Outcome {
	elements, err := l.surface.Elements(ctx)
	if !l.scope.Alive() {
		return Closed
	}
	if err != nil {
		l.logger.Warn("read surface failed", "error", err)
		return l.surfaceFailed(err)
	}
	if len(elements) == 0 {
		return Empty
	}

	sig := signature.Compute(elements)
	if l.unchanged(sig) {
		return Unchanged
	}

	img, err := l.surface.Capture(ctx, capability.CaptureFast)
	if !l.scope.Alive() {
		return Closed
	}
	if err == nil && img.Empty() {
		err = fmt.Errorf("%w: empty image", capability.ErrCapture)
	}
	if err != nil {
		l.logger.Warn("capture failed", "signature", sig, "error", err)
		return l.surfaceFailed(err)
	}
	l.resetFailures()

	l.mu.Lock()
	previous := l.lastFeedback
	l.mu.Unlock()

	v, err := l.analyzer.Analyze(ctx, Request{
		Problem:          l.params.Problem,
		Image:            img,
		PreviousFeedback: previous,
		Context:          l.params.Context,
	})
	if !l.scope.Alive() {
		return Closed
	}
	if err != nil {
		if !errors.Is(err, capability.ErrService) {
			err = fmt.Errorf("%w: %w", capability.ErrService, err)
		}
		l.logger.Error("analysis failed", "signature", sig, "error", err)
		l.handler.Failed(err)
		return Failed
	}

	v = Normalize(v, l.cfg.MaxHighlight)
	v.ID = uuid.New()
	v.SessionID = l.params.SessionID
	v.Signature = sig
	v.CreatedAt = l.now()

	l.mu.Lock()
	l.lastChecked = sig
	l.hasChecked = true
	if !v.IsCorrect && !v.IsIncomplete {
		l.history = append(l.history, v)
		l.lastFeedback = v.Feedback
	}
	l.mu.Unlock()

	l.handler.Checked(sig)

	switch {
	case v.IsCorrect:
		l.logger.Info("verdict correct", "signature", sig)
		l.handler.Correct(v)
		return Correct
	case v.IsIncomplete:
		l.logger.Debug("verdict incomplete", "signature", sig)
		return Incomplete
	default:
		l.logger.Info("verdict incorrect", "signature", sig, "verdict", v.ID)
		l.handler.Incorrect(v)
		return Incorrect
	}
}

// surfaceFailed counts a failed read or capture. The handler hears about
// every FailureNotice-th consecutive failure.
func (l *Loop) surfaceFailed(err error) Outcome {
	if !errors.Is(err, capability.ErrCapture) {
		err = fmt.Errorf("%w: %w", capability.ErrCapture, err)
	}

	l.mu.Lock()
	l.failures++
	notify := l.cfg.FailureNotice > 0 && l.failures%l.cfg.FailureNotice == 0
	l.mu.Unlock()

	if notify {
		l.handler.Failed(err)
	}
	return Failed
}

func (l *Loop) resetFailures() {
	l.mu.Lock()
	l.failures = 0
	l.mu.Unlock()
}

func (l *Loop) unchanged(sig string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasChecked && l.lastChecked == sig
}
