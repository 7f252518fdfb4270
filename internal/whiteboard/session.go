// Package whiteboard composes the analysis loop, the feedback lifecycle and
// speech output into one handwriting-check session.
package whiteboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/pkg/lifecycle"
)

var ErrFinalized = errors.New("session already finalized")

// UI is everything the session renders.
type UI interface {
	feedback.Presenter
	ShowError(err error)
	Countdown(remaining time.Duration)
	Finalized(c feedback.Completion)
}

// Speaker plays speech summaries.
type Speaker interface {
	Speak(text string, onEnd func(error)) (stop func())
}

// VerdictStore persists verdicts and the last-checked signature.
// Writes are fire-and-forget.
type VerdictStore interface {
	AppendVerdict(v analysis.Verdict)
	SetLastChecked(sessionID uuid.UUID, sig string)
}

// Params identify the session and its problem.
type Params struct {
	SessionID uuid.UUID
	Problem   string
	Context   string
	Muted     bool
}

// Config combines the loop and feedback settings.
type Config struct {
	Loop     analysis.Config
	Feedback feedback.Config
}

// Deps are the collaborators of a whiteboard session.
type Deps struct {
	Surface   capability.Surface
	Analyzer  analysis.Analyzer
	Speaker   Speaker
	Store     VerdictStore
	Finalizer *feedback.Finalizer
	UI        UI
	Logger    *slog.Logger
}

// Session is one whiteboard check session.
type Session struct {
	params Params
	scope  *lifecycle.Scope
	deps   Deps
	logger *slog.Logger

	loop     *analysis.Loop
	feedback *feedback.Manager

	muted     atomic.Bool
	finalized atomic.Bool

	mu         sync.Mutex
	stopSpeech func()
	run        sync.WaitGroup
}

// New wires a session inside scope. Call Open to start the countdown.
func New(scope *lifecycle.Scope, params Params, cfg Config, deps Deps) *Session {
	s := &Session{
		params: params,
		scope:  scope,
		deps:   deps,
		logger: deps.Logger.With("system", "whiteboard", "session", params.SessionID),
	}
	s.muted.Store(params.Muted)

	s.feedback = feedback.NewManager(scope, deps.UI, cfg.Feedback)
	s.loop = analysis.NewLoop(scope, analysis.Params{
		SessionID: params.SessionID,
		Problem:   params.Problem,
		Context:   params.Context,
	}, cfg.Loop, deps.Surface, deps.Analyzer, s, deps.Logger)

	scope.OnClose(s.silence)
	return s
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID {
	return s.params.SessionID
}

// Restore seeds the loop from persisted state.
func (s *Session) Restore(lastChecked, lastFeedback string) {
	s.loop.Restore(lastChecked, lastFeedback)
}

// Open starts the timer-driven loop.
func (s *Session) Open() {
	s.run.Go(func() { s.loop.Run(s.scope.Context()) })
}

// Check triggers an analysis now. It reports false when one is in flight.
func (s *Session) Check() bool {
	return s.loop.ScheduleTick()
}

// Dismiss hides the current feedback.
func (s *Session) Dismiss() {
	s.feedback.Dismiss()
}

// SetMuted toggles spoken summaries. Muting stops current speech.
func (s *Session) SetMuted(muted bool) {
	s.muted.Store(muted)
	if muted {
		s.silence()
	}
}

// Muted reports whether spoken summaries are muted.
func (s *Session) Muted() bool {
	return s.muted.Load()
}

// History returns the verdicts shown in this session.
func (s *Session) History() []analysis.Verdict {
	return s.loop.History()
}

// Alive reports whether the session is open.
func (s *Session) Alive() bool {
	return s.scope.Alive()
}

// Finalize writes the completion record and closes the session. It
// returns before background enrichment finishes. The session closes even
// when the completion write fails.
func (s *Session) Finalize(ctx context.Context) (feedback.Completion, error) {
	return s.finalize(ctx, false)
}

// Close tears the session down without finalizing.
func (s *Session) Close() {
	s.scope.Close()
}

// Wait blocks until the countdown and any background tick have returned.
func (s *Session) Wait() {
	s.run.Wait()
	s.loop.Wait()
}

// Correct finalizes the session as solved.
func (s *Session) Correct(v analysis.Verdict) {
	if _, err := s.finalize(s.scope.Context(), true); err != nil && !errors.Is(err, ErrFinalized) {
		s.logger.Error("finalize after correct verdict failed", "verdict", v.ID, "error", err)
	}
}

// Incorrect persists the verdict, shows it and speaks its summary.
func (s *Session) Incorrect(v analysis.Verdict) {
	s.deps.Store.AppendVerdict(v)
	s.feedback.Show(v)

	if v.Speak == "" || s.muted.Load() || s.deps.Speaker == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scope.Alive() {
		return
	}
	s.stopSpeech = s.deps.Speaker.Speak(v.Speak, nil)
}

// Failed surfaces a recoverable error.
func (s *Session) Failed(err error) {
	s.deps.UI.ShowError(err)
}

// Checked records the advanced signature.
func (s *Session) Checked(sig string) {
	s.deps.Store.SetLastChecked(s.params.SessionID, sig)
}

// Countdown forwards the visible countdown.
func (s *Session) Countdown(remaining time.Duration) {
	if s.scope.Alive() {
		s.deps.UI.Countdown(remaining)
	}
}

func (s *Session) finalize(ctx context.Context, solved bool) (feedback.Completion, error) {
	if !s.scope.Alive() || !s.finalized.CompareAndSwap(false, true) {
		return feedback.Completion{}, ErrFinalized
	}

	c, err := s.deps.Finalizer.Finalize(ctx, feedback.Request{
		SessionID:    s.params.SessionID,
		Problem:      s.params.Problem,
		LastFeedback: s.loop.LastFeedback(),
		Attempts:     len(s.loop.History()),
		Solved:       solved,
		Surface:      s.deps.Surface,
	})
	if err == nil && s.scope.Alive() {
		s.deps.UI.Finalized(c)
	}
	s.scope.Close()
	return c, err
}

func (s *Session) silence() {
	s.mu.Lock()
	stop := s.stopSpeech
	s.stopSpeech = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}
