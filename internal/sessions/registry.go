// Package sessions runs live tutoring sessions. The registry binds each
// session to the device that opened it, keeps the durable record in step
// and tears the session down when the device disconnects.
package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/internal/history"
	"github.com/JaimeStill/mentor/internal/turns"
	"github.com/JaimeStill/mentor/internal/whiteboard"
	"github.com/JaimeStill/mentor/pkg/lifecycle"
)

// Store is the part of the history system the registry depends on.
type Store interface {
	history.Writer
	feedback.Store

	CreateSession(ctx context.Context, cmd history.CreateCommand) (*history.Session, error)
	FindSession(ctx context.Context, id uuid.UUID) (*history.Session, error)
	EndSession(ctx context.Context, id uuid.UUID) error
	SetMuted(ctx context.Context, id uuid.UUID, muted bool) error
	LastChecked(ctx context.Context, sessionID uuid.UUID) (string, error)
	LastVerdict(ctx context.Context, sessionID uuid.UUID) (*analysis.Verdict, error)
	UpdateCompletionReview(ctx context.Context, id uuid.UUID, review string) error
}

// Tutor is the reasoning service.
type Tutor interface {
	analysis.Analyzer
	conversation.Replier
}

// Deps are the collaborators of the registry.
type Deps struct {
	Devices   Directory
	Store     Store
	Tutor     Tutor
	Enrichers []feedback.Enricher
	Logger    *slog.Logger
}

// Status is the live view of a session.
type Status struct {
	ID       uuid.UUID    `json:"id"`
	Kind     history.Kind `json:"kind"`
	ClientID string       `json:"client_id"`
	Muted    bool         `json:"muted"`
	Phase    turns.Phase  `json:"phase,omitempty"`
	Attempts int          `json:"attempts"`
}

type live struct {
	record  history.Session
	device  Device
	channel Channel
	scope   *lifecycle.Scope
	board   *whiteboard.Session
	talk    *conversation.Session
}

// Registry owns every live session of the process.
type Registry struct {
	lc        *lifecycle.Coordinator
	cfg       *Config
	devices   Directory
	store     Store
	tutor     Tutor
	async     *history.Async
	finalizer *feedback.Finalizer
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*live
	bg       sync.WaitGroup
}

// New creates a Registry. Sessions are scoped to lc and closed on shutdown.
func New(lc *lifecycle.Coordinator, cfg *Config, deps Deps) *Registry {
	logger := deps.Logger.With("system", "sessions")
	return &Registry{
		lc:        lc,
		cfg:       cfg,
		devices:   deps.Devices,
		store:     deps.Store,
		tutor:     deps.Tutor,
		async:     history.NewAsync(deps.Store, cfg.PersistTimeoutDuration(), deps.Logger),
		finalizer: feedback.NewFinalizer(deps.Store, cfg.FinalizeTimeoutDuration(), deps.Logger, deps.Enrichers...),
		logger:    logger,
		sessions:  make(map[uuid.UUID]*live),
	}
}

// Start closes every session on shutdown and waits for pending writes.
func (r *Registry) Start() {
	r.lc.OnShutdown(func() {
		<-r.lc.Context().Done()
		r.CloseAll()
	})
}

// Create records a new session and starts it on the client's device.
func (r *Registry) Create(ctx context.Context, cmd history.CreateCommand) (*history.Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	dev, ok := r.devices.Device(cmd.ClientID)
	if !ok {
		return nil, ErrClientOffline
	}

	rec, err := r.store.CreateSession(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if err := r.open(*rec, dev, nil); err != nil {
		if endErr := r.store.EndSession(ctx, rec.ID); endErr != nil {
			r.logger.Warn("end unstarted session failed", "session", rec.ID, "error", endErr)
		}
		return nil, err
	}
	return rec, nil
}

// Resume restarts an unfinished session on clientID's device, seeding the
// analysis loop from persisted state.
func (r *Registry) Resume(ctx context.Context, id uuid.UUID, clientID string) (*history.Session, error) {
	if _, err := r.get(id); err == nil {
		return nil, ErrAlreadyLive
	}

	rec, err := r.store.FindSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Ended() {
		return nil, ErrEnded
	}
	if clientID == "" {
		clientID = rec.ClientID
	}

	dev, ok := r.devices.Device(clientID)
	if !ok {
		return nil, ErrClientOffline
	}

	var restore *restoreState
	if rec.Kind == history.KindWhiteboard {
		restore = &restoreState{}
		if restore.lastChecked, err = r.store.LastChecked(ctx, id); err != nil {
			r.logger.Warn("load last checked failed", "session", id, "error", err)
		}
		if v, err := r.store.LastVerdict(ctx, id); err == nil {
			restore.lastFeedback = v.Feedback
		} else if !errors.Is(err, history.ErrNotFound) {
			r.logger.Warn("load last verdict failed", "session", id, "error", err)
		}
	}

	if err := r.open(*rec, dev, restore); err != nil {
		return nil, err
	}
	r.logger.Info("session resumed", "session", id, "client", dev.ID())
	return rec, nil
}

type restoreState struct {
	lastChecked  string
	lastFeedback string
}

func (r *Registry) open(rec history.Session, dev Device, restore *restoreState) error {
	scope := r.lc.NewScope()
	l := &live{
		record:  rec,
		device:  dev,
		channel: dev.Bind(rec.ID),
		scope:   scope,
	}
	logger := r.logger.With("session", rec.ID)

	switch rec.Kind {
	case history.KindWhiteboard:
		l.board = whiteboard.New(scope, whiteboard.Params{
			SessionID: rec.ID,
			Problem:   rec.Problem,
			Context:   rec.Context,
			Muted:     rec.Muted,
		}, r.cfg.Whiteboard(), whiteboard.Deps{
			Surface:   l.channel,
			Analyzer:  r.tutor,
			Speaker:   dev.Speaker(),
			Store:     r.async,
			Finalizer: r.finalizer,
			UI:        l.channel,
			Logger:    logger,
		})
		if restore != nil {
			l.board.Restore(restore.lastChecked, restore.lastFeedback)
		}
	case history.KindConversation:
		l.talk = conversation.NewSession(scope, conversation.Params{
			SessionID: rec.ID,
			Context:   rec.Context,
			Greeting:  r.cfg.Greeting,
		}, r.cfg.Turns(), conversation.Deps{
			Replier:      r.tutor,
			Store:        r.async,
			Input:        l.channel,
			Speaker:      dev.Speaker(),
			UI:           l.channel,
			Availability: dev.Availability(),
			Logger:       logger,
		})
	default:
		scope.Close()
		return history.ErrInvalidKind
	}

	r.mu.Lock()
	r.sessions[rec.ID] = l
	r.mu.Unlock()

	scope.OnClose(func() { r.closed(l) })

	if l.board != nil {
		l.board.Open()
	} else if err := l.talk.Start(); err != nil {
		scope.Close()
		return err
	}

	r.bg.Go(func() {
		select {
		case <-dev.Done():
			logger.Info("device disconnected, closing session")
			r.teardown(l)
		case <-scope.Context().Done():
		}
	})

	logger.Info("session started", "kind", rec.Kind, "client", dev.ID())
	return nil
}

// closed runs once when a session's scope closes, whatever closed it.
func (r *Registry) closed(l *live) {
	id := l.record.ID

	r.mu.Lock()
	if r.sessions[id] == l {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	l.channel.Closed("ended")
	l.channel.Release()

	r.bg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PersistTimeoutDuration())
		defer cancel()
		if err := r.store.EndSession(ctx, id); err != nil {
			r.logger.Warn("mark session ended failed", "session", id, "error", err)
		}
	})
}

// teardown ends a session without user intent. Conversations keep their
// turns when the student spoke.
func (r *Registry) teardown(l *live) bool {
	if l.talk != nil {
		return l.talk.End()
	}
	l.board.Close()
	return false
}

func (r *Registry) get(id uuid.UUID) (*live, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotLive
	}
	return l, nil
}

func (r *Registry) board(id uuid.UUID) (*whiteboard.Session, error) {
	l, err := r.get(id)
	if err != nil {
		return nil, err
	}
	if l.board == nil {
		return nil, ErrWrongKind
	}
	return l.board, nil
}

func (r *Registry) talk(id uuid.UUID) (*conversation.Session, error) {
	l, err := r.get(id)
	if err != nil {
		return nil, err
	}
	if l.talk == nil {
		return nil, ErrWrongKind
	}
	return l.talk, nil
}

// Status reports the live state of a session.
func (r *Registry) Status(id uuid.UUID) (Status, error) {
	l, err := r.get(id)
	if err != nil {
		return Status{}, err
	}

	s := Status{
		ID:       id,
		Kind:     l.record.Kind,
		ClientID: l.device.ID(),
		Muted:    l.record.Muted,
	}
	if l.board != nil {
		s.Muted = l.board.Muted()
		s.Attempts = len(l.board.History())
	}
	if l.talk != nil {
		s.Phase = l.talk.Phase()
	}
	return s, nil
}

// Active returns the number of live sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Check triggers an analysis. It reports false when one is already in flight.
func (r *Registry) Check(id uuid.UUID) (bool, error) {
	b, err := r.board(id)
	if err != nil {
		return false, err
	}
	return b.Check(), nil
}

// Finalize completes a whiteboard session on the student's request.
func (r *Registry) Finalize(ctx context.Context, id uuid.UUID) (feedback.Completion, error) {
	b, err := r.board(id)
	if err != nil {
		return feedback.Completion{}, err
	}
	return b.Finalize(ctx)
}

// Dismiss hides the current feedback.
func (r *Registry) Dismiss(id uuid.UUID) error {
	b, err := r.board(id)
	if err != nil {
		return err
	}
	b.Dismiss()
	return nil
}

// SetMuted records the preference and applies it to a live whiteboard.
func (r *Registry) SetMuted(ctx context.Context, id uuid.UUID, muted bool) error {
	if err := r.store.SetMuted(ctx, id, muted); err != nil {
		return err
	}

	r.mu.Lock()
	l, ok := r.sessions[id]
	if ok {
		l.record.Muted = muted
	}
	r.mu.Unlock()

	if ok && l.board != nil {
		l.board.SetMuted(muted)
	}
	return nil
}

// Listen resumes listening on a user gesture.
func (r *Registry) Listen(id uuid.UUID) error {
	c, err := r.talk(id)
	if err != nil {
		return err
	}
	return c.Listen()
}

// Submit processes typed text in place of speech.
func (r *Registry) Submit(id uuid.UUID, text string) error {
	c, err := r.talk(id)
	if err != nil {
		return err
	}
	return c.Submit(text)
}

// Ask has the tutor pose a question.
func (r *Registry) Ask(id uuid.UUID) error {
	c, err := r.talk(id)
	if err != nil {
		return err
	}
	return c.Ask()
}

// End closes a session on the student's request. For conversations it
// reports whether the turn history was flushed. Ending a session that is
// not live only stamps its record.
func (r *Registry) End(ctx context.Context, id uuid.UUID) (bool, error) {
	l, err := r.get(id)
	if err != nil {
		return false, r.store.EndSession(ctx, id)
	}

	flushed := r.teardown(l)
	if err := r.store.EndSession(ctx, id); err != nil {
		return flushed, err
	}
	return flushed, nil
}

// CloseAll tears down every live session and waits for background work.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*live, 0, len(r.sessions))
	for _, l := range r.sessions {
		all = append(all, l)
	}
	r.mu.Unlock()

	for _, l := range all {
		r.teardown(l)
	}
	r.Wait()

	for _, l := range all {
		if l.board != nil {
			l.board.Wait()
		} else {
			l.talk.Wait()
		}
	}
}

// Wait blocks until background persistence and enrichment have finished.
func (r *Registry) Wait() {
	r.bg.Wait()
	r.finalizer.Wait()
	r.async.Wait()
}
