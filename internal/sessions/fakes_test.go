package sessions_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/internal/history"
	"github.com/JaimeStill/mentor/internal/sessions"
	"github.com/JaimeStill/mentor/internal/turns"
	"github.com/JaimeStill/mentor/internal/whiteboard"
	"github.com/JaimeStill/mentor/pkg/lifecycle"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChannel records UI events for one session.
type fakeChannel struct {
	mu       sync.Mutex
	events   []string
	closed   bool
	released bool
}

func (c *fakeChannel) record(e string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *fakeChannel) has(e string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, got := range c.events {
		if got == e {
			return true
		}
	}
	return false
}

func (c *fakeChannel) Elements(ctx context.Context) ([]capability.Element, error) {
	return []capability.Element{{ID: "stroke", Revision: 1}}, nil
}

func (c *fakeChannel) Capture(ctx context.Context, mode capability.CaptureMode) (capability.Image, error) {
	return capability.Image{Data: []byte("png"), MIME: "image/png"}, nil
}

func (c *fakeChannel) Listen(ctx context.Context) (<-chan capability.TranscriptEvent, error) {
	return nil, capability.ErrUnavailable
}

func (c *fakeChannel) ShowFeedback(v analysis.Verdict)    { c.record("feedback") }
func (c *fakeChannel) HideFeedback()                      { c.record("hide") }
func (c *fakeChannel) ShowHighlight(r analysis.Region)    { c.record("highlight") }
func (c *fakeChannel) ClearHighlight()                    { c.record("clear") }
func (c *fakeChannel) ShowError(err error)                { c.record("error") }
func (c *fakeChannel) Countdown(remaining time.Duration)  {}
func (c *fakeChannel) Finalized(done feedback.Completion) { c.record("finalized") }
func (c *fakeChannel) PhaseChanged(p turns.Phase)         { c.record("phase:" + string(p)) }
func (c *fakeChannel) Interim(text string)                {}
func (c *fakeChannel) Reply(r turns.Response)             { c.record("reply:" + r.Text) }
func (c *fakeChannel) ShowTapToSpeak()                    { c.record("tap") }
func (c *fakeChannel) ShowManualInput(err error)          { c.record("manual") }

func (c *fakeChannel) Closed(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeChannel) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed && c.released
}

// instantSpeaker finishes every utterance immediately.
type instantSpeaker struct{}

func (instantSpeaker) Speak(text string, onEnd func(error)) func() {
	if onEnd != nil {
		onEnd(nil)
	}
	return func() {}
}

type fakeDevice struct {
	id       string
	done     chan struct{}
	once     sync.Once
	mu       sync.Mutex
	channels map[uuid.UUID]*fakeChannel
}

func newFakeDevice(id string) *fakeDevice {
	return &fakeDevice{
		id:       id,
		done:     make(chan struct{}),
		channels: make(map[uuid.UUID]*fakeChannel),
	}
}

func (d *fakeDevice) ID() string                            { return d.id }
func (d *fakeDevice) Availability() capability.Availability { return capability.Availability{} }
func (d *fakeDevice) Speaker() whiteboard.Speaker           { return instantSpeaker{} }
func (d *fakeDevice) Done() <-chan struct{}                 { return d.done }

func (d *fakeDevice) Bind(sessionID uuid.UUID) sessions.Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := &fakeChannel{}
	d.channels[sessionID] = ch
	return ch
}

func (d *fakeDevice) channel(sessionID uuid.UUID) *fakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels[sessionID]
}

func (d *fakeDevice) disconnect() {
	d.once.Do(func() { close(d.done) })
}

type fakeDirectory map[string]*fakeDevice

func (f fakeDirectory) Device(clientID string) (sessions.Device, bool) {
	d, ok := f[clientID]
	if !ok {
		return nil, false
	}
	return d, true
}

// fakeStore is an in-memory history.
type fakeStore struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]*history.Session
	verdicts    map[uuid.UUID][]analysis.Verdict
	turns       map[uuid.UUID][]conversation.Turn
	checked     map[uuid.UUID]string
	completions map[uuid.UUID]feedback.Completion
	reviews     map[uuid.UUID]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:    make(map[uuid.UUID]*history.Session),
		verdicts:    make(map[uuid.UUID][]analysis.Verdict),
		turns:       make(map[uuid.UUID][]conversation.Turn),
		checked:     make(map[uuid.UUID]string),
		completions: make(map[uuid.UUID]feedback.Completion),
		reviews:     make(map[uuid.UUID]string),
	}
}

func (s *fakeStore) CreateSession(ctx context.Context, cmd history.CreateCommand) (*history.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &history.Session{
		ID:        uuid.New(),
		ClientID:  cmd.ClientID,
		Kind:      cmd.Kind,
		Problem:   cmd.Problem,
		Context:   cmd.Context,
		Muted:     cmd.Muted,
		CreatedAt: time.Now(),
	}
	s.sessions[rec.ID] = rec
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) FindSession(ctx context.Context, id uuid.UUID) (*history.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil, history.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) EndSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return history.ErrNotFound
	}
	if rec.EndedAt == nil {
		now := time.Now()
		rec.EndedAt = &now
	}
	return nil
}

func (s *fakeStore) ended(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	return ok && rec.EndedAt != nil
}

func (s *fakeStore) SetMuted(ctx context.Context, id uuid.UUID, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return history.ErrNotFound
	}
	rec.Muted = muted
	return nil
}

func (s *fakeStore) LastChecked(ctx context.Context, id uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked[id], nil
}

func (s *fakeStore) LastVerdict(ctx context.Context, id uuid.UUID) (*analysis.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := s.verdicts[id]
	if len(vs) == 0 {
		return nil, history.ErrNotFound
	}
	v := vs[len(vs)-1]
	return &v, nil
}

func (s *fakeStore) AppendVerdict(ctx context.Context, v analysis.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[v.SessionID] = append(s.verdicts[v.SessionID], v)
	return nil
}

func (s *fakeStore) SetLastChecked(ctx context.Context, id uuid.UUID, sig string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked[id] = sig
	return nil
}

func (s *fakeStore) AppendTurns(ctx context.Context, id uuid.UUID, t []conversation.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[id] = append(s.turns[id], t...)
	return nil
}

func (s *fakeStore) turnCount(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns[id])
}

func (s *fakeStore) SaveSnapshot(ctx context.Context, id uuid.UUID, img capability.Image, meta feedback.SnapshotMeta) (string, error) {
	return history.SnapshotKey(id, uuid.New(), "png"), nil
}

func (s *fakeStore) SaveCompletion(ctx context.Context, c feedback.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions[c.SessionID] = c
	if rec, ok := s.sessions[c.SessionID]; ok && rec.EndedAt == nil {
		at := c.CompletedAt
		rec.EndedAt = &at
	}
	return nil
}

func (s *fakeStore) completion(id uuid.UUID) (feedback.Completion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.completions[id]
	return c, ok
}

func (s *fakeStore) UpdateCompletionReview(ctx context.Context, id uuid.UUID, review string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[id] = review
	return nil
}

// fakeTutor answers every call from fixed values.
type fakeTutor struct {
	verdict analysis.Verdict
	reply   conversation.Reply
}

func (t *fakeTutor) Analyze(ctx context.Context, req analysis.Request) (analysis.Verdict, error) {
	return t.verdict, nil
}

func (t *fakeTutor) Reply(ctx context.Context, req conversation.ReplyRequest) (conversation.Reply, error) {
	return t.reply, nil
}

func (t *fakeTutor) Evaluate(ctx context.Context, req conversation.EvaluateRequest) (conversation.Evaluation, error) {
	return conversation.Evaluation{Correct: true, Text: "Right.", Speak: "Right."}, nil
}

type fixture struct {
	lc       *lifecycle.Coordinator
	reg      *sessions.Registry
	store    *fakeStore
	device   *fakeDevice
	tutor    *fakeTutor
	enriched chan feedback.Completion
}

func newFixture(t interface{ Cleanup(func()) }) *fixture {
	f := &fixture{
		lc:       lifecycle.New(),
		store:    newFakeStore(),
		device:   newFakeDevice("pad"),
		tutor:    &fakeTutor{reply: conversation.Reply{Text: "Four.", Speak: "Four."}},
		enriched: make(chan feedback.Completion, 1),
	}

	cfg := &sessions.Config{TickInterval: "1h", PrefetchOffset: "1m"}
	if err := cfg.Finalize(nil); err != nil {
		panic(err)
	}

	f.reg = sessions.New(f.lc, cfg, sessions.Deps{
		Devices: fakeDirectory{"pad": f.device},
		Store:   f.store,
		Tutor:   f.tutor,
		Enrichers: []feedback.Enricher{
			func(ctx context.Context, c feedback.Completion) error {
				f.enriched <- c
				return nil
			},
		},
		Logger: discard(),
	})
	t.Cleanup(f.reg.CloseAll)
	return f
}
