package turns_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/turns"
	"github.com/JaimeStill/mentor/pkg/lifecycle"
)

// monitor records any instant at which input and output were both active.
type monitor struct {
	mu         sync.Mutex
	violations int
}

func (m *monitor) violate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations++
}

func (m *monitor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.violations
}

type stream struct {
	ctx    context.Context
	events chan capability.TranscriptEvent
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (s *stream) close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}

func (s *stream) send(ev capability.TranscriptEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- ev
	}
}

func (s *stream) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.ctx.Err() == nil
}

type fakeInput struct {
	mon     *monitor
	speaker *fakeSpeaker

	mu      sync.Mutex
	streams []*stream
	err     error
}

func (in *fakeInput) Listen(ctx context.Context) (<-chan capability.TranscriptEvent, error) {
	if in.speaker != nil && in.speaker.active() {
		in.mon.violate()
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.err != nil {
		return nil, in.err
	}

	s := &stream{ctx: ctx, events: make(chan capability.TranscriptEvent, 16)}
	in.streams = append(in.streams, s)
	go func() {
		<-ctx.Done()
		s.close()
	}()
	return s.events, nil
}

func (in *fakeInput) count() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.streams)
}

func (in *fakeInput) latest() *stream {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.streams[len(in.streams)-1]
}

func (in *fakeInput) active() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, s := range in.streams {
		if s.active() {
			return true
		}
	}
	return false
}

type utterance struct {
	text    string
	onEnd   func(error)
	once    sync.Once
	mu      sync.Mutex
	stopped bool
	ended   bool
}

func (u *utterance) end(err error) {
	u.once.Do(func() {
		u.mu.Lock()
		u.ended = true
		u.mu.Unlock()
		u.onEnd(err)
	})
}

type fakeSpeaker struct {
	mon   *monitor
	input *fakeInput
	// auto ends each utterance after the delay with the given error.
	auto    bool
	delay   time.Duration
	autoErr error

	mu     sync.Mutex
	spoken []*utterance
}

func (s *fakeSpeaker) Speak(text string, onEnd func(error)) func() {
	if s.input != nil && s.input.active() {
		s.mon.violate()
	}

	u := &utterance{text: text, onEnd: onEnd}
	s.mu.Lock()
	s.spoken = append(s.spoken, u)
	s.mu.Unlock()

	if s.auto {
		go func() {
			time.Sleep(s.delay)
			u.end(s.autoErr)
		}()
	}

	return func() {
		u.mu.Lock()
		u.stopped = true
		u.mu.Unlock()
		u.end(capability.ErrStopped)
	}
}

func (s *fakeSpeaker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spoken)
}

func (s *fakeSpeaker) latest() *utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spoken[len(s.spoken)-1]
}

func (s *fakeSpeaker) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.spoken {
		u.mu.Lock()
		playing := !u.ended && !u.stopped
		u.mu.Unlock()
		if playing {
			return true
		}
	}
	return false
}

type processorFunc func(ctx context.Context, in turns.Input) (turns.Response, error)

func (f processorFunc) Process(ctx context.Context, in turns.Input) (turns.Response, error) {
	return f(ctx, in)
}

type fakeUI struct {
	mu      sync.Mutex
	phases  []turns.Phase
	interim []string
	replies []turns.Response
	taps    int
	manual  []error
	errors  []error
}

func (u *fakeUI) PhaseChanged(p turns.Phase) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.phases = append(u.phases, p)
}

func (u *fakeUI) Interim(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.interim = append(u.interim, text)
}

func (u *fakeUI) Reply(r turns.Response) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.replies = append(u.replies, r)
}

func (u *fakeUI) ShowTapToSpeak() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.taps++
}

func (u *fakeUI) ShowManualInput(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.manual = append(u.manual, err)
}

func (u *fakeUI) ShowError(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.errors = append(u.errors, err)
}

func (u *fakeUI) snapshot() fakeUI {
	u.mu.Lock()
	defer u.mu.Unlock()
	return fakeUI{
		phases:  append([]turns.Phase(nil), u.phases...),
		interim: append([]string(nil), u.interim...),
		replies: append([]turns.Response(nil), u.replies...),
		taps:    u.taps,
		manual:  append([]error(nil), u.manual...),
		errors:  append([]error(nil), u.errors...),
	}
}

type harness struct {
	scope   *lifecycle.Scope
	machine *turns.Machine
	input   *fakeInput
	speaker *fakeSpeaker
	ui      *fakeUI
	mon     *monitor
}

var testConfig = turns.Config{
	RestartDelay:    20 * time.Millisecond,
	SpeakingTimeout: time.Second,
	AwaitingTimeout: time.Second,
}

var fullAvailability = capability.Availability{SpeechInput: true, SpeechOutput: true}

func newHarness(t *testing.T, cfg turns.Config, avail capability.Availability, proc turns.Processor) *harness {
	t.Helper()

	mon := &monitor{}
	input := &fakeInput{mon: mon}
	speaker := &fakeSpeaker{mon: mon, input: input, auto: true, delay: 5 * time.Millisecond}
	input.speaker = speaker
	ui := &fakeUI{}

	scope := lifecycle.NewScope(context.Background())
	m := turns.New(scope, cfg, turns.Deps{
		Input:        input,
		Speaker:      speaker,
		Processor:    proc,
		UI:           ui,
		Availability: avail,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	h := &harness{scope: scope, machine: m, input: input, speaker: speaker, ui: ui, mon: mon}
	t.Cleanup(func() {
		scope.Close()
		m.Wait()
		if n := mon.count(); n != 0 {
			t.Errorf("input and output overlapped %d times", n)
		}
	})
	return h
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) waitPhase(t *testing.T, p turns.Phase) {
	t.Helper()
	eventually(t, "phase "+string(p), func() bool { return h.machine.Phase() == p })
}

func final(text string) capability.TranscriptEvent {
	return capability.TranscriptEvent{Kind: capability.EventFinal, Text: text}
}

func reply(text string, question bool) processorFunc {
	return func(context.Context, turns.Input) (turns.Response, error) {
		return turns.Response{Text: text, Speak: text, IsQuestion: question}, nil
	}
}
