package turns

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/pkg/lifecycle"
	"github.com/JaimeStill/mentor/pkg/timer"
)

var (
	ErrBusy       = errors.New("turn in progress")
	ErrClosed     = errors.New("session closed")
	ErrEmptyInput = errors.New("input text is empty")
	ErrStarted    = errors.New("session already started")
)

// InputKind identifies what started a processing cycle.
type InputKind string

const (
	KindUtterance  InputKind = "utterance"
	KindSubmission InputKind = "submission"
	KindAsk        InputKind = "ask"
)

// Input is the payload of one processing cycle.
type Input struct {
	Kind InputKind
	Text string
}

// Response is the result of one processing cycle.
type Response struct {
	Text       string `json:"text"`
	Speak      string `json:"speak,omitempty"`
	IsQuestion bool   `json:"is_question"`
}

// Processor turns an input into the assistant's response.
type Processor interface {
	Process(ctx context.Context, in Input) (Response, error)
}

// Speaker plays text. onEnd must be called exactly once, possibly before
// Speak returns. The returned function stops this utterance.
type Speaker interface {
	Speak(text string, onEnd func(error)) (stop func())
}

// UI receives the machine's visible state. Calls are made while the machine
// holds its lock and must not call back into the machine.
type UI interface {
	PhaseChanged(p Phase)
	Interim(text string)
	Reply(r Response)
	ShowTapToSpeak()
	ShowManualInput(err error)
	ShowError(err error)
}

// Config holds the machine's delays and safety timeouts.
type Config struct {
	RestartDelay    time.Duration
	SpeakingTimeout time.Duration
	AwaitingTimeout time.Duration
}

// Deps are the capabilities the machine coordinates.
type Deps struct {
	Input        capability.SpeechInput
	Speaker      Speaker
	Processor    Processor
	UI           UI
	Availability capability.Availability
	Logger       *slog.Logger
}

// Machine is the four-phase turn-taking controller. Input and output are
// never active at the same time, and at most one processing cycle is in
// flight. Every asynchronous completion carries the epoch it was started in
// and is ignored once the machine has moved on or the scope has closed.
type Machine struct {
	scope  *lifecycle.Scope
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu         sync.Mutex
	phase      Phase
	started    bool
	epoch      uint64
	inputOpen  bool
	stopInput  context.CancelFunc
	stopSpeech func()

	restart timer.Slot
	safety  timer.Slot
	wg      sync.WaitGroup
}

// New creates a Machine in AwaitingInput. Closing scope aborts any
// in-flight input and output regardless of phase.
func New(scope *lifecycle.Scope, cfg Config, deps Deps) *Machine {
	m := &Machine{
		scope:  scope,
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With("system", "turns"),
		phase:  AwaitingInput,
	}
	scope.OnClose(m.abort)
	return m
}

// Start begins the session: speak the greeting, or go straight to
// listening when there is none.
func (m *Machine) Start(greeting string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scope.Alive() {
		return ErrClosed
	}
	if m.started {
		return ErrStarted
	}
	m.started = true

	if greeting = strings.TrimSpace(greeting); greeting != "" {
		m.speak(Response{Text: greeting, Speak: greeting})
		return nil
	}
	m.listen(!m.deps.Availability.NeedsGesture)
	return nil
}

// Listen is the user's explicit gesture to resume listening, either from
// AwaitingInput or from an armed Listening phase.
func (m *Machine) Listen() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scope.Alive() {
		return ErrClosed
	}
	m.started = true

	switch m.phase {
	case AwaitingInput:
		m.listen(true)
	case Listening:
		if !m.inputOpen && m.inputAvailable() {
			m.restart.Cancel()
			m.openInput()
		}
	default:
		return ErrBusy
	}
	return nil
}

// Submit processes manually entered text, the fallback when speech input
// is unavailable.
func (m *Machine) Submit(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}
	return m.trigger(Input{Kind: KindSubmission, Text: text})
}

// Ask starts a processing cycle that poses a question.
func (m *Machine) Ask() error {
	return m.trigger(Input{Kind: KindAsk})
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// InputOpen reports whether a speech input stream is open.
func (m *Machine) InputOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputOpen
}

// Wait blocks until the machine's background goroutines return. Call it
// after the scope has closed.
func (m *Machine) Wait() {
	m.wg.Wait()
}

func (m *Machine) trigger(in Input) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scope.Alive() {
		return ErrClosed
	}
	if m.phase != Listening && m.phase != AwaitingInput {
		return ErrBusy
	}
	m.started = true
	m.process(in)
	return nil
}

// setPhase moves to `to` when the graph allows it. Leaving a phase releases
// the capability it owns and invalidates every pending callback.
func (m *Machine) setPhase(to Phase) bool {
	if !CanTransition(m.phase, to) {
		m.logger.Warn("rejected transition", "from", m.phase, "to", to)
		return false
	}

	m.closeInput()
	if m.stopSpeech != nil {
		m.stopSpeech()
		m.stopSpeech = nil
	}
	m.restart.Cancel()
	m.safety.Cancel()
	m.epoch++

	from := m.phase
	m.phase = to
	m.logger.Debug("phase", "from", from, "to", to)
	m.deps.UI.PhaseChanged(to)
	return true
}

func (m *Machine) current(epoch uint64) bool {
	return m.scope.Alive() && m.epoch == epoch
}

func (m *Machine) inputAvailable() bool {
	return m.deps.Input != nil && m.deps.Availability.SpeechInput
}

func (m *Machine) listen(auto bool) {
	if !m.setPhase(Listening) {
		return
	}
	if !m.inputAvailable() {
		m.deps.UI.ShowManualInput(capability.ErrUnavailable)
		return
	}
	if !auto {
		m.deps.UI.ShowTapToSpeak()
		return
	}
	m.openInput()
}

func (m *Machine) openInput() {
	m.epoch++
	epoch := m.epoch

	ctx, cancel := context.WithCancel(m.scope.Context())
	events, err := m.deps.Input.Listen(ctx)
	if err != nil {
		cancel()
		m.inputFailed(err)
		return
	}

	m.stopInput = cancel
	m.inputOpen = true
	m.wg.Go(func() { m.consume(epoch, events) })
}

func (m *Machine) closeInput() {
	if m.stopInput != nil {
		m.stopInput()
		m.stopInput = nil
	}
	m.inputOpen = false
}

func (m *Machine) consume(epoch uint64, events <-chan capability.TranscriptEvent) {
	for ev := range events {
		m.mu.Lock()
		if m.current(epoch) {
			m.handle(ev)
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current(epoch) && m.phase == Listening && m.inputOpen {
		m.closeInput()
		m.scheduleRestart()
	}
}

func (m *Machine) handle(ev capability.TranscriptEvent) {
	switch ev.Kind {
	case capability.EventInterim:
		m.deps.UI.Interim(ev.Text)
	case capability.EventFinal:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return
		}
		m.process(Input{Kind: KindUtterance, Text: text})
	case capability.EventEnd:
		m.closeInput()
		m.scheduleRestart()
	case capability.EventError:
		m.closeInput()
		m.inputFailed(ev.Err)
	}
}

func (m *Machine) inputFailed(err error) {
	if errors.Is(err, capability.ErrNoSpeech) {
		m.scheduleRestart()
		return
	}
	m.logger.Warn("speech input failed", "error", err)
	m.deps.UI.ShowManualInput(err)
}

func (m *Machine) scheduleRestart() {
	epoch := m.epoch
	m.restart.Schedule(m.cfg.RestartDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.current(epoch) || m.phase != Listening {
			return
		}
		if m.setPhase(Listening) {
			m.openInput()
		}
	})
}

func (m *Machine) process(in Input) {
	if !m.setPhase(Processing) {
		return
	}
	epoch := m.epoch
	ctx := m.scope.Context()

	m.wg.Go(func() {
		resp, err := m.deps.Processor.Process(ctx, in)

		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.current(epoch) {
			return
		}
		if err != nil {
			m.logger.Warn("processing failed", "kind", in.Kind, "error", err)
			m.await()
			m.deps.UI.ShowError(err)
			return
		}
		m.deps.UI.Reply(resp)
		m.speak(resp)
	})
}

func (m *Machine) speak(resp Response) {
	if !m.setPhase(Speaking) {
		return
	}
	epoch := m.epoch
	question := resp.IsQuestion

	if resp.Speak == "" || m.deps.Speaker == nil || !m.deps.Availability.SpeechOutput {
		m.afterSpeech(question, false)
		return
	}

	m.safety.Schedule(m.cfg.SpeakingTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.current(epoch) && m.phase == Speaking {
			m.logger.Warn("speech completion timed out")
			m.afterSpeech(question, false)
		}
	})

	m.stopSpeech = m.deps.Speaker.Speak(resp.Speak, func(err error) {
		m.wg.Go(func() { m.speechEnded(epoch, question, err) })
	})
}

func (m *Machine) speechEnded(epoch uint64, question bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(epoch) || m.phase != Speaking {
		return
	}
	m.stopSpeech = nil
	if err != nil {
		m.logger.Debug("speech ended with error", "error", err)
	}
	m.afterSpeech(question, err == nil && !m.deps.Availability.NeedsGesture)
}

func (m *Machine) afterSpeech(question, auto bool) {
	if question {
		m.await()
		return
	}
	m.listen(auto)
}

func (m *Machine) await() {
	if !m.setPhase(AwaitingInput) {
		return
	}
	epoch := m.epoch
	m.safety.Schedule(m.cfg.AwaitingTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.current(epoch) && m.phase == AwaitingInput {
			m.deps.UI.ShowTapToSpeak()
		}
	})
}

func (m *Machine) abort() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.restart.Cancel()
	m.safety.Cancel()
	m.closeInput()
	if m.stopSpeech != nil {
		m.stopSpeech()
		m.stopSpeech = nil
	}
}
