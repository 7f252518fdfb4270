package conversation

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/turns"
	"github.com/JaimeStill/mentor/pkg/lifecycle"
)

// Params identify a conversation.
type Params struct {
	SessionID uuid.UUID
	Context   string
	Greeting  string
}

// Deps are the collaborators of a conversation.
type Deps struct {
	Replier      Replier
	Store        TurnStore
	Input        capability.SpeechInput
	Speaker      turns.Speaker
	UI           turns.UI
	Availability capability.Availability
	Logger       *slog.Logger
}

// Session composes the turn-taking machine with the controller.
type Session struct {
	id         uuid.UUID
	greeting   string
	scope      *lifecycle.Scope
	machine    *turns.Machine
	controller *Controller
}

// NewSession wires a conversation inside scope.
func NewSession(scope *lifecycle.Scope, params Params, cfg turns.Config, deps Deps) *Session {
	controller := NewController(params.SessionID, params.Context, deps.Replier, deps.Store, deps.Logger)
	machine := turns.New(scope, cfg, turns.Deps{
		Input:        deps.Input,
		Speaker:      deps.Speaker,
		Processor:    controller,
		UI:           deps.UI,
		Availability: deps.Availability,
		Logger:       deps.Logger.With("session", params.SessionID),
	})

	return &Session{
		id:         params.SessionID,
		greeting:   params.Greeting,
		scope:      scope,
		machine:    machine,
		controller: controller,
	}
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Start speaks the greeting, if any, and begins listening.
func (s *Session) Start() error {
	if s.greeting != "" {
		s.controller.Greet(s.greeting)
	}
	return s.machine.Start(s.greeting)
}

// Listen resumes listening after a question or a tap-to-speak prompt.
func (s *Session) Listen() error {
	return s.machine.Listen()
}

// Submit processes typed text.
func (s *Session) Submit(text string) error {
	return s.machine.Submit(text)
}

// Ask poses a question, at most once per idle period.
func (s *Session) Ask() error {
	if !s.controller.CanAsk() {
		return ErrAlreadyAsked
	}
	return s.machine.Ask()
}

// Phase returns the current turn-taking phase.
func (s *Session) Phase() turns.Phase {
	return s.machine.Phase()
}

// Turns returns the conversation so far.
func (s *Session) Turns() []Turn {
	return s.controller.Turns()
}

// Alive reports whether the session is open.
func (s *Session) Alive() bool {
	return s.scope.Alive()
}

// End tears the session down and flushes the history when the student
// spoke at least once. It reports whether the history was flushed.
func (s *Session) End() bool {
	s.scope.Close()
	return s.controller.End()
}

// Wait blocks until background work has returned after End.
func (s *Session) Wait() {
	s.machine.Wait()
}
