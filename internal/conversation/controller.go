package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/turns"
)

// Controller implements turns.Processor for one conversation. It owns the
// turn history and the pending-question state.
type Controller struct {
	sessionID uuid.UUID
	context   string
	replier   Replier
	store     TurnStore
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	turns   []Turn
	pending bool
	asked   bool
	flushed bool
}

// NewController creates a Controller for the session.
func NewController(sessionID uuid.UUID, topic string, replier Replier, store TurnStore, logger *slog.Logger) *Controller {
	return &Controller{
		sessionID: sessionID,
		context:   topic,
		replier:   replier,
		store:     store,
		logger:    logger.With("system", "conversation", "session", sessionID),
		now:       time.Now,
	}
}

// Greet records an assistant greeting as the first turn.
func (c *Controller) Greet(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, Turn{Role: RoleAssistant, Text: text, At: c.now()})
}

// CanAsk reports whether a question may be posed in the current idle period.
func (c *Controller) CanAsk() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.asked
}

// Process handles one cycle. A user utterance answers the pending question
// when there is one, otherwise it gets a conversational reply.
func (c *Controller) Process(ctx context.Context, in turns.Input) (turns.Response, error) {
	if in.Kind == turns.KindAsk {
		return c.ask(ctx)
	}
	return c.respond(ctx, in.Text)
}

// Turns returns a copy of the history.
func (c *Controller) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// End flushes the history to the store when at least one user turn exists.
// It reports whether a flush happened. Only the first call flushes.
func (c *Controller) End() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flushed || !c.hasUserTurn() {
		return false
	}
	c.flushed = true

	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	c.store.AppendTurns(c.sessionID, out)
	c.logger.Info("conversation flushed", "turns", len(out))
	return true
}

func (c *Controller) ask(ctx context.Context) (turns.Response, error) {
	c.mu.Lock()
	if c.asked {
		c.mu.Unlock()
		return turns.Response{}, ErrAlreadyAsked
	}
	c.asked = true
	history := c.snapshot()
	c.mu.Unlock()

	r, err := c.replier.Reply(ctx, ReplyRequest{Turns: history, Context: c.context, WantQuestion: true})
	if err != nil {
		c.mu.Lock()
		c.asked = false
		c.mu.Unlock()
		return turns.Response{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendAssistant(r.Text, true)
	c.pending = true
	return turns.Response{Text: r.Text, Speak: r.Speak, IsQuestion: true}, nil
}

// respond records the user turn only once the service has answered, so a
// failed call leaves the history as it was and a resubmission is not doubled.
func (c *Controller) respond(ctx context.Context, text string) (turns.Response, error) {
	user := Turn{Role: RoleUser, Text: text, At: c.now()}

	c.mu.Lock()
	pending := c.pending
	history := append(c.snapshot(), user)
	c.mu.Unlock()

	if pending {
		e, err := c.replier.Evaluate(ctx, EvaluateRequest{Turns: history, Answer: text, Context: c.context})
		if err != nil {
			return turns.Response{}, err
		}
		c.logger.Info("answer evaluated", "correct", e.Correct)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.turns = append(c.turns, user)
		c.asked = false
		c.pending = false
		c.appendAssistant(e.Text, false)
		return turns.Response{Text: e.Text, Speak: e.Speak}, nil
	}

	r, err := c.replier.Reply(ctx, ReplyRequest{Turns: history, Context: c.context})
	if err != nil {
		return turns.Response{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, user)
	c.asked = false
	c.appendAssistant(r.Text, r.IsQuestion)
	c.pending = r.IsQuestion
	return turns.Response{Text: r.Text, Speak: r.Speak, IsQuestion: r.IsQuestion}, nil
}

func (c *Controller) appendAssistant(text string, question bool) {
	c.turns = append(c.turns, Turn{Role: RoleAssistant, Text: text, IsQuestion: question, At: c.now()})
}

func (c *Controller) snapshot() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Controller) hasUserTurn() bool {
	for _, t := range c.turns {
		if t.Role == RoleUser {
			return true
		}
	}
	return false
}
