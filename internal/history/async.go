package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/whiteboard"
)

var (
	_ whiteboard.VerdictStore = (*Async)(nil)
	_ conversation.TurnStore  = (*Async)(nil)
)

// Writer is the write side of System used by live sessions.
type Writer interface {
	AppendVerdict(ctx context.Context, v analysis.Verdict) error
	SetLastChecked(ctx context.Context, sessionID uuid.UUID, sig string) error
	AppendTurns(ctx context.Context, sessionID uuid.UUID, turns []conversation.Turn) error
}

// Async adapts a Writer to the fire-and-forget stores used by live
// sessions. Each write runs detached from the caller with its own timeout;
// failures are logged and never reach the session. Writes of one session
// land in the order they were issued; different sessions write concurrently.
type Async struct {
	sys     Writer
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu     sync.Mutex
	queues map[uuid.UUID][]write
}

type write struct {
	op string
	fn func(ctx context.Context) error
}

// NewAsync wraps sys. A non-positive timeout defaults to ten seconds.
func NewAsync(sys Writer, timeout time.Duration, logger *slog.Logger) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{
		sys:     sys,
		timeout: timeout,
		logger:  logger.With("system", "history-async"),
		queues:  make(map[uuid.UUID][]write),
	}
}

func (a *Async) AppendVerdict(v analysis.Verdict) {
	a.run("append verdict", v.SessionID, func(ctx context.Context) error {
		return a.sys.AppendVerdict(ctx, v)
	})
}

func (a *Async) SetLastChecked(sessionID uuid.UUID, sig string) {
	a.run("set last checked", sessionID, func(ctx context.Context) error {
		return a.sys.SetLastChecked(ctx, sessionID, sig)
	})
}

func (a *Async) AppendTurns(sessionID uuid.UUID, turns []conversation.Turn) {
	batch := append([]conversation.Turn(nil), turns...)
	a.run("append turns", sessionID, func(ctx context.Context) error {
		return a.sys.AppendTurns(ctx, sessionID, batch)
	})
}

// Wait blocks until every pending write has finished.
func (a *Async) Wait() {
	a.wg.Wait()
}

// run queues the write behind the session's pending writes. A session has
// a drain goroutine exactly while its queue is in the map.
func (a *Async) run(op string, sessionID uuid.UUID, fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	q, draining := a.queues[sessionID]
	a.queues[sessionID] = append(q, write{op: op, fn: fn})
	if !draining {
		a.wg.Go(func() { a.drain(sessionID) })
	}
}

func (a *Async) drain(sessionID uuid.UUID) {
	for {
		a.mu.Lock()
		q := a.queues[sessionID]
		if len(q) == 0 {
			delete(a.queues, sessionID)
			a.mu.Unlock()
			return
		}
		w := q[0]
		a.queues[sessionID] = q[1:]
		a.mu.Unlock()

		a.exec(sessionID, w)
	}
}

func (a *Async) exec(sessionID uuid.UUID, w write) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := w.fn(ctx); err != nil {
		a.logger.Error(w.op+" failed", "session", sessionID, "error", err)
	}
}
