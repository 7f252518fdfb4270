package history_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/internal/history"
	"github.com/JaimeStill/mentor/pkg/pagination"
	"github.com/JaimeStill/mentor/pkg/storage"
)

// mockSystem records writes and serves reads from func fields.
type mockSystem struct {
	mu sync.Mutex

	verdicts []analysis.Verdict
	checked  map[uuid.UUID]string
	turns    map[uuid.UUID][]conversation.Turn
	writeErr error

	listFn       func(ctx context.Context, page pagination.PageRequest, filters history.Filters) (*pagination.PageResult[history.Session], error)
	findFn       func(ctx context.Context, id uuid.UUID) (*history.Session, error)
	completionFn func(ctx context.Context, id uuid.UUID) (*feedback.Completion, error)
	snapshotFn   func(ctx context.Context, id uuid.UUID) (storage.Object, error)
}

func newMockSystem() *mockSystem {
	return &mockSystem{
		checked: make(map[uuid.UUID]string),
		turns:   make(map[uuid.UUID][]conversation.Turn),
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (m *mockSystem) Handler() *history.Handler {
	return history.NewHandler(m, discard(), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100})
}

func (m *mockSystem) CreateSession(ctx context.Context, cmd history.CreateCommand) (*history.Session, error) {
	return &history.Session{ID: uuid.New(), ClientID: cmd.ClientID, Kind: cmd.Kind}, nil
}

func (m *mockSystem) FindSession(ctx context.Context, id uuid.UUID) (*history.Session, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) ListSessions(ctx context.Context, page pagination.PageRequest, filters history.Filters) (*pagination.PageResult[history.Session], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) EndSession(ctx context.Context, id uuid.UUID) error           { return nil }
func (m *mockSystem) SetMuted(ctx context.Context, id uuid.UUID, muted bool) error { return nil }

func (m *mockSystem) AppendVerdict(ctx context.Context, v analysis.Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.verdicts = append(m.verdicts, v)
	return nil
}

func (m *mockSystem) LastVerdict(ctx context.Context, sessionID uuid.UUID) (*analysis.Verdict, error) {
	return nil, history.ErrNotFound
}

func (m *mockSystem) ListVerdicts(ctx context.Context, sessionID uuid.UUID) ([]analysis.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []analysis.Verdict
	for _, v := range m.verdicts {
		if v.SessionID == sessionID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockSystem) LastChecked(ctx context.Context, sessionID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checked[sessionID], nil
}

func (m *mockSystem) SetLastChecked(ctx context.Context, sessionID uuid.UUID, sig string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.checked[sessionID] = sig
	return nil
}

func (m *mockSystem) AppendTurns(ctx context.Context, sessionID uuid.UUID, turns []conversation.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.turns[sessionID] = append(m.turns[sessionID], turns...)
	return nil
}

func (m *mockSystem) ListTurns(ctx context.Context, sessionID uuid.UUID) ([]conversation.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns[sessionID], nil
}

func (m *mockSystem) SaveSnapshot(ctx context.Context, sessionID uuid.UUID, img capability.Image, meta feedback.SnapshotMeta) (string, error) {
	return history.SnapshotKey(sessionID, uuid.New(), "png"), nil
}

func (m *mockSystem) Snapshot(ctx context.Context, sessionID uuid.UUID) (storage.Object, error) {
	return m.snapshotFn(ctx, sessionID)
}

func (m *mockSystem) SaveCompletion(ctx context.Context, c feedback.Completion) error { return nil }

func (m *mockSystem) FindCompletion(ctx context.Context, sessionID uuid.UUID) (*feedback.Completion, error) {
	return m.completionFn(ctx, sessionID)
}

func (m *mockSystem) UpdateCompletionReview(ctx context.Context, id uuid.UUID, review string) error {
	return nil
}
