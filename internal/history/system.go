package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/pkg/pagination"
	"github.com/JaimeStill/mentor/pkg/storage"
)

var _ feedback.Store = System(nil)

// System defines the public contract for session history.
type System interface {
	Handler() *Handler

	CreateSession(ctx context.Context, cmd CreateCommand) (*Session, error)
	FindSession(ctx context.Context, id uuid.UUID) (*Session, error)
	ListSessions(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Session], error)
	// EndSession stamps ended_at once; ending an ended session is a no-op.
	EndSession(ctx context.Context, id uuid.UUID) error
	SetMuted(ctx context.Context, id uuid.UUID, muted bool) error

	AppendVerdict(ctx context.Context, v analysis.Verdict) error
	// LastVerdict returns the newest verdict, read through the cache.
	LastVerdict(ctx context.Context, sessionID uuid.UUID) (*analysis.Verdict, error)
	ListVerdicts(ctx context.Context, sessionID uuid.UUID) ([]analysis.Verdict, error)

	// LastChecked returns the last conclusively checked signature.
	LastChecked(ctx context.Context, sessionID uuid.UUID) (string, error)
	SetLastChecked(ctx context.Context, sessionID uuid.UUID, sig string) error

	AppendTurns(ctx context.Context, sessionID uuid.UUID, turns []conversation.Turn) error
	ListTurns(ctx context.Context, sessionID uuid.UUID) ([]conversation.Turn, error)

	SaveSnapshot(ctx context.Context, sessionID uuid.UUID, img capability.Image, meta feedback.SnapshotMeta) (string, error)
	Snapshot(ctx context.Context, sessionID uuid.UUID) (storage.Object, error)
	SaveCompletion(ctx context.Context, c feedback.Completion) error
	FindCompletion(ctx context.Context, sessionID uuid.UUID) (*feedback.Completion, error)
	// UpdateCompletionReview is a no-op when the completion no longer exists.
	UpdateCompletionReview(ctx context.Context, id uuid.UUID, review string) error
}
