package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/mentor/internal/capability"
)

// Completion is the durable record of a finished whiteboard session.
type Completion struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	Problem      string    `json:"problem"`
	LastFeedback string    `json:"last_feedback"`
	Attempts     int       `json:"attempts"`
	Solved       bool      `json:"solved"`
	SnapshotKey  string    `json:"snapshot_key,omitempty"`
	Review       string    `json:"review,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`

	// Snapshot is the full-resolution capture, handed to enrichers but never
	// stored on the record itself.
	Snapshot capability.Image `json:"-"`
}

// SnapshotMeta describes a stored snapshot.
type SnapshotMeta struct {
	Reason   string
	Captured time.Time
}

// Store persists snapshots and completion records.
type Store interface {
	SaveSnapshot(ctx context.Context, sessionID uuid.UUID, img capability.Image, meta SnapshotMeta) (string, error)
	SaveCompletion(ctx context.Context, c Completion) error
}

// Enricher performs secondary work on a completion after Finalize returns,
// such as a fuller final review or a guardian notification. Results are
// written back opportunistically.
type Enricher func(ctx context.Context, c Completion) error

// Request carries what the finalizer needs from the session.
type Request struct {
	SessionID    uuid.UUID
	Problem      string
	LastFeedback string
	Attempts     int
	Solved       bool
	Surface      capability.Surface
}

// Finalizer writes completion records and runs enrichers in the background.
type Finalizer struct {
	store     Store
	enrichers []Enricher
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewFinalizer creates a Finalizer. timeout bounds the background enrichment.
func NewFinalizer(store Store, timeout time.Duration, logger *slog.Logger, enrichers ...Enricher) *Finalizer {
	return &Finalizer{
		store:     store,
		enrichers: enrichers,
		timeout:   timeout,
		logger:    logger.With("system", "finalizer"),
		now:       time.Now,
	}
}

// Finalize captures the surface at full resolution, writes the snapshot and
// the completion record, and returns. Enrichers start afterwards and keep
// running after the caller's context ends, bounded by the finalizer timeout.
// A failed capture still produces a completion record without a snapshot.
func (f *Finalizer) Finalize(ctx context.Context, req Request) (Completion, error) {
	c := Completion{
		ID:           uuid.New(),
		SessionID:    req.SessionID,
		Problem:      req.Problem,
		LastFeedback: req.LastFeedback,
		Attempts:     req.Attempts,
		Solved:       req.Solved,
		CompletedAt:  f.now(),
	}
	logger := f.logger.With("session", req.SessionID, "completion", c.ID)

	if req.Surface != nil {
		img, err := req.Surface.Capture(ctx, capability.CaptureFull)
		if err == nil && img.Empty() {
			err = fmt.Errorf("%w: empty image", capability.ErrCapture)
		}
		if err != nil {
			logger.Warn("final capture failed", "error", err)
		} else {
			c.Snapshot = img
			key, err := f.store.SaveSnapshot(ctx, req.SessionID, img, SnapshotMeta{
				Reason:   "completion",
				Captured: c.CompletedAt,
			})
			if err != nil {
				logger.Warn("save snapshot failed", "error", err)
			}
			c.SnapshotKey = key
		}
	}

	if err := f.store.SaveCompletion(ctx, c); err != nil {
		logger.Error("save completion failed", "error", err)
		return c, err
	}

	if len(f.enrichers) > 0 {
		bg := context.WithoutCancel(ctx)
		f.wg.Go(func() { f.enrich(bg, c, logger) })
	}

	return c, nil
}

// Wait blocks until all background enrichment has finished.
func (f *Finalizer) Wait() {
	f.wg.Wait()
}

func (f *Finalizer) enrich(ctx context.Context, c Completion, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var g errgroup.Group
	for _, e := range f.enrichers {
		g.Go(func() error {
			if err := e(ctx, c); err != nil {
				logger.Warn("enrichment failed", "error", err)
			}
			return nil
		})
	}
	g.Wait()
	logger.Debug("enrichment complete")
}
