package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/pkg/cache"
	"github.com/JaimeStill/mentor/pkg/formatting"
	"github.com/JaimeStill/mentor/pkg/pagination"
	"github.com/JaimeStill/mentor/pkg/query"
	"github.com/JaimeStill/mentor/pkg/repository"
	"github.com/JaimeStill/mentor/pkg/storage"
)

type repo struct {
	db         *sql.DB
	cache      cache.System
	store      storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a history repository implementing System.
func New(
	db *sql.DB,
	cache cache.System,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		cache:      cache,
		store:      store,
		logger:     logger.With("system", "history"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) CreateSession(ctx context.Context, cmd CreateCommand) (*Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO sessions(client_id, kind, problem, context, muted)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + sessionColumns

	s, err := repository.QueryOne(ctx, r.db, q,
		[]any{cmd.ClientID, cmd.Kind, cmd.Problem, cmd.Context, cmd.Muted}, scanSession)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("session created", "id", s.ID, "kind", s.Kind, "client", s.ClientID)
	return &s, nil
}

func (r *repo) FindSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	q, args := query.NewBuilder(sessionProjection).BuildSingle("ID", id)

	s, err := repository.QueryOne(ctx, r.db, q, args, scanSession)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &s, nil
}

func (r *repo) ListSessions(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Session], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(sessionProjection, defaultSort).
		WhereSearch(page.Search, "Problem", "Context")
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	sessions, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanSession)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	result := pagination.NewPageResult(sessions, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) EndSession(ctx context.Context, id uuid.UUID) error {
	if _, err := r.FindSession(ctx, id); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET ended_at = now() WHERE id = $1 AND ended_at IS NULL", id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	r.logger.Info("session ended", "id", id)
	return nil
}

func (r *repo) SetMuted(ctx context.Context, id uuid.UUID, muted bool) error {
	err := repository.ExecExpectOne(ctx, r.db, "UPDATE sessions SET muted = $1 WHERE id = $2", muted, id)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) AppendVerdict(ctx context.Context, v analysis.Verdict) error {
	args, err := verdictArgs(v)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}

	q := `INSERT INTO verdicts(` + verdictColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if err := r.cache.SetJSON(ctx, r.verdictKey(v.SessionID), v, 0); err != nil {
		r.logger.Warn("cache last verdict failed", "session", v.SessionID, "error", err)
	}
	return nil
}

func (r *repo) LastVerdict(ctx context.Context, sessionID uuid.UUID) (*analysis.Verdict, error) {
	var cached analysis.Verdict
	hit, err := r.cache.GetJSON(ctx, r.verdictKey(sessionID), &cached)
	if err != nil {
		r.logger.Warn("cache read failed", "session", sessionID, "error", err)
	}
	if hit {
		return &cached, nil
	}

	q := `SELECT ` + verdictColumns + ` FROM verdicts
		WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`

	v, err := repository.QueryOne(ctx, r.db, q, []any{sessionID}, scanVerdict)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if err := r.cache.SetJSON(ctx, r.verdictKey(sessionID), v, 0); err != nil {
		r.logger.Warn("cache last verdict failed", "session", sessionID, "error", err)
	}
	return &v, nil
}

func (r *repo) ListVerdicts(ctx context.Context, sessionID uuid.UUID) ([]analysis.Verdict, error) {
	q := `SELECT ` + verdictColumns + ` FROM verdicts WHERE session_id = $1 ORDER BY created_at`

	verdicts, err := repository.QueryMany(ctx, r.db, q, []any{sessionID}, scanVerdict)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	return verdicts, nil
}

func (r *repo) LastChecked(ctx context.Context, sessionID uuid.UUID) (string, error) {
	sig, hit, err := r.cache.GetString(ctx, r.checkedKey(sessionID))
	if err != nil {
		r.logger.Warn("cache read failed", "session", sessionID, "error", err)
	}
	if hit {
		return sig, nil
	}

	s, err := r.FindSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return s.LastChecked, nil
}

func (r *repo) SetLastChecked(ctx context.Context, sessionID uuid.UUID, sig string) error {
	if err := r.cache.SetString(ctx, r.checkedKey(sessionID), sig, 0); err != nil {
		r.logger.Warn("cache last checked failed", "session", sessionID, "error", err)
	}

	err := repository.ExecExpectOne(ctx, r.db, "UPDATE sessions SET last_checked = $1 WHERE id = $2", sig, sessionID)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) AppendTurns(ctx context.Context, sessionID uuid.UUID, turns []conversation.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		var next int
		err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = $1", sessionID,
		).Scan(&next)
		if err != nil {
			return struct{}{}, err
		}

		type row struct {
			seq  int
			turn conversation.Turn
		}
		rows := make([]row, len(turns))
		for i, t := range turns {
			rows[i] = row{seq: next + i, turn: t}
		}

		return struct{}{}, repository.ExecBatch(ctx, tx,
			"INSERT INTO turns(session_id, seq, role, text, is_question, at) VALUES ($1, $2, $3, $4, $5, $6)",
			rows,
			func(item row) []any {
				t := item.turn
				return []any{sessionID, item.seq, t.Role, t.Text, t.IsQuestion, t.At}
			},
		)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("turns appended", "session", sessionID, "count", len(turns))
	return nil
}

func (r *repo) ListTurns(ctx context.Context, sessionID uuid.UUID) ([]conversation.Turn, error) {
	turns, err := repository.QueryMany(ctx, r.db,
		"SELECT role, text, is_question, at FROM turns WHERE session_id = $1 ORDER BY seq",
		[]any{sessionID}, scanTurn)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	return turns, nil
}

func (r *repo) SaveSnapshot(ctx context.Context, sessionID uuid.UUID, img capability.Image, meta feedback.SnapshotMeta) (string, error) {
	key := SnapshotKey(sessionID, uuid.New(), formatting.Extension(img.MIME))

	if err := r.store.Put(ctx, key, img.Data, img.MIME); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	r.logger.Info("snapshot saved",
		"session", sessionID,
		"key", key,
		"size", formatting.FormatBytes(int64(len(img.Data))),
		"reason", meta.Reason,
	)
	return key, nil
}

func (r *repo) Snapshot(ctx context.Context, sessionID uuid.UUID) (storage.Object, error) {
	c, err := r.FindCompletion(ctx, sessionID)
	if err != nil {
		return storage.Object{}, err
	}
	if c.SnapshotKey == "" {
		return storage.Object{}, storage.ErrNotFound
	}
	return r.store.Get(ctx, c.SnapshotKey)
}

func (r *repo) SaveCompletion(ctx context.Context, c feedback.Completion) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		q := `INSERT INTO completions(` + completionColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

		if _, err := tx.ExecContext(ctx, q,
			c.ID, c.SessionID, c.Problem, c.LastFeedback, c.Attempts, c.Solved,
			nullString(c.SnapshotKey), nullString(c.Review), c.CompletedAt,
		); err != nil {
			return struct{}{}, err
		}

		_, err := tx.ExecContext(ctx,
			"UPDATE sessions SET ended_at = $1 WHERE id = $2 AND ended_at IS NULL", c.CompletedAt, c.SessionID)
		return struct{}{}, err
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("completion saved", "session", c.SessionID, "solved", c.Solved, "attempts", c.Attempts)
	return nil
}

func (r *repo) FindCompletion(ctx context.Context, sessionID uuid.UUID) (*feedback.Completion, error) {
	q := `SELECT ` + completionColumns + ` FROM completions WHERE session_id = $1`

	c, err := repository.QueryOne(ctx, r.db, q, []any{sessionID}, scanCompletion)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) UpdateCompletionReview(ctx context.Context, id uuid.UUID, review string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE completions SET review = $1 WHERE id = $2", review, id)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.logger.Info("completion gone, review dropped", "completion", id)
	}
	return nil
}

func (r *repo) verdictKey(sessionID uuid.UUID) string {
	return r.cache.Key("session", sessionID.String(), "last_verdict")
}

func (r *repo) checkedKey(sessionID uuid.UUID) string {
	return r.cache.Key("session", sessionID.String(), "last_checked")
}
