package history

import (
	"database/sql"
	"encoding/json"
	"net/url"
	"time"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/pkg/query"
	"github.com/JaimeStill/mentor/pkg/repository"
)

const sessionColumns = "id, client_id, kind, problem, context, muted, last_checked, created_at, ended_at"

const verdictColumns = "id, session_id, is_correct, is_incomplete, feedback, hints, encouragement, speak, region, signature, created_at"

const completionColumns = "id, session_id, problem, last_feedback, attempts, solved, snapshot_key, review, completed_at"

var sessionProjection = query.
	NewProjectionMap("public", "sessions", "s").
	Project("id", "ID").
	Project("client_id", "ClientID").
	Project("kind", "Kind").
	Project("problem", "Problem").
	Project("context", "Context").
	Project("muted", "Muted").
	Project("last_checked", "LastChecked").
	Project("created_at", "CreatedAt").
	Project("ended_at", "EndedAt")

var defaultSort = query.SortField{Field: "CreatedAt", Descending: true}

// Filters narrows session listings. Nil fields are ignored.
type Filters struct {
	ClientID *string    `json:"client_id,omitempty"`
	Kind     *Kind      `json:"kind,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ClientID", f.ClientID).
		WhereEquals("Kind", f.Kind).
		WhereSince("CreatedAt", f.Since).
		WhereBefore("CreatedAt", f.Before)
}

// FiltersFromQuery extracts filters from query parameters. Invalid kinds and
// timestamps (RFC 3339 expected) are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if c := values.Get("client_id"); c != "" {
		f.ClientID = &c
	}
	if k, err := ParseKind(values.Get("kind")); err == nil {
		f.Kind = &k
	}
	if t, err := time.Parse(time.RFC3339, values.Get("since")); err == nil {
		f.Since = &t
	}
	if t, err := time.Parse(time.RFC3339, values.Get("before")); err == nil {
		f.Before = &t
	}
	return f
}

func scanSession(s repository.Scanner) (Session, error) {
	var (
		out         Session
		lastChecked sql.NullString
		endedAt     sql.NullTime
	)
	err := s.Scan(
		&out.ID,
		&out.ClientID,
		&out.Kind,
		&out.Problem,
		&out.Context,
		&out.Muted,
		&lastChecked,
		&out.CreatedAt,
		&endedAt,
	)
	if err != nil {
		return Session{}, err
	}
	out.LastChecked = lastChecked.String
	if endedAt.Valid {
		out.EndedAt = &endedAt.Time
	}
	return out, nil
}

func scanVerdict(s repository.Scanner) (analysis.Verdict, error) {
	var (
		v      analysis.Verdict
		hints  []byte
		region []byte
		speak  sql.NullString
	)
	err := s.Scan(
		&v.ID,
		&v.SessionID,
		&v.IsCorrect,
		&v.IsIncomplete,
		&v.Feedback,
		&hints,
		&v.Encouragement,
		&speak,
		&region,
		&v.Signature,
		&v.CreatedAt,
	)
	if err != nil {
		return analysis.Verdict{}, err
	}

	v.Speak = speak.String
	if err := json.Unmarshal(hints, &v.Hints); err != nil || v.Hints == nil {
		v.Hints = []string{}
	}
	if len(region) > 0 {
		var r analysis.Region
		if err := json.Unmarshal(region, &r); err == nil {
			v.Region = &r
		}
	}
	return v, nil
}

func verdictArgs(v analysis.Verdict) ([]any, error) {
	hints, err := json.Marshal(v.Hints)
	if err != nil {
		return nil, err
	}

	var region []byte
	if v.Region != nil {
		if region, err = json.Marshal(v.Region); err != nil {
			return nil, err
		}
	}

	return []any{
		v.ID, v.SessionID, v.IsCorrect, v.IsIncomplete, v.Feedback,
		hints, v.Encouragement, nullString(v.Speak), region, v.Signature, v.CreatedAt,
	}, nil
}

func scanTurn(s repository.Scanner) (conversation.Turn, error) {
	var t conversation.Turn
	err := s.Scan(&t.Role, &t.Text, &t.IsQuestion, &t.At)
	return t, err
}

func scanCompletion(s repository.Scanner) (feedback.Completion, error) {
	var (
		c           feedback.Completion
		snapshotKey sql.NullString
		review      sql.NullString
	)
	err := s.Scan(
		&c.ID,
		&c.SessionID,
		&c.Problem,
		&c.LastFeedback,
		&c.Attempts,
		&c.Solved,
		&snapshotKey,
		&review,
		&c.CompletedAt,
	)
	c.SnapshotKey = snapshotKey.String
	c.Review = review.String
	return c, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
