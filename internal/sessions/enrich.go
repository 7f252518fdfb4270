package sessions

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/feedback"
)

// Reviewer writes a fuller final review of a completed session.
type Reviewer interface {
	Review(ctx context.Context, c feedback.Completion) (string, error)
}

// ReviewWriter stores a completion's review.
type ReviewWriter interface {
	UpdateCompletionReview(ctx context.Context, id uuid.UUID, review string) error
}

// ReviewEnricher asks the reasoning service for a final review and writes
// it back to the completion record.
func ReviewEnricher(reviewer Reviewer, store ReviewWriter) feedback.Enricher {
	return func(ctx context.Context, c feedback.Completion) error {
		review, err := reviewer.Review(ctx, c)
		if err != nil {
			return fmt.Errorf("final review: %w", err)
		}
		if review == "" {
			return nil
		}
		return store.UpdateCompletionReview(ctx, c.ID, review)
	}
}
