package rankings

import (
	"context"
	"time"

	"cv-ranker/internal/scoring"
)

// Repo persists ranking batches. Every method is scoped to userID.
type Repo interface {
	Create(ctx context.Context, b Batch) error
	// GetByID returns archived batches too.
	GetByID(ctx context.Context, userID, id string) (Batch, error)
	// ListByUser returns active batches, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Batch, error)
	// Complete and Fail only apply to a batch in StatusProcessing and
	// return ErrNotProcessing otherwise.
	Complete(ctx context.Context, userID, id string, results []scoring.Result, at time.Time) error
	Fail(ctx context.Context, userID, id, message string, results []scoring.Result, at time.Time) error
	Archive(ctx context.Context, userID, id string, at time.Time) error
}
