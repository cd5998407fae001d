package upgrades

import (
	"context"
	"time"
)

// Repo persists upgrade requests.
type Repo interface {
	Create(ctx context.Context, r Request) error
	Get(ctx context.Context, id string) (Request, error)
	// List returns requests newest first, filtered by status unless empty.
	List(ctx context.Context, status Status, limit int) ([]Request, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Request, error)
	// Decide moves a pending request to status. It returns ErrNotPending
	// when the request was already reviewed.
	Decide(ctx context.Context, id string, status Status, adminID, notes string, at time.Time) error
	// Reopen returns an approved request to pending.
	Reopen(ctx context.Context, id string, at time.Time) error
}
