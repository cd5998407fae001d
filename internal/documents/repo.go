package documents

import (
	"context"
	"time"
)

// Repo persists job descriptions and CVs. Every method is scoped to userID.
type Repo interface {
	CreateJD(ctx context.Context, jd JobDescription) error
	// GetJD returns archived records too.
	GetJD(ctx context.Context, userID, id string) (JobDescription, error)
	// ListJDs returns active records, newest first.
	ListJDs(ctx context.Context, userID string, limit int) ([]JobDescription, error)
	ArchiveJD(ctx context.Context, userID, id string, at time.Time) error
	IncrementRankedCount(ctx context.Context, userID, id string, n int) error

	// CreateCVs inserts all records or none.
	CreateCVs(ctx context.Context, cvs []CV) error
	GetCV(ctx context.Context, userID, id string) (CV, error)
	ListCVs(ctx context.Context, userID string, limit int) ([]CV, error)
	// ActiveCVsByIDs returns the active, owned subset of ids in any order.
	ActiveCVsByIDs(ctx context.Context, userID string, ids []string) ([]CV, error)
	ArchiveCV(ctx context.Context, userID, id string, at time.Time) error
}
