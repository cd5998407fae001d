package rankings

import (
	"errors"
	"time"

	"cv-ranker/internal/documents"
	"cv-ranker/internal/scoring"
)

// Status is the lifecycle of a ranking batch.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// MaxReferenceCandidates caps the by-reference variant.
const MaxReferenceCandidates = 50

var (
	ErrNotFound     = errors.New("ranking not found")
	ErrInvalidInput = errors.New("invalid ranking request")
	// ErrBatchFailed is returned with the failed batch when scoring or
	// finalizing could not complete. The batch is persisted in StatusFailed.
	ErrBatchFailed = errors.New("ranking batch failed")
	// ErrNotProcessing is returned when a batch already left StatusProcessing.
	ErrNotProcessing = errors.New("ranking batch is not processing")
)

// Batch is one ranking run of one job description against its candidates.
type Batch struct {
	ID               string           `json:"id"`
	UserID           string           `json:"-"`
	JobDescriptionID string           `json:"jdId"`
	JobTitle         string           `json:"jobTitle"`
	Status           Status           `json:"status"`
	State            documents.State  `json:"state"`
	Results          []scoring.Result `json:"results"`
	TotalCandidates  int              `json:"totalCandidates"`
	Charged          bool             `json:"charged"`
	Error            string           `json:"error,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
}

// Summary counts results per verdict.
type Summary struct {
	Relevant    int `json:"relevant"`
	NotRelevant int `json:"notRelevant"`
	Errors      int `json:"errors"`
}

// Summary tallies the batch results.
func (b Batch) Summary() Summary {
	var s Summary
	for _, r := range b.Results {
		switch r.Verdict {
		case scoring.VerdictRelevant:
			s.Relevant++
		case scoring.VerdictNotRelevant:
			s.NotRelevant++
		default:
			s.Errors++
		}
	}
	return s
}
