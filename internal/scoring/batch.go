package scoring

import (
	"context"
	"errors"
	"fmt"

	"cv-ranker/internal/shared/telemetry"
)

// ScoreBatch scores candidates one at a time. A failure on one candidate
// becomes an Error entry and scoring continues. The returned slice has one
// entry per candidate in input order; it is not sorted.
//
// An error is returned only when ctx is done, in which case the batch is
// aborted and the partial results are returned alongside it.
func ScoreBatch(ctx context.Context, scorer Scorer, jdText string, candidates []Candidate) ([]Result, error) {
	results := make([]Result, 0, len(candidates))
	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("scoring aborted after %d of %d candidates: %w", i, len(candidates), err)
		}
		p, err := scorer.Score(ctx, jdText, cand.Text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, fmt.Errorf("scoring aborted after %d of %d candidates: %w", i, len(candidates), ctxErr)
			}
			telemetry.Warn("scoring.candidate_failed", map[string]any{
				"cv_id":    cand.ID,
				"filename": cand.FileName,
				"index":    i,
				"error":    err,
			})
			results = append(results, ErrorResult(cand.ID, cand.FileName, Message(err)))
			continue
		}
		results = append(results, Result{
			CandidateID: cand.ID,
			FileName:    cand.FileName,
			Verdict:     p.Verdict,
			Confidence:  p.Confidence,
		})
	}
	return results, nil
}

// Message turns a scoring error into the text stored on an Error entry.
func Message(err error) string {
	var oe *OracleError
	switch {
	case errors.Is(err, ErrTimeout):
		return "Scoring request timed out"
	case errors.As(err, &oe):
		return fmt.Sprintf("Scoring service error: %d", oe.StatusCode)
	case errors.Is(err, ErrMalformedResponse):
		return "Invalid response from scoring service"
	case errors.Is(err, ErrNotConfigured):
		return "Scoring service is not configured"
	default:
		return "Failed to get prediction from scoring service"
	}
}
