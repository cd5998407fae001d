package rankings

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"cv-ranker/internal/documents"
	"cv-ranker/internal/extract"
	"cv-ranker/internal/plans"
	"cv-ranker/internal/scoring"
	"cv-ranker/internal/shared/metrics"
	"cv-ranker/internal/shared/telemetry"
)

const (
	DefaultMaxCandidates = 50
	ListLimit            = 50
	maxErrorLength       = 500
)

// Service runs ranking batches: admission, extraction, persistence, scoring
// and finalization.
type Service struct {
	Repo      Repo
	Documents *documents.Service
	Ledger    documents.Ledger
	Scorer    scoring.Scorer

	// ChargeUnreadable keeps the credit of a candidate that yielded no text.
	ChargeUnreadable   bool
	MaxCandidates      int
	MaxFileBytes       int64
	ExtractConcurrency int

	now func() time.Time
}

// UploadRequest is one ranking of freshly uploaded files. Release, when set,
// is called exactly once before RankUploads returns.
type UploadRequest struct {
	JobDescription *documents.File
	JobTitle       string
	Candidates     []documents.File
	Release        func()
}

// item is one candidate slot in input order. A non-empty failure means the
// candidate never reaches the scorer.
type item struct {
	candidate scoring.Candidate
	failure   string
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

func (s *Service) maxCandidates() int {
	if s.MaxCandidates > 0 && s.MaxCandidates < DefaultMaxCandidates {
		return s.MaxCandidates
	}
	return DefaultMaxCandidates
}

func (s *Service) scorer() scoring.Scorer {
	if s.Scorer == nil {
		return scoring.Unconfigured{}
	}
	return s.Scorer
}

// RankUploads charges one JD credit and one CV credit per candidate, saves
// the documents, and scores every readable candidate against the JD.
//
// Validation and admission failures leave no records behind. A JD that
// cannot be read releases every reservation. Once the batch exists, scoring
// problems end in a failed batch returned together with ErrBatchFailed.
func (s *Service) RankUploads(ctx context.Context, userID string, req UploadRequest) (Batch, error) {
	if req.Release != nil {
		defer req.Release()
	}

	if req.JobDescription == nil {
		return Batch{}, fmt.Errorf("%w: job description is required", ErrInvalidInput)
	}
	n := len(req.Candidates)
	if n == 0 {
		return Batch{}, fmt.Errorf("%w: at least one candidate is required", ErrInvalidInput)
	}
	if n > s.maxCandidates() {
		return Batch{}, fmt.Errorf("%w: at most %d candidates per ranking", ErrInvalidInput, s.maxCandidates())
	}
	all := make([]documents.File, 0, n+1)
	all = append(all, *req.JobDescription)
	all = append(all, req.Candidates...)
	if err := documents.Validate(all, s.MaxFileBytes); err != nil {
		return Batch{}, err
	}

	if _, err := s.Ledger.CheckAndReserve(ctx, userID, plans.KindJD, 1); err != nil {
		return Batch{}, err
	}
	if _, err := s.Ledger.CheckAndReserve(ctx, userID, plans.KindCV, n); err != nil {
		s.Ledger.Release(context.WithoutCancel(ctx), userID, plans.KindJD, 1)
		return Batch{}, err
	}
	jdHeld, cvHeld := 1, n
	releaseHeld := func() {
		detached := context.WithoutCancel(ctx)
		if jdHeld > 0 {
			s.Ledger.Release(detached, userID, plans.KindJD, jdHeld)
		}
		if cvHeld > 0 {
			s.Ledger.Release(detached, userID, plans.KindCV, cvHeld)
		}
	}

	jdEx := documents.ExtractOne(ctx, *req.JobDescription, s.MaxFileBytes)
	if jdEx.Err != nil {
		releaseHeld()
		telemetry.Warn("rankings.jd_extraction_failed", map[string]any{
			"user_id":  userID,
			"filename": req.JobDescription.Name,
			"error":    jdEx.Err,
		})
		if errors.Is(jdEx.Err, extract.ErrExtractionFailed) {
			return Batch{}, jdEx.Err
		}
		return Batch{}, fmt.Errorf("%w: job description: %w", extract.ErrExtractionFailed, jdEx.Err)
	}

	extracted, err := documents.ExtractAll(ctx, req.Candidates, s.MaxFileBytes, s.ExtractConcurrency)
	if err != nil {
		releaseHeld()
		return Batch{}, err
	}
	readable := make([]documents.Extracted, 0, n)
	unreadable := 0
	for _, ex := range extracted {
		if ex.Err != nil {
			unreadable++
			continue
		}
		readable = append(readable, ex)
	}
	if unreadable > 0 && !s.ChargeUnreadable {
		s.Ledger.Release(context.WithoutCancel(ctx), userID, plans.KindCV, unreadable)
		cvHeld -= unreadable
	}

	jd, err := s.Documents.SaveJD(ctx, userID, jdEx.Source, jdEx.Text, req.JobTitle)
	if err != nil {
		releaseHeld()
		return Batch{}, err
	}
	var cvs []documents.CV
	if len(readable) > 0 {
		cvs, err = s.Documents.SaveCVs(ctx, userID, readable)
		if err != nil {
			releaseHeld()
			return Batch{}, err
		}
	}

	items := make([]item, 0, n)
	next := 0
	for _, ex := range extracted {
		if ex.Err != nil {
			items = append(items, item{
				candidate: scoring.Candidate{FileName: ex.Source.Name},
				failure:   documents.FailureMessage(ex.Err),
			})
			continue
		}
		cv := cvs[next]
		next++
		items = append(items, item{candidate: scoring.Candidate{ID: cv.ID, FileName: cv.FileName, Text: cv.Content}})
	}
	return s.run(ctx, userID, jd, items, true)
}

// RankByReference scores already stored CVs against a stored JD. It is free:
// the documents were charged when they were uploaded.
func (s *Service) RankByReference(ctx context.Context, userID, jdID string, cvIDs []string) (Batch, error) {
	ids := dedupeIDs(cvIDs)
	if len(ids) == 0 {
		return Batch{}, fmt.Errorf("%w: at least one cv id is required", ErrInvalidInput)
	}
	if len(ids) > MaxReferenceCandidates {
		return Batch{}, fmt.Errorf("%w: at most %d cv ids per ranking", ErrInvalidInput, MaxReferenceCandidates)
	}
	jd, err := s.Documents.ActiveJD(ctx, userID, strings.TrimSpace(jdID))
	if err != nil {
		return Batch{}, err
	}
	cvs, err := s.Documents.ActiveCVs(ctx, userID, ids)
	if err != nil {
		return Batch{}, err
	}
	items := make([]item, 0, len(cvs))
	for _, cv := range cvs {
		items = append(items, item{candidate: scoring.Candidate{ID: cv.ID, FileName: cv.FileName, Text: cv.Content}})
	}
	return s.run(ctx, userID, jd, items, false)
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// run creates the batch and drives it to a terminal status. Everything from
// here on is detached from caller cancellation.
func (s *Service) run(ctx context.Context, userID string, jd documents.JobDescription, items []item, charged bool) (Batch, error) {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	now := s.clock()
	b := Batch{
		ID:               uuid.NewString(),
		UserID:           userID,
		JobDescriptionID: jd.ID,
		JobTitle:         jd.Title,
		Status:           StatusProcessing,
		State:            documents.StateActive,
		Results:          []scoring.Result{},
		TotalCandidates:  len(items),
		Charged:          charged,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.Create(ctx, b); err != nil {
		return Batch{}, fmt.Errorf("create ranking batch: %w", err)
	}
	metrics.IncRankingStarted()
	logTransition(b, "", StatusProcessing)

	results, scored, err := s.score(ctx, jd.Content, items)
	if err == nil {
		at := s.clock()
		if err = s.Repo.Complete(ctx, userID, b.ID, results, at); err == nil {
			b.Status = StatusCompleted
			b.Results = results
			b.UpdatedAt = at
			b.CompletedAt = &at
			if incErr := s.Documents.IncrementRankedCount(ctx, userID, jd.ID, scored); incErr != nil {
				telemetry.Warn("rankings.ranked_count_failed", map[string]any{
					"batch_id": b.ID,
					"jd_id":    jd.ID,
					"count":    scored,
					"error":    incErr,
				})
			}
			metrics.IncRankingCompleted()
			metrics.ObserveRankingDurationMs(float64(time.Since(started).Milliseconds()))
			logTransition(b, StatusProcessing, StatusCompleted)
			return b, nil
		}
		err = fmt.Errorf("record results: %w", err)
	}
	return s.fail(ctx, b, results, err, started)
}

func (s *Service) fail(ctx context.Context, b Batch, results []scoring.Result, cause error, started time.Time) (Batch, error) {
	msg := sanitizeError(cause)
	at := s.clock()
	if results == nil {
		results = []scoring.Result{}
	}
	if err := s.Repo.Fail(ctx, b.UserID, b.ID, msg, results, at); err != nil {
		telemetry.Error("rankings.mark_failed_failed", map[string]any{
			"batch_id": b.ID,
			"user_id":  b.UserID,
			"error":    err,
		})
	}
	b.Status = StatusFailed
	b.Error = msg
	b.Results = results
	b.UpdatedAt = at
	b.CompletedAt = &at
	metrics.IncRankingFailed()
	metrics.ObserveRankingDurationMs(float64(time.Since(started).Milliseconds()))
	logTransition(b, StatusProcessing, StatusFailed)
	return b, fmt.Errorf("%w: %w", ErrBatchFailed, cause)
}

// score sends readable candidates to the scorer and merges them with the
// unreadable ones, sorted. scored is the number of candidates sent.
func (s *Service) score(ctx context.Context, jdText string, items []item) (results []scoring.Result, scored int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("rankings.scoring_panic", map[string]any{
				"error": fmt.Sprint(rec),
				"stack": string(debug.Stack()),
			})
			results, scored = nil, 0
			err = fmt.Errorf("scoring panicked: %v", rec)
		}
	}()

	candidates := make([]scoring.Candidate, 0, len(items))
	for _, it := range items {
		if it.failure == "" {
			candidates = append(candidates, it.candidate)
		}
	}
	out, scoreErr := scoring.ScoreBatch(ctx, s.scorer(), jdText, candidates)

	merged := make([]scoring.Result, 0, len(items))
	next := 0
	for _, it := range items {
		if it.failure != "" {
			merged = append(merged, scoring.ErrorResult(it.candidate.ID, it.candidate.FileName, it.failure))
			continue
		}
		if next < len(out) {
			merged = append(merged, out[next])
			next++
		}
	}
	scoring.SortResults(merged)
	return merged, len(candidates), scoreErr
}

func sanitizeError(err error) string {
	if err == nil {
		return "ranking failed"
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if r := []rune(msg); len(r) > maxErrorLength {
		msg = string(r[:maxErrorLength])
	}
	return msg
}

func logTransition(b Batch, from, to Status) {
	fields := map[string]any{
		"batch_id":         b.ID,
		"user_id":          b.UserID,
		"jd_id":            b.JobDescriptionID,
		"to":               string(to),
		"total_candidates": b.TotalCandidates,
		"charged":          b.Charged,
	}
	if from != "" {
		fields["from"] = string(from)
	}
	if b.Error != "" {
		fields["error"] = b.Error
	}
	telemetry.Info("rankings.status_transition", fields)
}

// Get returns a batch owned by userID, archived or not.
func (s *Service) Get(ctx context.Context, userID, id string) (Batch, error) {
	if !validID(id) {
		return Batch{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID, id)
}

// List returns the newest active batches.
func (s *Service) List(ctx context.Context, userID string) ([]Batch, error) {
	return s.Repo.ListByUser(ctx, userID, ListLimit)
}

func (s *Service) Archive(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return s.Repo.Archive(ctx, userID, id, s.clock())
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
