package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"cv-ranker/internal/extract"
	"cv-ranker/internal/plans"
	"cv-ranker/internal/shared/storage/object"
	"cv-ranker/internal/shared/telemetry"
	"cv-ranker/internal/usage"
)

// Ledger reserves and releases credits.
type Ledger interface {
	CheckAndReserve(ctx context.Context, userID string, kind plans.Kind, count int) (usage.Reservation, error)
	Release(ctx context.Context, userID string, kind plans.Kind, count int)
}

// Service contains business logic for job descriptions and CVs.
type Service struct {
	Repo   Repo
	Store  object.ObjectStore
	Ledger Ledger

	// ChargeUnreadable keeps the credit of a file that yielded no text.
	ChargeUnreadable   bool
	MaxFileBytes       int64
	MaxFiles           int
	ExtractConcurrency int

	now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// UploadCVsResult reports saved CVs and the files that could not be read.
type UploadCVsResult struct {
	Items  []CV          `json:"items"`
	Failed []FileFailure `json:"failed"`
}

// UploadJD reserves one JD credit, extracts the file, and saves it. The
// credit is released if extraction or persistence fails.
func (s *Service) UploadJD(ctx context.Context, userID string, file File, title string) (JobDescription, error) {
	if err := Validate([]File{file}, s.MaxFileBytes); err != nil {
		return JobDescription{}, err
	}
	if _, err := s.Ledger.CheckAndReserve(ctx, userID, plans.KindJD, 1); err != nil {
		return JobDescription{}, err
	}

	ex := ExtractOne(ctx, file, s.MaxFileBytes)
	if ex.Err != nil {
		s.Ledger.Release(context.WithoutCancel(ctx), userID, plans.KindJD, 1)
		return JobDescription{}, ex.Err
	}
	jd, err := s.SaveJD(ctx, userID, ex.Source, ex.Text, title)
	if err != nil {
		s.Ledger.Release(context.WithoutCancel(ctx), userID, plans.KindJD, 1)
		return JobDescription{}, err
	}
	return jd, nil
}

// UploadCVs reserves one CV credit per file, extracts each, and saves the
// readable ones. If nothing was readable every credit is released.
func (s *Service) UploadCVs(ctx context.Context, userID string, files []File) (UploadCVsResult, error) {
	if len(files) == 0 {
		return UploadCVsResult{}, fmt.Errorf("%w: at least one file is required", ErrInvalidInput)
	}
	if s.MaxFiles > 0 && len(files) > s.MaxFiles {
		return UploadCVsResult{}, fmt.Errorf("%w: at most %d files per upload", ErrInvalidInput, s.MaxFiles)
	}
	if err := Validate(files, s.MaxFileBytes); err != nil {
		return UploadCVsResult{}, err
	}
	n := len(files)
	if _, err := s.Ledger.CheckAndReserve(ctx, userID, plans.KindCV, n); err != nil {
		return UploadCVsResult{}, err
	}
	release := func(count int) {
		if count > 0 {
			s.Ledger.Release(context.WithoutCancel(ctx), userID, plans.KindCV, count)
		}
	}

	extracted, err := ExtractAll(ctx, files, s.MaxFileBytes, s.ExtractConcurrency)
	if err != nil {
		release(n)
		return UploadCVsResult{}, err
	}

	readable := make([]Extracted, 0, n)
	failed := make([]FileFailure, 0)
	for _, ex := range extracted {
		if ex.Err != nil {
			failed = append(failed, FileFailure{FileName: ex.Source.Name, Error: FailureMessage(ex.Err)})
			continue
		}
		readable = append(readable, ex)
	}
	if len(readable) == 0 {
		release(n)
		return UploadCVsResult{}, &UnreadableError{Failures: failed}
	}

	cvs, err := s.SaveCVs(ctx, userID, readable)
	if err != nil {
		release(n)
		return UploadCVsResult{}, err
	}
	if !s.ChargeUnreadable {
		release(len(failed))
	}
	return UploadCVsResult{Items: cvs, Failed: failed}, nil
}

// SaveJD persists an extracted job description. The original bytes are kept
// in the object store when one is configured.
func (s *Service) SaveJD(ctx context.Context, userID string, src Source, text, title string) (JobDescription, error) {
	now := s.clock()
	title = strings.TrimSpace(title)
	if title == "" {
		title = baseName(src.Name)
	}
	if title == "" {
		title = "Untitled job description"
	}
	jd := JobDescription{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: truncateRunes(text, DescriptionRunes),
		Content:     text,
		FileName:    src.Name,
		MimeType:    src.MimeType,
		SizeBytes:   int64(len(src.Data)),
		State:       StateActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	jd.StorageKey = s.storeOriginal(ctx, userID, "jds", src)

	if err := s.Repo.CreateJD(ctx, jd); err != nil {
		s.deleteOriginal(ctx, jd.StorageKey)
		return JobDescription{}, fmt.Errorf("save job description: %w", err)
	}
	return jd, nil
}

// SaveCVs persists extracted CVs in one transaction.
func (s *Service) SaveCVs(ctx context.Context, userID string, items []Extracted) ([]CV, error) {
	now := s.clock()
	cvs := make([]CV, 0, len(items))
	for _, ex := range items {
		cvs = append(cvs, CV{
			ID:            uuid.NewString(),
			UserID:        userID,
			FileName:      ex.Source.Name,
			CandidateName: baseName(ex.Source.Name),
			Content:       ex.Text,
			MimeType:      ex.Source.MimeType,
			SizeBytes:     int64(len(ex.Source.Data)),
			StorageKey:    s.storeOriginal(ctx, userID, "cvs", ex.Source),
			State:         StateActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	if err := s.Repo.CreateCVs(ctx, cvs); err != nil {
		for _, cv := range cvs {
			s.deleteOriginal(ctx, cv.StorageKey)
		}
		return nil, fmt.Errorf("save cvs: %w", err)
	}
	return cvs, nil
}

func (s *Service) storeOriginal(ctx context.Context, userID, folder string, src Source) string {
	if s.Store == nil || len(src.Data) == 0 {
		return ""
	}
	obj, err := s.Store.Put(ctx, userID, folder, src.Name, src.MimeType, bytes.NewReader(src.Data))
	if err != nil {
		telemetry.Warn("documents.store_original_failed", map[string]any{
			"user_id":  userID,
			"filename": src.Name,
			"error":    err,
		})
		return ""
	}
	return obj.Key
}

func (s *Service) deleteOriginal(ctx context.Context, key string) {
	if s.Store == nil || key == "" {
		return
	}
	if err := s.Store.Delete(context.WithoutCancel(ctx), key); err != nil {
		telemetry.Warn("documents.delete_original_failed", map[string]any{"storage_key": key, "error": err})
	}
}

// Original is a stored upload opened for reading. Callers close Body.
type Original struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.ReadCloser
}

// OpenJDOriginal opens the uploaded file behind a job description, archived
// or not.
func (s *Service) OpenJDOriginal(ctx context.Context, userID, id string) (Original, error) {
	jd, err := s.GetJD(ctx, userID, id)
	if err != nil {
		return Original{}, err
	}
	return s.openOriginal(ctx, jd.StorageKey, jd.FileName, jd.MimeType, jd.SizeBytes)
}

// OpenCVOriginal opens the uploaded file behind a CV, archived or not.
func (s *Service) OpenCVOriginal(ctx context.Context, userID, id string) (Original, error) {
	cv, err := s.GetCV(ctx, userID, id)
	if err != nil {
		return Original{}, err
	}
	return s.openOriginal(ctx, cv.StorageKey, cv.FileName, cv.MimeType, cv.SizeBytes)
}

func (s *Service) openOriginal(ctx context.Context, key, fileName, mimeType string, size int64) (Original, error) {
	if s.Store == nil || key == "" {
		return Original{}, ErrNoOriginal
	}
	body, err := s.Store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Original{}, ErrNoOriginal
		}
		return Original{}, fmt.Errorf("open original: %w", err)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return Original{FileName: fileName, MimeType: mimeType, Size: size, Body: body}, nil
}

// GetJD returns a job description, archived or not.
func (s *Service) GetJD(ctx context.Context, userID, id string) (JobDescription, error) {
	if !validID(id) {
		return JobDescription{}, ErrNotFound
	}
	return s.Repo.GetJD(ctx, userID, id)
}

// ActiveJD returns a job description only if it is active.
func (s *Service) ActiveJD(ctx context.Context, userID, id string) (JobDescription, error) {
	jd, err := s.GetJD(ctx, userID, id)
	if err != nil {
		return JobDescription{}, err
	}
	if jd.State != StateActive {
		return JobDescription{}, ErrNotFound
	}
	return jd, nil
}

func (s *Service) ListJDs(ctx context.Context, userID string) ([]JobDescription, error) {
	return s.Repo.ListJDs(ctx, userID, ListLimit)
}

func (s *Service) ArchiveJD(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return s.Repo.ArchiveJD(ctx, userID, id, s.clock())
}

// IncrementRankedCount adds n to the JD's ranked counter.
func (s *Service) IncrementRankedCount(ctx context.Context, userID, id string, n int) error {
	if n <= 0 {
		return nil
	}
	return s.Repo.IncrementRankedCount(ctx, userID, id, n)
}

func (s *Service) GetCV(ctx context.Context, userID, id string) (CV, error) {
	if !validID(id) {
		return CV{}, ErrNotFound
	}
	return s.Repo.GetCV(ctx, userID, id)
}

func (s *Service) ListCVs(ctx context.Context, userID string) ([]CV, error) {
	return s.Repo.ListCVs(ctx, userID, ListLimit)
}

func (s *Service) ArchiveCV(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return s.Repo.ArchiveCV(ctx, userID, id, s.clock())
}

// ActiveCVs returns the requested CVs in request order. Any id that is
// missing, archived, or not owned yields a *MissingError.
func (s *Service) ActiveCVs(ctx context.Context, userID string, ids []string) ([]CV, error) {
	valid := make([]string, 0, len(ids))
	missing := make([]string, 0)
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		} else {
			missing = append(missing, id)
		}
	}
	found, err := s.Repo.ActiveCVsByIDs(ctx, userID, valid)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]CV, len(found))
	for _, cv := range found {
		byID[cv.ID] = cv
	}
	out := make([]CV, 0, len(ids))
	for _, id := range valid {
		cv, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, cv)
	}
	if len(missing) > 0 {
		return nil, &MissingError{Kind: "cv", IDs: missing}
	}
	return out, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// FailureMessage is the user-facing text for a file that could not be used.
// Parser detail stays in the logs.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, extract.ErrUnsupportedType):
		return "Unsupported file type. Only PDF and TXT files are allowed."
	case errors.Is(err, ErrInvalidInput):
		return "File exceeds the size limit"
	default:
		return "Could not extract text from file"
	}
}
