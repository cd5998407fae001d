package rankings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cv-ranker/internal/documents"
	"cv-ranker/internal/extract"
	"cv-ranker/internal/plans"
	"cv-ranker/internal/scoring"
	"cv-ranker/internal/shared/storage/object/local"
	"cv-ranker/internal/usage"
)

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) Score(ctx context.Context, jdText, candidateText string) (scoring.Prediction, error) {
	args := m.Called(ctx, jdText, candidateText)
	return args.Get(0).(scoring.Prediction), args.Error(1)
}

type fixture struct {
	svc    *Service
	docs   *documents.Service
	ledger *usage.Service
	scorer *mockScorer
	repo   *MemoryRepo
}

func intPtr(v int) *int { return &v }

func newFixture(t *testing.T, plan plans.Plan, chargeUnreadable bool) fixture {
	t.Helper()
	plan.IsActive = true
	ledger := usage.NewService(plans.NewMemoryCatalog(plan), plan.ID)
	docs := &documents.Service{
		Repo:               documents.NewMemoryRepo(),
		Store:              local.New(t.TempDir()),
		Ledger:             ledger,
		ChargeUnreadable:   chargeUnreadable,
		MaxFileBytes:       1 << 20,
		MaxFiles:           50,
		ExtractConcurrency: 4,
	}
	scorer := &mockScorer{}
	repo := NewMemoryRepo()
	svc := &Service{
		Repo:               repo,
		Documents:          docs,
		Ledger:             ledger,
		Scorer:             scorer,
		ChargeUnreadable:   chargeUnreadable,
		MaxCandidates:      50,
		MaxFileBytes:       1 << 20,
		ExtractConcurrency: 4,
	}
	return fixture{svc: svc, docs: docs, ledger: ledger, scorer: scorer, repo: repo}
}

func limitedPlan(jd, cv int) plans.Plan {
	return plans.Plan{ID: "free", Name: "Freemium", JDLimit: intPtr(jd), CVLimit: intPtr(cv)}
}

func unlimitedPlan() plans.Plan {
	return plans.Plan{ID: "enterprise", Name: plans.EnterpriseName}
}

func (f fixture) used(t *testing.T, userID string) (jd, cv int) {
	t.Helper()
	snap, err := f.ledger.GetUsage(context.Background(), userID)
	require.NoError(t, err)
	return snap.JD.Used, snap.CV.Used
}

func candidateFiles(texts ...string) []documents.File {
	files := make([]documents.File, 0, len(texts))
	for i, text := range texts {
		files = append(files, documents.TextFile(fmt.Sprintf("cv-%d.txt", i+1), text))
	}
	return files
}

func jdFile(text string) *documents.File {
	f := documents.TextFile("Backend Engineer.txt", text)
	return &f
}

func TestRankUploadsQuotaExceededCreatesNothing(t *testing.T) {
	f := newFixture(t, limitedPlan(5, 10), true)
	ctx := context.Background()
	_, err := f.ledger.CheckAndReserve(ctx, "u1", plans.KindCV, 8)
	require.NoError(t, err)

	released := 0
	_, err = f.svc.RankUploads(ctx, "u1", UploadRequest{
		JobDescription: jdFile("Go engineer"),
		Candidates:     candidateFiles("a", "b", "c", "d", "e"),
		Release:        func() { released++ },
	})

	var qe *usage.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 2, qe.Remaining)
	assert.Equal(t, 1, released)

	jdUsed, cvUsed := f.used(t, "u1")
	assert.Equal(t, 0, jdUsed, "jd reservation must be released")
	assert.Equal(t, 8, cvUsed)

	batches, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, batches)
	jds, err := f.docs.ListJDs(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, jds)
	f.scorer.AssertNotCalled(t, "Score", mock.Anything, mock.Anything, mock.Anything)
}

func TestRankUploadsOracleTimeoutStillCompletes(t *testing.T) {
	f := newFixture(t, limitedPlan(5, 10), true)
	ctx := context.Background()
	f.scorer.On("Score", mock.Anything, "Go engineer", "cv one").Return(scoring.Prediction{Verdict: scoring.VerdictNotRelevant, Confidence: 70}, nil)
	f.scorer.On("Score", mock.Anything, "Go engineer", "cv two").Return(scoring.Prediction{Verdict: scoring.VerdictRelevant, Confidence: 60}, nil)
	f.scorer.On("Score", mock.Anything, "Go engineer", "cv three").Return(scoring.Prediction{}, scoring.ErrTimeout)
	f.scorer.On("Score", mock.Anything, "Go engineer", "cv four").Return(scoring.Prediction{Verdict: scoring.VerdictRelevant, Confidence: 90}, nil)

	b, err := f.svc.RankUploads(ctx, "u1", UploadRequest{
		JobDescription: jdFile("Go engineer"),
		Candidates:     candidateFiles("cv one", "cv two", "cv three", "cv four"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, b.Status)
	assert.True(t, b.Charged)
	require.Len(t, b.Results, 4)
	assert.NotNil(t, b.CompletedAt)

	assert.Equal(t, "cv-4.txt", b.Results[0].FileName)
	assert.Equal(t, "cv-2.txt", b.Results[1].FileName)
	assert.Equal(t, "cv-1.txt", b.Results[2].FileName)
	assert.Equal(t, scoring.VerdictError, b.Results[3].Verdict)
	assert.Equal(t, "Scoring request timed out", b.Results[3].Error)
	assert.Equal(t, Summary{Relevant: 2, NotRelevant: 1, Errors: 1}, b.Summary())

	stored, err := f.svc.Get(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Len(t, stored.Results, 4)

	jd, err := f.docs.GetJD(ctx, "u1", b.JobDescriptionID)
	require.NoError(t, err)
	assert.Equal(t, 4, jd.RankedCVsCount)

	jdUsed, cvUsed := f.used(t, "u1")
	assert.Equal(t, 1, jdUsed)
	assert.Equal(t, 4, cvUsed)
	f.scorer.AssertExpectations(t)
}

func TestRankUploadsJDExtractionFailureReleasesBoth(t *testing.T) {
	f := newFixture(t, limitedPlan(5, 10), true)
	ctx := context.Background()
	released := 0

	_, err := f.svc.RankUploads(ctx, "u1", UploadRequest{
		JobDescription: jdFile("   \n\t "),
		Candidates:     candidateFiles("cv one", "cv two"),
		Release:        func() { released++ },
	})
	require.ErrorIs(t, err, extract.ErrExtractionFailed)
	assert.Equal(t, 1, released)

	jdUsed, cvUsed := f.used(t, "u1")
	assert.Equal(t, 0, jdUsed)
	assert.Equal(t, 0, cvUsed)

	batches, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, batches)
	f.scorer.AssertNotCalled(t, "Score", mock.Anything, mock.Anything, mock.Anything)
}

func TestRankUploadsUnreadableCandidateCharging(t *testing.T) {
	cases := []struct {
		name   string
		charge bool
		wantCV int
	}{
		{name: "charged", charge: true, wantCV: 3},
		{name: "released", charge: false, wantCV: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, limitedPlan(5, 10), tc.charge)
			f.scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).
				Return(scoring.Prediction{Verdict: scoring.VerdictRelevant, Confidence: 50}, nil)

			b, err := f.svc.RankUploads(context.Background(), "u1", UploadRequest{
				JobDescription: jdFile("Go engineer"),
				Candidates:     candidateFiles("cv one", "  ", "cv three"),
			})
			require.NoError(t, err)
			require.Len(t, b.Results, 3)
			assert.Equal(t, 3, b.TotalCandidates)

			last := b.Results[2]
			assert.Equal(t, scoring.VerdictError, last.Verdict)
			assert.Equal(t, "cv-2.txt", last.FileName)
			assert.Empty(t, last.CandidateID)
			assert.Equal(t, "Could not extract text from file", last.Error)

			_, cvUsed := f.used(t, "u1")
			assert.Equal(t, tc.wantCV, cvUsed)
			f.scorer.AssertNumberOfCalls(t, "Score", 2)

			jd, err := f.docs.GetJD(context.Background(), "u1", b.JobDescriptionID)
			require.NoError(t, err)
			assert.Equal(t, 2, jd.RankedCVsCount)
		})
	}
}

func TestRankUploadsResultPerCandidate(t *testing.T) {
	f := newFixture(t, unlimitedPlan(), true)
	f.scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return(scoring.Prediction{Verdict: scoring.VerdictNotRelevant, Confidence: 10}, nil)

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("candidate %d", i)
	}
	b, err := f.svc.RankUploads(context.Background(), "u1", UploadRequest{
		JobDescription: jdFile("Go engineer"),
		Candidates:     candidateFiles(texts...),
	})
	require.NoError(t, err)
	assert.Len(t, b.Results, 7)
	for _, r := range b.Results {
		assert.NotEmpty(t, r.CandidateID)
	}
}

// textColumnRepo rejects content a Postgres TEXT column would refuse.
type textColumnRepo struct {
	documents.Repo
}

func (r textColumnRepo) CreateCVs(ctx context.Context, cvs []documents.CV) error {
	for _, cv := range cvs {
		if !utf8.ValidString(cv.Content) || strings.ContainsRune(cv.Content, 0) {
			return errors.New("invalid byte sequence for encoding \"UTF8\"")
		}
	}
	return r.Repo.CreateCVs(ctx, cvs)
}

func TestRankUploadsSurvivesBinaryCandidateText(t *testing.T) {
	f := newFixture(t, limitedPlan(5, 10), true)
	f.docs.Repo = textColumnRepo{Repo: f.docs.Repo}
	f.scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return(scoring.Prediction{Verdict: scoring.VerdictRelevant, Confidence: 75}, nil)

	b, err := f.svc.RankUploads(context.Background(), "u1", UploadRequest{
		JobDescription: jdFile("Go engineer"),
		Candidates:     candidateFiles("Go developer", "caf\xe9 \x00 Go backend"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, b.Status)
	require.Len(t, b.Results, 2)
	for _, r := range b.Results {
		assert.Equal(t, scoring.VerdictRelevant, r.Verdict)
	}
	_, cvUsed := f.used(t, "u1")
	assert.Equal(t, 2, cvUsed)
}

func TestRankUploadsValidatesBeforeCharging(t *testing.T) {
	f := newFixture(t, limitedPlan(5, 10), true)
	ctx := context.Background()

	_, err := f.svc.RankUploads(ctx, "u1", UploadRequest{Candidates: candidateFiles("cv")})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.RankUploads(ctx, "u1", UploadRequest{JobDescription: jdFile("jd")})
	require.ErrorIs(t, err, ErrInvalidInput)

	bad := documents.File{Name: "photo.png", MimeType: "image/png", Size: 10}
	_, err = f.svc.RankUploads(ctx, "u1", UploadRequest{
		JobDescription: jdFile("jd"),
		Candidates:     []documents.File{bad},
	})
	require.ErrorIs(t, err, extract.ErrUnsupportedType)

	f.svc.MaxCandidates = 2
	_, err = f.svc.RankUploads(ctx, "u1", UploadRequest{
		JobDescription: jdFile("jd"),
		Candidates:     candidateFiles("a", "b", "c"),
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	// a misconfigured cap cannot lift the batch limit
	f.svc.MaxCandidates = 500
	many := make([]string, DefaultMaxCandidates+1)
	for i := range many {
		many[i] = "cv"
	}
	_, err = f.svc.RankUploads(ctx, "u1", UploadRequest{
		JobDescription: jdFile("jd"),
		Candidates:     candidateFiles(many...),
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	jdUsed, cvUsed := f.used(t, "u1")
	assert.Zero(t, jdUsed)
	assert.Zero(t, cvUsed)
}

func TestRankUploadsScorerPanicFailsBatch(t *testing.T) {
	f := newFixture(t, limitedPlan(5, 10), true)
	ctx := context.Background()
	f.scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).Panic("scorer exploded")

	b, err := f.svc.RankUploads(ctx, "u1", UploadRequest{
		JobDescription: jdFile("Go engineer"),
		Candidates:     candidateFiles("cv one", "cv two"),
	})
	require.ErrorIs(t, err, ErrBatchFailed)
	assert.Equal(t, StatusFailed, b.Status)
	assert.Contains(t, b.Error, "scoring panicked")

	stored, err := f.svc.Get(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, b.Error, stored.Error)

	_, cvUsed := f.used(t, "u1")
	assert.Equal(t, 2, cvUsed, "records exist, so credits stay charged")
}

func TestRankByReferenceIsFree(t *testing.T) {
	f := newFixture(t, limitedPlan(5, 10), true)
	ctx := context.Background()
	jd, err := f.docs.UploadJD(ctx, "u1", documents.TextFile("jd.txt", "Go engineer"), "Go engineer")
	require.NoError(t, err)
	up, err := f.docs.UploadCVs(ctx, "u1", candidateFiles("cv one", "cv two"))
	require.NoError(t, err)
	f.scorer.On("Score", mock.Anything, "Go engineer", mock.Anything).
		Return(scoring.Prediction{Verdict: scoring.VerdictRelevant, Confidence: 80}, nil)

	jdBefore, cvBefore := f.used(t, "u1")
	ids := []string{up.Items[0].ID, " " + up.Items[1].ID + " ", up.Items[0].ID}
	b, err := f.svc.RankByReference(ctx, "u1", jd.ID, ids)
	require.NoError(t, err)
	assert.False(t, b.Charged)
	assert.Equal(t, 2, b.TotalCandidates)
	assert.Len(t, b.Results, 2)

	jdAfter, cvAfter := f.used(t, "u1")
	assert.Equal(t, jdBefore, jdAfter)
	assert.Equal(t, cvBefore, cvAfter)
}

func TestRankByReferenceRejectsArchivedAndForeign(t *testing.T) {
	f := newFixture(t, limitedPlan(5, 10), true)
	ctx := context.Background()
	jd, err := f.docs.UploadJD(ctx, "u1", documents.TextFile("jd.txt", "Go engineer"), "")
	require.NoError(t, err)
	up, err := f.docs.UploadCVs(ctx, "u1", candidateFiles("cv one", "cv two"))
	require.NoError(t, err)
	require.NoError(t, f.docs.ArchiveCV(ctx, "u1", up.Items[1].ID))

	_, err = f.svc.RankByReference(ctx, "u1", jd.ID, []string{up.Items[0].ID, up.Items[1].ID})
	var missing *documents.MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{up.Items[1].ID}, missing.IDs)

	_, err = f.svc.RankByReference(ctx, "u2", jd.ID, []string{up.Items[0].ID})
	require.ErrorIs(t, err, documents.ErrNotFound)

	_, err = f.svc.RankByReference(ctx, "u1", jd.ID, []string{" ", ""})
	require.ErrorIs(t, err, ErrInvalidInput)

	batches, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, batches)
	f.scorer.AssertNotCalled(t, "Score", mock.Anything, mock.Anything, mock.Anything)
}

func TestArchiveHidesFromListButKeepsGet(t *testing.T) {
	f := newFixture(t, unlimitedPlan(), true)
	ctx := context.Background()
	f.scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return(scoring.Prediction{Verdict: scoring.VerdictRelevant, Confidence: 99}, nil)

	b, err := f.svc.RankUploads(ctx, "u1", UploadRequest{
		JobDescription: jdFile("Go engineer"),
		Candidates:     candidateFiles("cv one"),
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Archive(ctx, "u1", b.ID))

	batches, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, batches)

	got, err := f.svc.Get(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StateArchived, got.State)

	_, err = f.svc.Get(ctx, "u2", b.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Get(ctx, "u1", "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.svc.Archive(ctx, "u2", b.ID), ErrNotFound)
}

func TestFinishRequiresProcessing(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	b := Batch{ID: "b1", UserID: "u1", Status: StatusProcessing, State: documents.StateActive}
	require.NoError(t, repo.Create(ctx, b))
	require.NoError(t, repo.Complete(ctx, "u1", "b1", nil, b.CreatedAt))

	err := repo.Fail(ctx, "u1", "b1", "late failure", nil, b.CreatedAt)
	assert.True(t, errors.Is(err, ErrNotProcessing))
	assert.ErrorIs(t, repo.Complete(ctx, "u2", "b1", nil, b.CreatedAt), ErrNotFound)
}

func TestSanitizeError(t *testing.T) {
	long := make([]rune, 700)
	for i := range long {
		long[i] = 'x'
	}
	assert.Equal(t, "line one line two", sanitizeError(errors.New("line one\nline   two")))
	assert.Len(t, []rune(sanitizeError(errors.New(string(long)))), maxErrorLength)
	assert.Equal(t, "ranking failed", sanitizeError(nil))
}
