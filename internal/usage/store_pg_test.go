package usage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cv-ranker/internal/plans"
)

func newMockStore(t *testing.T) (*pgStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPGStore(db), mock
}

func TestPGStoreEnsureProvisionsAccount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users \\(id, plan_id\\)").
		WithArgs("u1", "freemium").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, plan_id, jd_used, cv_used, updated_at FROM users").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "plan_id", "jd_used", "cv_used", "updated_at"}).
			AddRow("u1", "freemium", 0, 3, time.Now()))

	acct, err := store.Ensure(context.Background(), "u1", "freemium")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if acct.PlanID != "freemium" || acct.CVUsed != 3 {
		t.Fatalf("unexpected account %+v", acct)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreIncrementWithinCeiling(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE users SET cv_used = cv_used \\+ \\$2(.+)AND cv_used \\+ \\$2 <= \\$3").
		WithArgs("u1", 5, 10).
		WillReturnRows(sqlmock.NewRows([]string{"cv_used"}).AddRow(5))

	ceiling := 10
	used, ok, err := store.Increment(context.Background(), "u1", plans.KindCV, 5, &ceiling)
	if err != nil || !ok || used != 5 {
		t.Fatalf("Increment = (%d, %v, %v)", used, ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreIncrementRejectedReadsCurrent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE users SET cv_used").
		WithArgs("u1", 5, 10).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT cv_used FROM users WHERE id = \\$1").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"cv_used"}).AddRow(8))

	ceiling := 10
	used, ok, err := store.Increment(context.Background(), "u1", plans.KindCV, 5, &ceiling)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if ok || used != 8 {
		t.Fatalf("expected rejection with used=8, got used=%d ok=%v", used, ok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreIncrementUnlimitedHasNoCeiling(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE users SET jd_used = jd_used \\+ \\$2, updated_at = now\\(\\)\\s+WHERE id = \\$1\\s+RETURNING jd_used").
		WithArgs("u1", 100).
		WillReturnRows(sqlmock.NewRows([]string{"jd_used"}).AddRow(100))

	used, ok, err := store.Increment(context.Background(), "u1", plans.KindJD, 100, nil)
	if err != nil || !ok || used != 100 {
		t.Fatalf("Increment = (%d, %v, %v)", used, ok, err)
	}
}

func TestPGStoreDecrementFloors(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE users SET cv_used = GREATEST\\(cv_used - \\$2, 0\\)").
		WithArgs("u1", 4).
		WillReturnRows(sqlmock.NewRows([]string{"cv_used"}).AddRow(0))

	used, err := store.Decrement(context.Background(), "u1", plans.KindCV, 4)
	if err != nil || used != 0 {
		t.Fatalf("Decrement = (%d, %v)", used, err)
	}
}

func TestPGStoreRejectsUnknownKind(t *testing.T) {
	store, _ := newMockStore(t)
	if _, _, err := store.Increment(context.Background(), "u1", plans.Kind("x"), 1, nil); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
