package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonesrussell/quiz-funnel/internal/domain"
	"github.com/jonesrussell/quiz-funnel/internal/storage"
)

const testDeviceHash = "a1b2c3"

func TestSubmissionRepository_GetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT submitted_at, disqualification_reason").
		WithArgs(testDeviceHash).
		WillReturnRows(sqlmock.NewRows([]string{"submitted_at", "disqualification_reason"}))

	repo := storage.NewSubmissionRepository(db)
	rec, err := repo.Get(context.Background(), testDeviceHash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSubmissionRepository_GetExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	submitted := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"submitted_at", "disqualification_reason"}).
		AddRow(submitted, "frequencia")

	mock.ExpectQuery("SELECT submitted_at, disqualification_reason").
		WithArgs(testDeviceHash).
		WillReturnRows(rows)

	repo := storage.NewSubmissionRepository(db)
	rec, err := repo.Get(context.Background(), testDeviceHash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if !rec.SubmittedAt.Equal(submitted) {
		t.Errorf("submitted_at: got %v, want %v", rec.SubmittedAt, submitted)
	}
	if rec.DisqualificationReason != "frequencia" {
		t.Errorf("reason: got %q, want %q", rec.DisqualificationReason, "frequencia")
	}
}

func TestSubmissionRepository_PutUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	rec := domain.SubmissionRecord{SubmittedAt: time.Now()}

	mock.ExpectExec("INSERT INTO submissions").
		WithArgs(testDeviceHash, rec.SubmittedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := storage.NewSubmissionRepository(db)
	if err := repo.Put(context.Background(), testDeviceHash, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSubmissionRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec("DELETE FROM submissions").
		WithArgs(testDeviceHash).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := storage.NewSubmissionRepository(db)
	if err := repo.Delete(context.Background(), testDeviceHash); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	rec := domain.SubmissionRecord{
		SubmittedAt:            time.Now(),
		DisqualificationReason: "faturamento",
	}

	if err := store.Put(ctx, testDeviceHash, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, testDeviceHash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.DisqualificationReason != "faturamento" {
		t.Fatalf("got %+v, want stored record", got)
	}

	if err := store.Delete(ctx, testDeviceHash); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Get(ctx, testDeviceHash); got != nil {
		t.Fatal("record survived deletion")
	}
}
