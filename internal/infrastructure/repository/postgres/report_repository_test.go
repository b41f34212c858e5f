package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/corpustools/dedup/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ReportRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ReportRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSaveInsertsReportRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	report := &domain.DedupReport{
		RunID:       "run-1",
		StartedAt:   time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		DocumentsIn: 100,
		Survivors:   80,
		Errors:      1,
	}
	report.ExactDuplicatesRemoved = 15
	report.SemanticDuplicatesRemoved = 5
	report.FinalizeRatio()

	mock.ExpectExec("INSERT INTO dedup_runs").
		WithArgs("run-1", report.StartedAt, int64(100), int64(80), int64(1), 0.2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), report); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReturnsRunNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT report").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetDecodesStoredReport(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	stored := &domain.DedupReport{RunID: "run-2", DocumentsIn: 5, Survivors: 3, Threshold: 0.85}
	payload, err := json.Marshal(stored)
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery("SELECT report").
		WithArgs("run-2").
		WillReturnRows(sqlmock.NewRows([]string{"report"}).AddRow(payload))

	got, err := repo.Get(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RunID != "run-2" || got.Survivors != 3 || got.Threshold != 0.85 {
		t.Errorf("got = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentReturnsNewestFirst(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	first, _ := json.Marshal(&domain.DedupReport{RunID: "newer"})
	second, _ := json.Marshal(&domain.DedupReport{RunID: "older"})

	mock.ExpectQuery("SELECT report").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"report"}).AddRow(first).AddRow(second))

	reports, err := repo.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(reports) != 2 || reports[0].RunID != "newer" {
		t.Errorf("reports = %+v", reports)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaCommits(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(int64(2026082901)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS dedup_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
