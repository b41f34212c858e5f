// Package postgres persists run reports so operators can audit past
// deduplication runs. The store is optional; an empty DSN disables it.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/corpustools/dedup/internal/core/domain"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across CLI/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS dedup_runs (
	run_id TEXT PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	documents_in BIGINT NOT NULL,
	survivors BIGINT NOT NULL,
	errors BIGINT NOT NULL,
	deduplication_ratio DOUBLE PRECISION NOT NULL,
	report JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dedup_runs_started_at ON dedup_runs(started_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) Save(ctx context.Context, report *domain.DedupReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO dedup_runs (run_id, started_at, documents_in, survivors, errors, deduplication_ratio, report)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (run_id) DO UPDATE SET
	documents_in = EXCLUDED.documents_in,
	survivors = EXCLUDED.survivors,
	errors = EXCLUDED.errors,
	deduplication_ratio = EXCLUDED.deduplication_ratio,
	report = EXCLUDED.report
`,
		report.RunID, report.StartedAt, report.DocumentsIn, report.Survivors,
		report.Errors, report.DeduplicationRatio, payload,
	)
	if err != nil {
		return fmt.Errorf("insert run report: %w", err)
	}
	return nil
}

func (r *ReportRepository) Get(ctx context.Context, runID string) (*domain.DedupReport, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT report
FROM dedup_runs
WHERE run_id = $1
`, runID)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "load run report", fmt.Errorf("run_id %s", runID))
		}
		return nil, fmt.Errorf("scan run report: %w", err)
	}

	var report domain.DedupReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("unmarshal run report: %w", err)
	}
	return &report, nil
}

// ListRecent returns the newest runs first, capped at limit.
func (r *ReportRepository) ListRecent(ctx context.Context, limit int) ([]*domain.DedupReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT report
FROM dedup_runs
ORDER BY started_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query run reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.DedupReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run report: %w", err)
		}
		var report domain.DedupReport
		if err := json.Unmarshal(payload, &report); err != nil {
			return nil, fmt.Errorf("unmarshal run report: %w", err)
		}
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run reports: %w", err)
	}
	return reports, nil
}
