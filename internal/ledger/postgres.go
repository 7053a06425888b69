package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DB is the subset of *sql.DB the ledger needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	createRunSchemaQuery = `CREATE TABLE IF NOT EXISTS nativepack_runs (
		run_id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		artifact_id TEXT NOT NULL,
		version TEXT NOT NULL,
		state TEXT NOT NULL,
		descriptor_sha256 TEXT,
		error_message TEXT,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	)`

	createEndpointSchemaQuery = `CREATE TABLE IF NOT EXISTS nativepack_endpoint_outcomes (
		run_id TEXT NOT NULL REFERENCES nativepack_runs (run_id),
		endpoint TEXT NOT NULL,
		kind TEXT NOT NULL,
		state TEXT NOT NULL,
		error_message TEXT,
		recorded_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, endpoint)
	)`

	insertRunQuery = `INSERT INTO nativepack_runs (
		run_id,
		group_id,
		artifact_id,
		version,
		state,
		started_at
	) VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (run_id) DO NOTHING`

	finishRunQuery = `UPDATE nativepack_runs
	 SET state = $2, descriptor_sha256 = $3, error_message = $4, finished_at = $5
	 WHERE run_id = $1 AND finished_at IS NULL`

	upsertEndpointQuery = `INSERT INTO nativepack_endpoint_outcomes (
		run_id,
		endpoint,
		kind,
		state,
		error_message,
		recorded_at
	) VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (run_id, endpoint) DO UPDATE
	 SET state = EXCLUDED.state, error_message = EXCLUDED.error_message, recorded_at = EXCLUDED.recorded_at
	 WHERE nativepack_endpoint_outcomes.state NOT IN ('published', 'failed')`
)

// Postgres writes the ledger through database/sql with the pgx driver.
type Postgres struct {
	db DB
}

func NewPostgres(db DB) *Postgres {
	if db == nil {
		return nil
	}
	return &Postgres{db: db}
}

// EnsureSchema creates the ledger tables when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	for _, query := range []string{createRunSchemaQuery, createEndpointSchemaQuery} {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) StartRun(ctx context.Context, run RunRecord) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	if err := validateRun(run); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, insertRunQuery,
		strings.TrimSpace(run.RunID),
		run.GroupID,
		run.ArtifactID,
		run.Version,
		run.State,
		normalizeTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (p *Postgres) FinishRun(ctx context.Context, run RunRecord) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	if err := validateRun(run); err != nil {
		return err
	}
	finished := time.Time{}
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	res, err := p.db.ExecContext(ctx, finishRunQuery,
		strings.TrimSpace(run.RunID),
		run.State,
		nullIfEmpty(run.DescriptorSHA256),
		nullIfEmpty(run.Error),
		normalizeTime(finished),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) RecordEndpoint(ctx context.Context, record EndpointRecord) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	if err := validateEndpoint(record); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, upsertEndpointQuery,
		strings.TrimSpace(record.RunID),
		strings.TrimSpace(record.Endpoint),
		record.Kind,
		record.State,
		nullIfEmpty(record.Error),
		normalizeTime(record.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("record endpoint: %w", err)
	}
	return nil
}

func nullIfEmpty(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
