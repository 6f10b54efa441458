package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"blogpipe/models"
)

// PostgresStore mirrors run records to a shared Postgres instance so runs
// from several hosts can be inspected in one place. It is optional and
// best-effort: the orchestrator tolerates every failure here.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pipeline_runs (
			id BIGSERIAL PRIMARY KEY,
			run_uuid TEXT NOT NULL,
			triggered_by TEXT,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			status TEXT,
			failed_stage TEXT,
			articles_found INTEGER DEFAULT 0,
			articles_processed INTEGER DEFAULT 0,
			ingest_seconds DOUBLE PRECISION DEFAULT 0,
			build_seconds DOUBLE PRECISION DEFAULT 0,
			deploy_seconds DOUBLE PRECISION DEFAULT 0,
			errors_count INTEGER DEFAULT 0
		)`)
	return err
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (run_uuid, triggered_by, started_at, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		run.RunUUID, run.Trigger, run.StartedAt, run.Status,
	).Scan(&run.ID)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.PipelineRun) error {
	query := `
		UPDATE pipeline_runs SET
			finished_at = $2, status = $3, failed_stage = $4,
			articles_found = $5, articles_processed = $6,
			ingest_seconds = $7, build_seconds = $8, deploy_seconds = $9, errors_count = $10
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.FailedStage,
		run.ArticlesFound, run.ArticlesProcessed,
		run.IngestSeconds, run.BuildSeconds, run.DeploySeconds, run.ErrorsCount,
	)
	return err
}
