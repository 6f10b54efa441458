package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"blogpipe/models"
)

// SQLiteStore keeps the durable run history: one record per pipeline run
// plus run-scoped log lines.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id INTEGER PRIMARY KEY,
		run_uuid TEXT NOT NULL,
		triggered_by TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		failed_stage TEXT,
		articles_found INTEGER DEFAULT 0,
		articles_processed INTEGER DEFAULT 0,
		ingest_seconds REAL DEFAULT 0,
		build_seconds REAL DEFAULT 0,
		deploy_seconds REAL DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		stage TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON pipeline_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_uuid ON pipeline_runs(run_uuid);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON run_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.PipelineRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO pipeline_runs (run_uuid, triggered_by, started_at, status,
			articles_found, articles_processed, ingest_seconds, build_seconds, deploy_seconds, errors_count)
		VALUES (?, ?, ?, ?, 0, 0, 0, 0, 0, 0)`,
		run.RunUUID, run.Trigger, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.PipelineRun) error {
	_, err := s.db.Exec(`
		UPDATE pipeline_runs SET finished_at = ?, status = ?, failed_stage = ?,
			articles_found = ?, articles_processed = ?,
			ingest_seconds = ?, build_seconds = ?, deploy_seconds = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.FailedStage,
		run.ArticlesFound, run.ArticlesProcessed,
		run.IngestSeconds, run.BuildSeconds, run.DeploySeconds, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.PipelineRun, error) {
	row := s.db.QueryRow(`
		SELECT id, run_uuid, triggered_by, started_at, finished_at, status, COALESCE(failed_stage, ''),
			articles_found, articles_processed, ingest_seconds, build_seconds, deploy_seconds, errors_count
		FROM pipeline_runs WHERE id = ?`, id)

	var run models.PipelineRun
	err := row.Scan(&run.ID, &run.RunUUID, &run.Trigger, &run.StartedAt, &run.FinishedAt,
		&run.Status, &run.FailedStage, &run.ArticlesFound, &run.ArticlesProcessed,
		&run.IngestSeconds, &run.BuildSeconds, &run.DeploySeconds, &run.ErrorsCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStore) GetRecentRuns(limit int) ([]models.PipelineRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_uuid, triggered_by, started_at, finished_at, status, COALESCE(failed_stage, ''),
			articles_found, articles_processed, ingest_seconds, build_seconds, deploy_seconds, errors_count
		FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.PipelineRun
	for rows.Next() {
		var run models.PipelineRun
		if err := rows.Scan(&run.ID, &run.RunUUID, &run.Trigger, &run.StartedAt, &run.FinishedAt,
			&run.Status, &run.FailedStage, &run.ArticlesFound, &run.ArticlesProcessed,
			&run.IngestSeconds, &run.BuildSeconds, &run.DeploySeconds, &run.ErrorsCount); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, stage string) error {
	_, err := s.db.Exec(`
		INSERT INTO run_logs (run_id, timestamp, level, message, stage)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, stage)
	return err
}

func (s *SQLiteStore) GetRunLogs(runID int64) ([]models.RunLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, COALESCE(stage, '')
		FROM run_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.RunLog
	for rows.Next() {
		var entry models.RunLog
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Timestamp, &entry.Level,
			&entry.Message, &entry.Stage); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
