package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type RunTrigger string

const (
	TriggerScheduled  RunTrigger = "scheduled"
	TriggerManual     RunTrigger = "manual"
	TriggerDeployOnly RunTrigger = "deploy_only"
)

// PipelineRun is the durable run-history record.
type PipelineRun struct {
	ID                int64      `json:"id" db:"id"`
	RunUUID           string     `json:"run_uuid" db:"run_uuid"`
	Trigger           RunTrigger `json:"trigger" db:"trigger"`
	StartedAt         time.Time  `json:"started_at" db:"started_at"`
	FinishedAt        *time.Time `json:"finished_at" db:"finished_at"`
	Status            RunStatus  `json:"status" db:"status"`
	FailedStage       string     `json:"failed_stage" db:"failed_stage"`
	ArticlesFound     int        `json:"articles_found" db:"articles_found"`
	ArticlesProcessed int        `json:"articles_processed" db:"articles_processed"`
	IngestSeconds     float64    `json:"ingest_seconds" db:"ingest_seconds"`
	BuildSeconds      float64    `json:"build_seconds" db:"build_seconds"`
	DeploySeconds     float64    `json:"deploy_seconds" db:"deploy_seconds"`
	ErrorsCount       int        `json:"errors_count" db:"errors_count"`
}
