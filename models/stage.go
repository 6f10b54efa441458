package models

import "time"

// Stage names as they appear in run records, metrics and status labels.
const (
	StageIngest = "ingestion"
	StageBuild  = "build"
	StageDeploy = "deploy"
)

// StageResult is the tagged outcome of one collaborator attempt. A failed
// attempt carries its message in Err; Details holds stage-specific fields
// (duration, articles_processed, per-method outcomes).
type StageResult struct {
	OK      bool
	Details map[string]any
	Err     string
}

// StageFailure builds a failed result with the "error" field populated, so
// downstream consumers can rely on it being present.
func StageFailure(msg string) StageResult {
	return StageResult{
		Details: map[string]any{"error": msg},
		Err:     msg,
	}
}

// Float reads a numeric detail, tolerating the int/float64 split that comes
// from building Details in code vs. decoding them from JSON.
func (r StageResult) Float(key string) float64 {
	switch v := r.Details[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Int reads an integer detail with the same tolerance as Float.
func (r StageResult) Int(key string) int {
	switch v := r.Details[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// PipelineRunResult is scoped to a single orchestrator invocation.
type PipelineRunResult struct {
	RunUUID     string
	Trigger     RunTrigger
	StartedAt   time.Time
	Duration    time.Duration
	Stages      map[string]StageResult
	Success     bool
	FailedStage string
}
