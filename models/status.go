package models

import "time"

// AutomationStatus is the persisted cross-run status snapshot. There is
// exactly one writer per process, so no locking is needed.
type AutomationStatus struct {
	LastIngestion     *time.Time `json:"last_ingestion"`
	LastBuild         *time.Time `json:"last_build"`
	LastDeploy        *time.Time `json:"last_deploy"`
	LastError         *time.Time `json:"last_error"`
	ErrorCount        int        `json:"error_count"`
	TotalRuns         int        `json:"total_runs"`
	SuccessfulRuns    int        `json:"successful_runs"`
	ArticlesProcessed int        `json:"articles_processed"`
	SystemHealthy     bool       `json:"system_healthy"`
	CurrentOperation  string     `json:"current_operation,omitempty"`
}

// NewAutomationStatus returns the defaults used when no snapshot exists.
func NewAutomationStatus() *AutomationStatus {
	return &AutomationStatus{SystemHealthy: true}
}

// PerformanceMetrics is one append-only performance log entry. Field order
// matches the log record layout: timestamp, operation, duration,
// articles_found, articles_processed, build_time, deploy_time, success,
// error_message.
type PerformanceMetrics struct {
	Timestamp         time.Time `json:"timestamp"`
	Operation         string    `json:"operation"`
	Duration          float64   `json:"duration"`
	ArticlesFound     int       `json:"articles_found"`
	ArticlesProcessed int       `json:"articles_processed"`
	BuildTime         float64   `json:"build_time"`
	DeployTime        float64   `json:"deploy_time"`
	Success           bool      `json:"success"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}

// HealthVerdict is derived from AutomationStatus on demand, never persisted.
type HealthVerdict struct {
	Healthy           bool       `json:"healthy"`
	Issues            []string   `json:"issues"`
	LastSuccessfulRun *time.Time `json:"last_successful_run"`
	UptimeHours       float64    `json:"uptime_hours"`
}
