package status

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"blogpipe/models"
)

// Manager owns the persisted AutomationStatus snapshot and the append-only
// performance log. It is the single writer for both; the orchestrator and
// scheduler share one instance per process.
type Manager struct {
	statusFile     string
	performanceLog string
	status         *models.AutomationStatus
	now            func() time.Time
}

func NewManager(statusFile, performanceLog string) *Manager {
	m := &Manager{
		statusFile:     statusFile,
		performanceLog: performanceLog,
		now:            time.Now,
	}
	m.load()
	return m
}

// load reads the persisted snapshot. A missing or corrupt file falls back to
// defaults; it never fails.
func (m *Manager) load() {
	m.status = models.NewAutomationStatus()

	data, err := os.ReadFile(m.statusFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: could not load status file: %v", err)
		}
		return
	}

	var loaded models.AutomationStatus
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Printf("Warning: status file %s is corrupt, starting fresh: %v", m.statusFile, err)
		return
	}
	m.status = &loaded
}

// Status returns the in-memory snapshot. Callers must not mutate it; all
// writes go through Update.
func (m *Manager) Status() models.AutomationStatus {
	return *m.status
}

// Update applies the mutation and immediately rewrites the whole snapshot.
// A persistence failure is logged but does not abort the in-progress run.
func (m *Manager) Update(mutate func(*models.AutomationStatus)) {
	mutate(m.status)
	m.save()
}

func (m *Manager) save() {
	if dir := filepath.Dir(m.statusFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Error: could not create status directory: %v", err)
			return
		}
	}

	data, err := json.MarshalIndent(m.status, "", "  ")
	if err != nil {
		log.Printf("Error: could not serialize status: %v", err)
		return
	}

	if err := os.WriteFile(m.statusFile, data, 0644); err != nil {
		log.Printf("Error: could not save status file: %v", err)
	}
}

// Record appends one metric entry to the performance log, one JSON object
// per line. Error messages survive embedded delimiters and newlines intact.
func (m *Manager) Record(metric models.PerformanceMetrics) {
	if dir := filepath.Dir(m.performanceLog); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Error: could not create performance log directory: %v", err)
			return
		}
	}

	line, err := json.Marshal(metric)
	if err != nil {
		log.Printf("Error: could not serialize performance metric: %v", err)
		return
	}

	f, err := os.OpenFile(m.performanceLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("Error: could not open performance log: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		log.Printf("Error: could not append performance metric: %v", err)
	}
}

const (
	staleAfterHours    = 24
	errorRateThreshold = 0.5
)

// Health derives the verdict from the accumulated status. Recomputed on
// every call, never cached.
func (m *Manager) Health() models.HealthVerdict {
	now := m.now()
	verdict := models.HealthVerdict{
		Healthy: true,
		Issues:  []string{},
	}

	var last *time.Time
	for _, op := range []*time.Time{m.status.LastIngestion, m.status.LastBuild, m.status.LastDeploy} {
		if op == nil {
			continue
		}
		if last == nil || op.After(*last) {
			last = op
		}
	}

	if last != nil {
		verdict.LastSuccessfulRun = last
		hoursSince := now.Sub(*last).Hours()
		verdict.UptimeHours = hoursSince

		if hoursSince > staleAfterHours {
			verdict.Healthy = false
			verdict.Issues = append(verdict.Issues,
				fmt.Sprintf("No successful operations in %.1f hours", hoursSince))
		}
	}

	if m.status.TotalRuns > 0 {
		errorRate := float64(m.status.ErrorCount) / float64(m.status.TotalRuns)
		if errorRate > errorRateThreshold {
			verdict.Healthy = false
			verdict.Issues = append(verdict.Issues,
				fmt.Sprintf("High error rate: %.1f%%", errorRate*100))
		}
	}

	// A recent error is surfaced as an issue without forcing unhealthy.
	if m.status.LastError != nil {
		hoursSinceError := now.Sub(*m.status.LastError).Hours()
		if hoursSinceError < 1 {
			verdict.Issues = append(verdict.Issues,
				fmt.Sprintf("Recent error %.1f hours ago", hoursSinceError))
		}
	}

	return verdict
}
