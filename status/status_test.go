package status

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"blogpipe/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	return NewManager(filepath.Join(dir, "status.json"), filepath.Join(dir, "performance.log"))
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	m := newTestManager(t)

	st := m.Status()
	if !st.SystemHealthy {
		t.Fatalf("expected default status to be healthy")
	}
	if st.TotalRuns != 0 || st.ErrorCount != 0 {
		t.Fatalf("expected zero counters, got %+v", st)
	}
	if st.LastIngestion != nil {
		t.Fatalf("expected nil last_ingestion on fresh status")
	}
}

func TestLoad_CorruptFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	statusFile := filepath.Join(dir, "status.json")
	if err := os.WriteFile(statusFile, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	m := NewManager(statusFile, filepath.Join(dir, "performance.log"))
	st := m.Status()
	if !st.SystemHealthy || st.TotalRuns != 0 {
		t.Fatalf("expected defaults on corrupt file, got %+v", st)
	}
}

func TestUpdate_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	statusFile := filepath.Join(dir, "status.json")
	perfLog := filepath.Join(dir, "performance.log")

	m := NewManager(statusFile, perfLog)
	ingested := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)

	m.Update(func(s *models.AutomationStatus) {
		s.TotalRuns = 7
		s.SuccessfulRuns = 5
		s.ErrorCount = 2
		s.ArticlesProcessed = 120
		s.LastIngestion = &ingested
		s.SystemHealthy = false
	})

	// A fresh instance must restore everything from disk.
	reloaded := NewManager(statusFile, perfLog).Status()
	if reloaded.TotalRuns != 7 || reloaded.SuccessfulRuns != 5 || reloaded.ErrorCount != 2 {
		t.Fatalf("counters not restored: %+v", reloaded)
	}
	if reloaded.ArticlesProcessed != 120 {
		t.Fatalf("articles_processed not restored: %d", reloaded.ArticlesProcessed)
	}
	if reloaded.SystemHealthy {
		t.Fatalf("system_healthy not restored")
	}
	if reloaded.LastIngestion == nil || !reloaded.LastIngestion.Equal(ingested) {
		t.Fatalf("last_ingestion not restored: %v", reloaded.LastIngestion)
	}
}

func TestRecord_AppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	perfLog := filepath.Join(dir, "performance.log")
	m := NewManager(filepath.Join(dir, "status.json"), perfLog)

	m.Record(models.PerformanceMetrics{
		Timestamp: time.Now(),
		Operation: "Full Pipeline",
		Duration:  12.34,
		Success:   true,
	})
	m.Record(models.PerformanceMetrics{
		Timestamp:    time.Now(),
		Operation:    "Pipeline Error",
		Success:      false,
		ErrorMessage: "exec failed: exit status 1, stderr: a,b\nc",
	})

	f, err := os.Open(perfLog)
	if err != nil {
		t.Fatalf("open performance log: %v", err)
	}
	defer f.Close()

	var entries []models.PerformanceMetrics
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry models.PerformanceMetrics
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		entries = append(entries, entry)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Operation != "Full Pipeline" || !entries[0].Success {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	// Embedded commas and newlines must survive serialization intact.
	if entries[1].ErrorMessage != "exec failed: exit status 1, stderr: a,b\nc" {
		t.Fatalf("error message mangled: %q", entries[1].ErrorMessage)
	}
}

func TestHealth_FreshStatusIsHealthy(t *testing.T) {
	m := newTestManager(t)

	verdict := m.Health()
	if !verdict.Healthy {
		t.Fatalf("expected fresh status healthy, issues: %v", verdict.Issues)
	}
	if verdict.LastSuccessfulRun != nil {
		t.Fatalf("expected no last successful run")
	}
	if verdict.UptimeHours != 0 {
		t.Fatalf("expected zero uptime, got %f", verdict.UptimeHours)
	}
}

func TestHealth_StalenessBoundary(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		since   time.Duration
		healthy bool
	}{
		{"exactly 24h", 24 * time.Hour, true},
		{"just over 24h", 24*time.Hour + 360*time.Millisecond, false},
		{"1h", time.Hour, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(t)
			m.now = func() time.Time { return now }
			last := now.Add(-tc.since)
			m.Update(func(s *models.AutomationStatus) {
				s.LastDeploy = &last
			})

			verdict := m.Health()
			if verdict.Healthy != tc.healthy {
				t.Fatalf("since=%v: expected healthy=%v, issues: %v", tc.since, tc.healthy, verdict.Issues)
			}
		})
	}
}

func TestHealth_ErrorRateBoundary(t *testing.T) {
	cases := []struct {
		name    string
		errors  int
		runs    int
		healthy bool
	}{
		{"exactly half", 5, 10, true},
		{"just over half", 51, 100, false},
		{"no runs", 0, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(t)
			now := time.Now()
			m.Update(func(s *models.AutomationStatus) {
				s.ErrorCount = tc.errors
				s.TotalRuns = tc.runs
				s.LastDeploy = &now
			})

			verdict := m.Health()
			if verdict.Healthy != tc.healthy {
				t.Fatalf("%d/%d: expected healthy=%v, issues: %v", tc.errors, tc.runs, tc.healthy, verdict.Issues)
			}
		})
	}
}

func TestHealth_RecentErrorFlagsWithoutUnhealthy(t *testing.T) {
	m := newTestManager(t)
	now := time.Now()
	recent := now.Add(-10 * time.Minute)
	m.Update(func(s *models.AutomationStatus) {
		s.LastDeploy = &now
		s.LastError = &recent
	})

	verdict := m.Health()
	if !verdict.Healthy {
		t.Fatalf("recent error alone must not mark unhealthy, issues: %v", verdict.Issues)
	}
	if len(verdict.Issues) != 1 {
		t.Fatalf("expected recent-error issue flagged, got %v", verdict.Issues)
	}
}

func TestHealth_MostRecentOperationWins(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ingest := now.Add(-30 * time.Hour)
	build := now.Add(-2 * time.Hour)
	m.Update(func(s *models.AutomationStatus) {
		s.LastIngestion = &ingest
		s.LastBuild = &build
	})

	verdict := m.Health()
	if !verdict.Healthy {
		t.Fatalf("expected healthy with 2h-old build, issues: %v", verdict.Issues)
	}
	if verdict.LastSuccessfulRun == nil || !verdict.LastSuccessfulRun.Equal(build) {
		t.Fatalf("expected last successful run = last build, got %v", verdict.LastSuccessfulRun)
	}
}

func TestHealth_Idempotent(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale := now.Add(-48 * time.Hour)
	m.Update(func(s *models.AutomationStatus) {
		s.LastDeploy = &stale
		s.ErrorCount = 8
		s.TotalRuns = 10
	})

	first := m.Health()
	second := m.Health()

	if first.Healthy != second.Healthy || first.UptimeHours != second.UptimeHours {
		t.Fatalf("verdicts differ: %+v vs %+v", first, second)
	}
	if len(first.Issues) != len(second.Issues) {
		t.Fatalf("issue lists differ: %v vs %v", first.Issues, second.Issues)
	}
	for i := range first.Issues {
		if first.Issues[i] != second.Issues[i] {
			t.Fatalf("issue %d differs: %q vs %q", i, first.Issues[i], second.Issues[i])
		}
	}
}
