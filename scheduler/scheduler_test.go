package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"blogpipe/config"
)

// fixedSchedule is always due at the same instant.
type fixedSchedule struct {
	at time.Time
}

func (f fixedSchedule) Next(t time.Time) time.Time { return f.at }

func TestRunPending_RunsDueJobsInOrder(t *testing.T) {
	now := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	var order []string
	mkJob := func(name string, due time.Time) *job {
		return &job{
			name:     name,
			schedule: fixedSchedule{at: later},
			next:     due,
			run: func(ctx context.Context) {
				order = append(order, name)
			},
		}
	}

	s := &Scheduler{now: func() time.Time { return now }}
	s.jobs = []*job{
		mkJob("first", now.Add(-time.Minute)),
		mkJob("not due", later),
		mkJob("second", now),
	}

	if err := s.runPending(context.Background(), now); err != nil {
		t.Fatalf("runPending: %v", err)
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected [first second], got %v", order)
	}

	// Due jobs must be rescheduled, the rest left alone.
	if !s.jobs[0].next.Equal(later) || !s.jobs[2].next.Equal(later) {
		t.Fatalf("due jobs not rescheduled: %v / %v", s.jobs[0].next, s.jobs[2].next)
	}
	if !s.jobs[1].next.Equal(later) {
		t.Fatalf("idle job rescheduled unexpectedly: %v", s.jobs[1].next)
	}
}

func TestRunPending_PanicBecomesError(t *testing.T) {
	now := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)

	ran := false
	s := &Scheduler{now: func() time.Time { return now }}
	s.jobs = []*job{
		{
			name:     "exploding",
			schedule: fixedSchedule{at: now.Add(time.Hour)},
			next:     now,
			run: func(ctx context.Context) {
				panic("database gone")
			},
		},
		{
			name:     "after",
			schedule: fixedSchedule{at: now.Add(time.Hour)},
			next:     now,
			run: func(ctx context.Context) {
				ran = true
			},
		},
	}

	err := s.runPending(context.Background(), now)
	if err == nil {
		t.Fatalf("expected error from panicking job")
	}
	if !strings.Contains(err.Error(), "exploding") || !strings.Contains(err.Error(), "database gone") {
		t.Fatalf("error must name the job and panic value, got %v", err)
	}
	if ran {
		t.Fatalf("no further jobs may run after a panic")
	}
}

func TestNew_SetsUpConfiguredJobs(t *testing.T) {
	cfg := config.Default()
	cfg.Content.IngestionSchedule = "0 */6 * * *"
	cfg.Build.DeploySchedule = []string{"08:00", "20:00"}

	s, err := New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// content pipeline + two deploy times + health check
	if len(s.jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(s.jobs))
	}
}

func TestNew_RejectsBadDeployTime(t *testing.T) {
	cfg := config.Default()
	cfg.Build.DeploySchedule = []string{"8am"}

	if _, err := New(cfg, nil, nil, nil); err == nil {
		t.Fatalf("expected error for malformed deploy time")
	}
}

func TestNew_RejectsBadCronExpression(t *testing.T) {
	cfg := config.Default()
	cfg.Content.IngestionSchedule = "every six hours"

	if _, err := New(cfg, nil, nil, nil); err == nil {
		t.Fatalf("expected error for malformed cron expression")
	}
}

func TestDailyAt_Next(t *testing.T) {
	d := dailyAt{hour: 8, minute: 30}

	before := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)
	if next := d.Next(before); !next.Equal(time.Date(2026, 8, 24, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("before fire time: got %v", next)
	}

	exactly := time.Date(2026, 8, 24, 8, 30, 0, 0, time.UTC)
	if next := d.Next(exactly); !next.Equal(time.Date(2026, 8, 25, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("at fire time must roll to tomorrow: got %v", next)
	}

	after := time.Date(2026, 8, 24, 22, 15, 0, 0, time.UTC)
	if next := d.Next(after); !next.Equal(time.Date(2026, 8, 25, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("after fire time: got %v", next)
	}
}
