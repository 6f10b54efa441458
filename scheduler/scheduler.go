package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"blogpipe/config"
	"blogpipe/models"
	"blogpipe/notify"
	"blogpipe/pipeline"
	"blogpipe/status"
)

// Scheduler is a cooperative single-threaded polling loop. Every tick it
// runs, synchronously and in declaration order, each job whose due time has
// passed; jobs therefore never overlap within one process. Cancellation
// takes effect after the current tick completes.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *pipeline.Orchestrator
	statusMgr    *status.Manager
	notifier     *notify.Notifier
	jobs         []*job
	tick         time.Duration
	now          func() time.Time
}

// schedule computes a job's next due time. Satisfied by cron.Schedule.
type schedule interface {
	Next(time.Time) time.Time
}

type job struct {
	name     string
	schedule schedule
	next     time.Time
	run      func(ctx context.Context)
}

func New(cfg *config.Config, orchestrator *pipeline.Orchestrator, statusMgr *status.Manager, notifier *notify.Notifier) (*Scheduler, error) {
	s := &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		statusMgr:    statusMgr,
		notifier:     notifier,
		tick:         cfg.TickInterval(),
		now:          time.Now,
	}

	if err := s.setupJobs(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) setupJobs() error {
	if expr := s.cfg.Content.IngestionSchedule; expr != "" {
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return fmt.Errorf("invalid ingestion schedule %q: %w", expr, err)
		}
		s.jobs = append(s.jobs, &job{
			name:     "content pipeline",
			schedule: sched,
			run: func(ctx context.Context) {
				s.orchestrator.Run(ctx, false, models.TriggerScheduled)
			},
		})
	}

	for _, at := range s.cfg.Build.DeploySchedule {
		t, err := time.Parse("15:04", at)
		if err != nil {
			return fmt.Errorf("invalid deploy time %q: %w", at, err)
		}
		s.jobs = append(s.jobs, &job{
			name:     "deploy at " + at,
			schedule: dailyAt{hour: t.Hour(), minute: t.Minute()},
			run: func(ctx context.Context) {
				s.orchestrator.RunDeployOnly(ctx)
			},
		})
	}

	s.jobs = append(s.jobs, &job{
		name:     "health check",
		schedule: cron.Every(s.cfg.HealthCheckInterval()),
		run: func(ctx context.Context) {
			s.healthCheck()
		},
	})

	return nil
}

// Run blocks until ctx is cancelled or a job panics. Jobs due in the same
// tick run sequentially; the loop blocks for each job's full duration.
func (s *Scheduler) Run(ctx context.Context) error {
	start := s.now()
	for _, j := range s.jobs {
		j.next = j.schedule.Next(start)
		log.Printf("Scheduled %s, first run at %s", j.name, j.next.Format(time.RFC3339))
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	log.Printf("Scheduler running with %s tick", s.tick)

	for {
		select {
		case <-ticker.C:
			if err := s.runPending(ctx, s.now()); err != nil {
				log.Printf("CRITICAL: scheduler error: %v", err)
				s.notifier.Notify("System Error",
					fmt.Sprintf("Scheduler encountered a critical error: %v", err),
					notify.SeverityCritical)
				return err
			}
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return nil
		}
	}
}

// runPending executes every job due at now. A panicking job is a
// scheduler-level fatal error.
func (s *Scheduler) runPending(ctx context.Context, now time.Time) (err error) {
	for _, j := range s.jobs {
		if j.next.After(now) {
			continue
		}

		if jerr := s.runJob(ctx, j); jerr != nil {
			return jerr
		}
		j.next = j.schedule.Next(s.now())
	}
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
	}()

	log.Printf("Running scheduled job: %s", j.name)
	j.run(ctx)
	return nil
}

func (s *Scheduler) healthCheck() {
	verdict := s.statusMgr.Health()

	if verdict.Healthy {
		log.Println("System health check: OK")
		return
	}

	issues := strings.Join(verdict.Issues, "; ")
	log.Printf("System health check: Issues detected - %s", issues)
	s.notifier.Notify("Health Check Warning",
		fmt.Sprintf("System health issues: %s", issues),
		notify.SeverityWarning)
}

// dailyAt fires once per day at a fixed wall-clock time.
type dailyAt struct {
	hour   int
	minute int
}

func (d dailyAt) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), d.hour, d.minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
