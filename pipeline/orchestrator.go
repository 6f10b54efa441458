package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"blogpipe/config"
	"blogpipe/models"
	"blogpipe/notify"
	"blogpipe/status"
	"blogpipe/storage"
	"blogpipe/verify"
)

// Orchestrator sequences ingestion -> build -> deploy, wrapping every stage
// in the retry executor and keeping the status snapshot, performance log and
// run history in step. Exactly one run executes at a time; the scheduler's
// blocking design guarantees it.
type Orchestrator struct {
	cfg       *config.Config
	statusMgr *status.Manager
	store     *storage.SQLiteStore
	pgStore   *storage.PostgresStore
	notifier  *notify.Notifier
	retry     *Executor
	verifier  *verify.Verifier

	ingestor Stage
	builder  Stage
	deployer Stage

	// Postgres mirror rows get their own ids; keyed by run uuid.
	pgRunIDs map[string]int64

	now func() time.Time
}

func NewOrchestrator(cfg *config.Config, statusMgr *status.Manager, store *storage.SQLiteStore, notifier *notify.Notifier) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		statusMgr: statusMgr,
		store:     store,
		notifier:  notifier,
		retry:     NewExecutor(cfg.ErrorHandling.MaxRetries, cfg.RetryBaseDelay(), cfg.RetryMaxDelay()),
		ingestor:  NewIngestor(cfg),
		builder:   NewBuilder(cfg),
		deployer:  NewDeployer(cfg),
		pgRunIDs:  map[string]int64{},
		now:       time.Now,
	}
}

// SetPostgres enables the best-effort run mirror.
func (o *Orchestrator) SetPostgres(pg *storage.PostgresStore) {
	o.pgStore = pg
}

// SetVerifier enables post-deploy site verification.
func (o *Orchestrator) SetVerifier(v *verify.Verifier) {
	o.verifier = v
}

// Run executes the full pipeline once. force overrides the auto_build /
// auto_deploy gates. Returns the per-run result; Success reflects the
// terminal state.
func (o *Orchestrator) Run(ctx context.Context, force bool, trigger models.RunTrigger) *models.PipelineRunResult {
	start := o.now()
	result := &models.PipelineRunResult{
		RunUUID:   uuid.NewString(),
		Trigger:   trigger,
		StartedAt: start,
		Stages:    map[string]models.StageResult{},
	}

	log.Println("=== Starting Content Pipeline ===")

	o.statusMgr.Update(func(s *models.AutomationStatus) {
		s.TotalRuns++
		s.CurrentOperation = models.StageIngest
	})

	run := o.createRun(ctx, result)

	// Ingestion
	ingestRes := o.retry.Execute(ctx, "Content Ingestion", o.ingestor.Run)
	result.Stages[models.StageIngest] = ingestRes
	o.logStage(run, models.StageIngest, ingestRes)
	run.IngestSeconds = ingestRes.Float("duration")

	if !ingestRes.OK {
		o.failRun(ctx, run, result, models.StageIngest, ingestRes)
		return result
	}

	articles := ingestRes.Int("articles_processed")
	run.ArticlesFound = ingestRes.Int("articles_found")
	run.ArticlesProcessed = articles

	o.statusMgr.Update(func(s *models.AutomationStatus) {
		now := o.now()
		s.LastIngestion = &now
		s.ArticlesProcessed += articles
	})

	// Build
	if o.cfg.Build.AutoBuild || force {
		o.statusMgr.Update(func(s *models.AutomationStatus) {
			s.CurrentOperation = models.StageBuild
		})

		buildRes := o.retry.Execute(ctx, "Site Build", o.builder.Run)
		result.Stages[models.StageBuild] = buildRes
		o.logStage(run, models.StageBuild, buildRes)
		run.BuildSeconds = buildRes.Float("duration")

		if !buildRes.OK {
			o.failRun(ctx, run, result, models.StageBuild, buildRes)
			return result
		}

		o.statusMgr.Update(func(s *models.AutomationStatus) {
			now := o.now()
			s.LastBuild = &now
		})
	}

	// Deploy
	if o.cfg.Build.AutoDeploy || force {
		o.statusMgr.Update(func(s *models.AutomationStatus) {
			s.CurrentOperation = models.StageDeploy
		})

		deployRes := o.retry.Execute(ctx, "Site Deployment", o.deployer.Run)
		result.Stages[models.StageDeploy] = deployRes
		o.logStage(run, models.StageDeploy, deployRes)
		run.DeploySeconds = deployRes.Float("duration")

		if !deployRes.OK {
			o.failRun(ctx, run, result, models.StageDeploy, deployRes)
			return result
		}

		o.statusMgr.Update(func(s *models.AutomationStatus) {
			now := o.now()
			s.LastDeploy = &now
		})
	}

	// Terminal success
	result.Success = true
	result.Duration = o.now().Sub(start)
	duration := result.Duration.Seconds()

	log.Printf("=== Content Pipeline Completed Successfully in %.2fs ===", duration)

	o.statusMgr.Update(func(s *models.AutomationStatus) {
		s.SuccessfulRuns++
		s.SystemHealthy = true
		s.CurrentOperation = ""
	})

	o.statusMgr.Record(models.PerformanceMetrics{
		Timestamp:         o.now(),
		Operation:         "Full Pipeline",
		Duration:          duration,
		ArticlesFound:     run.ArticlesFound,
		ArticlesProcessed: articles,
		BuildTime:         run.BuildSeconds,
		DeployTime:        run.DeploySeconds,
		Success:           true,
	})

	run.Status = models.RunStatusCompleted
	o.finalizeRun(ctx, run)

	o.notifier.Notify("Pipeline Success",
		fmt.Sprintf("Content pipeline completed successfully. Processed %d articles.", articles),
		notify.SeverityInfo)

	o.verifyDeploy(ctx)

	return result
}

// RunDeployOnly executes build then deploy, skipping ingestion and the
// run-counter bookkeeping. Used by the deploy CLI command and fixed-time
// deploy jobs.
func (o *Orchestrator) RunDeployOnly(ctx context.Context) *models.PipelineRunResult {
	start := o.now()
	result := &models.PipelineRunResult{
		RunUUID:   uuid.NewString(),
		Trigger:   models.TriggerDeployOnly,
		StartedAt: start,
		Stages:    map[string]models.StageResult{},
	}

	log.Println("=== Running Deploy Only ===")

	run := o.createRun(ctx, result)

	buildRes := o.retry.Execute(ctx, "Site Build", o.builder.Run)
	result.Stages[models.StageBuild] = buildRes
	o.logStage(run, models.StageBuild, buildRes)
	run.BuildSeconds = buildRes.Float("duration")

	if !buildRes.OK {
		log.Println("Build failed, skipping deployment")
		result.FailedStage = models.StageBuild
		run.Status = models.RunStatusFailed
		run.FailedStage = models.StageBuild
		run.ErrorsCount++
		o.finalizeRun(ctx, run)
		return result
	}

	deployRes := o.retry.Execute(ctx, "Site Deployment", o.deployer.Run)
	result.Stages[models.StageDeploy] = deployRes
	o.logStage(run, models.StageDeploy, deployRes)
	run.DeploySeconds = deployRes.Float("duration")

	if !deployRes.OK {
		result.FailedStage = models.StageDeploy
		run.Status = models.RunStatusFailed
		run.FailedStage = models.StageDeploy
		run.ErrorsCount++
		o.finalizeRun(ctx, run)
		return result
	}

	o.statusMgr.Update(func(s *models.AutomationStatus) {
		now := o.now()
		s.LastBuild = &now
		s.LastDeploy = &now
	})

	result.Success = true
	result.Duration = o.now().Sub(start)
	run.Status = models.RunStatusCompleted
	o.finalizeRun(ctx, run)

	log.Println("=== Deploy Only Completed Successfully ===")

	o.verifyDeploy(ctx)

	return result
}

// failRun records a terminal stage failure: status bookkeeping, failure
// metric, run-history finalization and notification. The remaining stages
// are never attempted.
func (o *Orchestrator) failRun(ctx context.Context, run *models.PipelineRun, result *models.PipelineRunResult, stage string, stageRes models.StageResult) {
	result.FailedStage = stage
	result.Duration = o.now().Sub(result.StartedAt)

	errMsg := fmt.Sprintf("%s failed: %s", stage, stageRes.Err)
	log.Printf("PIPELINE ERROR: %s", errMsg)

	o.statusMgr.Update(func(s *models.AutomationStatus) {
		now := o.now()
		s.LastError = &now
		s.ErrorCount++
		s.SystemHealthy = false
		s.CurrentOperation = ""
	})

	o.statusMgr.Record(models.PerformanceMetrics{
		Timestamp:    o.now(),
		Operation:    "Pipeline Error",
		Duration:     result.Duration.Seconds(),
		Success:      false,
		ErrorMessage: errMsg,
	})

	run.Status = models.RunStatusFailed
	run.FailedStage = stage
	run.ErrorsCount++
	o.finalizeRun(ctx, run)

	o.notifier.Notify("Pipeline Error", errMsg, notify.SeverityError)
}

func (o *Orchestrator) createRun(ctx context.Context, result *models.PipelineRunResult) *models.PipelineRun {
	run := &models.PipelineRun{
		RunUUID:   result.RunUUID,
		Trigger:   result.Trigger,
		StartedAt: result.StartedAt,
		Status:    models.RunStatusRunning,
	}

	if o.store != nil {
		id, err := o.store.CreateRun(run)
		if err != nil {
			log.Printf("Warning: could not create run record: %v", err)
		} else {
			run.ID = id
		}
	}

	if o.pgStore != nil {
		pgRun := *run
		pgRun.ID = 0
		if err := o.pgStore.CreateRun(ctx, &pgRun); err != nil {
			log.Printf("Warning: could not mirror run to Postgres: %v", err)
		} else {
			o.pgRunIDs[run.RunUUID] = pgRun.ID
		}
	}

	return run
}

func (o *Orchestrator) finalizeRun(ctx context.Context, run *models.PipelineRun) {
	now := o.now()
	run.FinishedAt = &now

	if o.store != nil && run.ID != 0 {
		if err := o.store.UpdateRun(run); err != nil {
			log.Printf("Warning: could not finalize run record: %v", err)
		}
	}

	if o.pgStore != nil {
		if pgID, ok := o.pgRunIDs[run.RunUUID]; ok {
			pgRun := *run
			pgRun.ID = pgID
			if err := o.pgStore.UpdateRun(ctx, &pgRun); err != nil {
				log.Printf("Warning: could not finalize Postgres run mirror: %v", err)
			}
			delete(o.pgRunIDs, run.RunUUID)
		}
	}
}

func (o *Orchestrator) logStage(run *models.PipelineRun, stage string, res models.StageResult) {
	if o.store == nil || run.ID == 0 {
		return
	}

	level := models.LogLevelInfo
	message := fmt.Sprintf("%s completed in %.2fs", stage, res.Float("duration"))
	if !res.OK {
		level = models.LogLevelError
		message = fmt.Sprintf("%s failed: %s", stage, res.Err)
	}

	if err := o.store.Log(&run.ID, level, message, stage); err != nil {
		log.Printf("Warning: could not record run log: %v", err)
	}
}

func (o *Orchestrator) verifyDeploy(ctx context.Context) {
	if o.verifier == nil {
		return
	}

	report, err := o.verifier.Check(ctx)
	if err != nil {
		log.Printf("Warning: post-deploy verification failed: %v", err)
		return
	}
	log.Printf("Post-deploy verification: status=%d title=%q article_links=%d",
		report.StatusCode, report.Title, report.ArticleLinks)
}
