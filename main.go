package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blogpipe/config"
	"blogpipe/httputil"
	"blogpipe/logging"
	"blogpipe/models"
	"blogpipe/notify"
	"blogpipe/pipeline"
	"blogpipe/scheduler"
	"blogpipe/status"
	"blogpipe/storage"
	"blogpipe/verify"
)

var (
	configPath = flag.String("config", config.DefaultPath(), "Configuration file path (env: AUTOMATION_CONFIG)")
	force      = flag.Bool("force", false, "Force build/deploy even when disabled by configuration")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: blogpipe [flags] <command>

Commands:
  start         Run the scheduler loop (default)
  run-once      Run the content pipeline once, exit 0/1
  deploy        Run build + deploy only, exit 0/1
  status        Print current status and health
  health-check  Exit 0 when healthy, 1 otherwise
  init-config   Write the default configuration file

Flags may be given before or after the command:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cmd, runForce := parseCommand(flag.Args(), *force)

	// init-config needs no components
	if cmd == "init-config" {
		if err := config.WriteDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created configuration file: %s\n", *configPath)
		fmt.Println("Edit the configuration file to customize settings")
		return
	}

	cfg, warn := config.Load(*configPath)
	if cfg == nil {
		log.Fatalf("Invalid configuration: %v", warn)
	}

	logFile, err := logging.Setup(cfg.Logging.LogFile, cfg.Logging.MaxLogSize)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	if warn != nil {
		log.Printf("Warning: %v", warn)
	}

	statusMgr := status.NewManager(cfg.Monitoring.StatusFile, cfg.Monitoring.PerformanceLog)

	// status and health-check only read; skip the stores
	switch cmd {
	case "status":
		printStatus(cfg, statusMgr)
		return
	case "health-check":
		runHealthCheck(statusMgr)
		return
	}

	store, err := storage.NewSQLiteStore(cfg.Monitoring.DBPath)
	if err != nil {
		log.Fatalf("Failed to open run history database: %v", err)
	}
	defer store.Close()
	log.Printf("Run history database: %s", cfg.Monitoring.DBPath)

	clients := httputil.NewClients()
	notifier := notify.New(cfg.ErrorHandling.Notifications, clients.Webhook)

	orchestrator := pipeline.NewOrchestrator(cfg, statusMgr, store, notifier)

	ctx := context.Background()

	if cfg.Monitoring.PostgresURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Monitoring.PostgresURL)
		if err != nil {
			log.Printf("Warning: Postgres run mirror unavailable: %v", err)
		} else {
			defer pgStore.Close()
			orchestrator.SetPostgres(pgStore)
			log.Println("Postgres run mirror enabled")
		}
	}

	if cfg.Monitoring.SiteURL != "" {
		orchestrator.SetVerifier(verify.New(cfg.Monitoring.SiteURL, clients.Site))
	}

	switch cmd {
	case "run-once":
		log.Println("Running content pipeline once...")
		result := orchestrator.Run(ctx, runForce, models.TriggerManual)
		if result.Success {
			fmt.Println("Pipeline completed successfully")
			return
		}
		fmt.Printf("Pipeline failed at %s\n", result.FailedStage)
		os.Exit(1)

	case "deploy":
		log.Println("Running deployment only...")
		result := orchestrator.RunDeployOnly(ctx)
		if result.Success {
			fmt.Println("Deployment completed successfully")
			return
		}
		fmt.Printf("Deployment failed at %s\n", result.FailedStage)
		os.Exit(1)

	case "start":
		runScheduler(ctx, cfg, orchestrator, statusMgr, notifier)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

// parseCommand splits the positional command from any flags that follow it.
// Stdlib flag stops at the first positional argument, so
// "blogpipe run-once -force" needs a second parse over the remainder.
func parseCommand(args []string, force bool) (string, bool) {
	cmd := "start"
	if len(args) == 0 {
		return cmd, force
	}

	cmd = args[0]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cmdForce := fs.Bool("force", force, "Force build/deploy even when disabled by configuration")
	fs.Parse(args[1:])

	return cmd, *cmdForce
}

func runScheduler(ctx context.Context, cfg *config.Config, orchestrator *pipeline.Orchestrator, statusMgr *status.Manager, notifier *notify.Notifier) {
	sched, err := scheduler.New(cfg, orchestrator, statusMgr, notifier)
	if err != nil {
		log.Fatalf("Failed to set up scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	log.Println("Automation manager started - running scheduled jobs")
	notifier.Notify("System Started", "Automation manager has started successfully", notify.SeverityInfo)

	if err := sched.Run(ctx); err != nil {
		os.Exit(1)
	}

	notifier.Notify("System Stopped", "Automation manager has been stopped", notify.SeverityInfo)
}

func printStatus(cfg *config.Config, statusMgr *status.Manager) {
	st := statusMgr.Status()
	health := statusMgr.Health()

	fmt.Println("Automation System Status")
	fmt.Println("========================")

	if health.Healthy {
		fmt.Println("System Health:      Healthy")
	} else {
		fmt.Printf("System Health:      Issues: %s\n", strings.Join(health.Issues, "; "))
	}

	fmt.Printf("Last Ingestion:     %s\n", formatTime(st.LastIngestion))
	fmt.Printf("Last Build:         %s\n", formatTime(st.LastBuild))
	fmt.Printf("Last Deploy:        %s\n", formatTime(st.LastDeploy))
	fmt.Printf("Total Runs:         %d\n", st.TotalRuns)
	fmt.Printf("Successful Runs:    %d\n", st.SuccessfulRuns)
	fmt.Printf("Error Count:        %d\n", st.ErrorCount)
	fmt.Printf("Articles Processed: %d\n", st.ArticlesProcessed)

	current := st.CurrentOperation
	if current == "" {
		current = "Idle"
	}
	fmt.Printf("Current Operation:  %s\n", current)

	fmt.Println()
	fmt.Println("Configuration")
	fmt.Println("=============")
	fmt.Printf("Ingestion Schedule: %s\n", cfg.Content.IngestionSchedule)
	fmt.Printf("Auto Build:         %v\n", cfg.Build.AutoBuild)
	fmt.Printf("Auto Deploy:        %v\n", cfg.Build.AutoDeploy)
}

func runHealthCheck(statusMgr *status.Manager) {
	health := statusMgr.Health()
	if health.Healthy {
		fmt.Println("System is healthy")
		return
	}
	fmt.Printf("System issues detected: %s\n", strings.Join(health.Issues, "; "))
	os.Exit(1)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return t.Format("2006-01-02 15:04:05")
}
