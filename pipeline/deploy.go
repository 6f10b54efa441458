package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"blogpipe/config"
	"blogpipe/models"
)

// Deployer runs every enabled deploy method. Any method failing fails the
// whole stage.
type Deployer struct {
	methods       config.DeployMethods
	workdir       string
	publishDir    string
	backupDir     string
	retentionDays int
	timeout       time.Duration
}

func NewDeployer(cfg *config.Config) *Deployer {
	return &Deployer{
		methods:       cfg.Build.DeployMethods,
		workdir:       cfg.Environment.WorkingDirectory,
		publishDir:    cfg.Build.PublishDir,
		backupDir:     cfg.Maintenance.BackupLocation,
		retentionDays: cfg.Maintenance.BackupRetentionDays,
		timeout:       cfg.StageTimeout(),
	}
}

func (d *Deployer) Name() string { return models.StageDeploy }

func (d *Deployer) Run(ctx context.Context) models.StageResult {
	start := time.Now()
	log.Println("Starting site deployment...")

	outcomes := map[string]any{}
	var failures []string

	if d.methods.Command != "" {
		if err := d.runDeployCommand(ctx); err != nil {
			outcomes["command"] = err.Error()
			failures = append(failures, fmt.Sprintf("command: %v", err))
		} else {
			outcomes["command"] = "ok"
		}
	}

	if d.methods.LocalBackup {
		backupPath, err := d.createBackup(ctx)
		if err != nil {
			outcomes["backup"] = err.Error()
			failures = append(failures, fmt.Sprintf("backup: %v", err))
		} else {
			outcomes["backup"] = backupPath
			d.cleanupOldBackups()
		}
	}

	// No methods enabled is a no-op success, not a failure. The default
	// config ships with an empty method set.
	if len(outcomes) == 0 {
		log.Println("No deploy methods configured, nothing to deploy")
	}

	duration := time.Since(start).Seconds()

	if len(failures) > 0 {
		log.Printf("Some deployment methods failed: %s", strings.Join(failures, "; "))
		result := models.StageFailure(strings.Join(failures, "; "))
		result.Details["duration"] = duration
		result.Details["methods"] = outcomes
		return result
	}

	log.Printf("Deployment completed successfully in %.2fs", duration)

	return models.StageResult{
		OK: true,
		Details: map[string]any{
			"duration": duration,
			"methods":  outcomes,
		},
	}
}

func (d *Deployer) runDeployCommand(ctx context.Context) error {
	_, stderr, err := runCommand(ctx, d.methods.Command, d.workdir, d.timeout)
	if err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func (d *Deployer) createBackup(ctx context.Context) (string, error) {
	publishPath := filepath.Join(d.workdir, d.publishDir)
	if _, err := os.Stat(publishPath); err != nil {
		return "", fmt.Errorf("publish dir %s not found, run build first", d.publishDir)
	}

	backupDir := filepath.Join(d.workdir, d.backupDir)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("site_backup_%s.tar.gz", time.Now().Format("20060102_150405"))
	backupPath := filepath.Join(backupDir, name)

	cmd := fmt.Sprintf("tar -czf %s -C %s %s", backupPath, d.workdir, d.publishDir)
	if _, stderr, err := runCommand(ctx, cmd, d.workdir, d.timeout); err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("backup failed: %s", msg)
	}

	return backupPath, nil
}

func (d *Deployer) cleanupOldBackups() {
	cutoff := time.Now().AddDate(0, 0, -d.retentionDays)

	pattern := filepath.Join(d.workdir, d.backupDir, "site_backup_*.tar.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}

	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				log.Printf("Warning: could not remove old backup %s: %v", path, err)
				continue
			}
			log.Printf("Removed old backup: %s", filepath.Base(path))
		}
	}
}
