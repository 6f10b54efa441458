package pipeline

import (
	"context"
	"log"
	"strings"
	"time"

	"blogpipe/config"
	"blogpipe/models"
)

// Builder runs the static-site build command.
type Builder struct {
	command string
	workdir string
	timeout time.Duration
}

func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		command: cfg.Build.BuildCommand,
		workdir: cfg.Environment.WorkingDirectory,
		timeout: cfg.StageTimeout(),
	}
}

func (b *Builder) Name() string { return models.StageBuild }

func (b *Builder) Run(ctx context.Context) models.StageResult {
	start := time.Now()
	log.Println("Starting site build...")

	_, stderr, err := runCommand(ctx, b.command, b.workdir, b.timeout)
	duration := time.Since(start).Seconds()

	if err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		log.Printf("Site build failed: %s", msg)
		result := models.StageFailure(msg)
		result.Details["duration"] = duration
		return result
	}

	log.Printf("Site build completed successfully in %.2fs", duration)

	return models.StageResult{
		OK: true,
		Details: map[string]any{
			"duration": duration,
		},
	}
}
