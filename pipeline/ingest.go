package pipeline

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"blogpipe/config"
	"blogpipe/models"
)

// Ingestor runs the external content-ingestion command and reads article
// counts from its output. What the command does internally (feeds, scraping,
// dedup) is its own business.
type Ingestor struct {
	command string
	workdir string
	timeout time.Duration
}

func NewIngestor(cfg *config.Config) *Ingestor {
	return &Ingestor{
		command: cfg.Content.IngestCommand,
		workdir: cfg.Environment.WorkingDirectory,
		timeout: cfg.StageTimeout(),
	}
}

func (i *Ingestor) Name() string { return models.StageIngest }

var foundArticlesRe = regexp.MustCompile(`Found (\d+) articles`)

func (i *Ingestor) Run(ctx context.Context) models.StageResult {
	if i.command == "" {
		return models.StageFailure("no ingest command configured (content.ingest_command)")
	}

	start := time.Now()
	log.Println("Starting content ingestion...")

	stdout, stderr, err := runCommand(ctx, i.command, i.workdir, i.timeout)
	duration := time.Since(start).Seconds()

	if err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		log.Printf("Content ingestion failed: %s", msg)
		result := models.StageFailure(msg)
		result.Details["duration"] = duration
		return result
	}

	processed := strings.Count(stdout, "Successfully ingested:")
	found := 0
	for _, match := range foundArticlesRe.FindAllStringSubmatch(stdout, -1) {
		if n, err := strconv.Atoi(match[1]); err == nil {
			found += n
		}
	}
	if found < processed {
		found = processed
	}

	log.Printf("Content ingestion completed successfully in %.2fs (%d articles)", duration, processed)

	return models.StageResult{
		OK: true,
		Details: map[string]any{
			"duration":           duration,
			"articles_found":     found,
			"articles_processed": processed,
		},
	}
}

// String is used in operator-facing summaries.
func (i *Ingestor) String() string {
	return fmt.Sprintf("ingestor(%s)", i.command)
}
