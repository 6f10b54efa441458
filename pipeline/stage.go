package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"blogpipe/models"
)

// Stage is the collaborator contract: one opaque operation returning a
// tagged success/failure result. Collaborators own their timeouts.
type Stage interface {
	Name() string
	Run(ctx context.Context) models.StageResult
}

// runCommand executes an external command line in dir under a timeout and
// returns combined stdout, stderr and the error. The command string is split
// on whitespace; stage commands needing shell features wrap themselves in a
// script.
func runCommand(ctx context.Context, command, dir string, timeout time.Duration) (string, string, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", "", errors.New("empty command")
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, parts[0], parts[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cctx.Err() == context.DeadlineExceeded {
		err = errors.New("timed out after " + timeout.String())
	}

	return stdout.String(), stderr.String(), err
}
