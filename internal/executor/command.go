package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/me/cyclelaunch/pkg/model"
)

// DefaultCommand returns the submission binary for a scheduler kind.
func DefaultCommand(kind model.SchedulerKind) string {
	switch kind {
	case model.SchedulerKindSlurm:
		return "/usr/bin/sbatch"
	case model.SchedulerKindPBS:
		return "qsub"
	}
	return ""
}

// CommandSubmitter submits job scripts by running the scheduler's CLI
// (sbatch, qsub) from inside the experiment directory.
type CommandSubmitter struct {
	kind    model.SchedulerKind
	command string
	args    []string
	remove  func(string) error
	logger  *slog.Logger
}

// NewCommandSubmitter creates a CommandSubmitter. args are placed before the
// job script path on the command line.
func NewCommandSubmitter(kind model.SchedulerKind, command string, args []string, logger *slog.Logger) *CommandSubmitter {
	return &CommandSubmitter{
		kind:    kind,
		command: command,
		args:    args,
		remove:  os.Remove,
		logger:  logger.With("component", "submitter", "kind", kind),
	}
}

// Kind returns the scheduler kind.
func (s *CommandSubmitter) Kind() model.SchedulerKind {
	return s.kind
}

// Submit removes the stale marker file, then runs `<command> [args...] <job script>`
// with the experiment directory as working directory. Exit 0 is acceptance and
// the trimmed stdout is the job identifier.
func (s *CommandSubmitter) Submit(ctx context.Context, exp model.Experiment) model.JobSubmissionResult {
	if err := ClearMarker(s.remove, exp.MarkerFile); err != nil {
		s.logger.Error("clear marker file", "path", exp.MarkerFile, "error", err)
		return model.JobSubmissionResult{Error: fmt.Sprintf("clear marker file: %v", err)}
	}

	args := append(append([]string{}, s.args...), exp.JobScript)
	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Dir = exp.Dir
	cmd.WaitDelay = 5 * time.Second

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	s.logger.Info("submitting job", "experiment", exp.Name, "command", s.command, "script", exp.JobScript)
	runErr := cmd.Run()

	switch err := runErr.(type) {
	case nil:
		jobID := strings.TrimSpace(stdoutBuf.String())
		s.logger.Info("job submitted", "experiment", exp.Name, "job_id", jobID)
		return model.JobSubmissionResult{Success: true, JobID: jobID}
	case *exec.ExitError:
		msg := strings.TrimSpace(stderrBuf.String())
		if msg == "" {
			msg = fmt.Sprintf("%s exited with status %d", s.command, err.ExitCode())
		}
		s.logger.Error("job submission rejected", "experiment", exp.Name, "exit_code", err.ExitCode(), "stderr", msg)
		return model.JobSubmissionResult{Error: msg}
	default:
		// Non-exit errors (e.g. binary not found) never reached the scheduler.
		s.logger.Error("job submission failed", "experiment", exp.Name, "error", runErr)
		return model.JobSubmissionResult{Error: fmt.Sprintf("run %s: %v", s.command, runErr)}
	}
}

// ClearMarker deletes path using remove. A file that is already gone is fine.
func ClearMarker(remove func(string) error, path string) error {
	if err := remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
