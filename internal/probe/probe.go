// Package probe invokes the external readiness checker and decodes its
// exit status into a model.ReadinessStatus.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/me/cyclelaunch/pkg/model"
)

// Probe reports which upstream sources are available for a cycle date.
// A returned error means the probe could not give an answer; it is never
// used to signal "not ready".
type Probe interface {
	Check(ctx context.Context, date time.Time) (model.ReadinessStatus, error)
}

// Func adapts an ordinary function to the Probe interface.
type Func func(ctx context.Context, date time.Time) (model.ReadinessStatus, error)

// Check calls f(ctx, date).
func (f Func) Check(ctx context.Context, date time.Time) (model.ReadinessStatus, error) {
	return f(ctx, date)
}

// ExecProbe runs the readiness checker as a subprocess with its own timeout.
type ExecProbe struct {
	path    string
	timeout time.Duration
	verbose bool
	logger  *slog.Logger
}

// NewExecProbe creates an ExecProbe for the executable at path.
func NewExecProbe(path string, timeout time.Duration, verbose bool, logger *slog.Logger) *ExecProbe {
	return &ExecProbe{
		path:    path,
		timeout: timeout,
		verbose: verbose,
		logger:  logger.With("component", "probe"),
	}
}

// Args builds the checker command line for date.
func Args(date time.Time, verbose bool) []string {
	var args []string
	if verbose {
		args = append(args, "--verbose")
	}
	return append(args,
		"--year", strconv.Itoa(date.Year()),
		"--month", strconv.Itoa(int(date.Month())),
		"--day", strconv.Itoa(date.Day()),
	)
}

// Check runs the checker once. Exit 0 is ready, a decodable nonzero exit is a
// partial status, and anything else (start failure, timeout, signal, unknown
// code) is a probe invocation error.
func (p *ExecProbe) Check(ctx context.Context, date time.Time) (model.ReadinessStatus, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.path, Args(date, p.verbose)...)
	cmd.WaitDelay = time.Second

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	runErr := cmd.Run()
	p.logOutput(stdoutBuf.String())

	if ctxErr := runCtx.Err(); ctxErr != nil {
		if ctx.Err() != nil {
			return model.ReadinessStatus{}, &model.RunError{Kind: model.KindProbeInvocation, Op: "probe", Err: ctx.Err()}
		}
		return model.ReadinessStatus{}, &model.RunError{
			Kind: model.KindProbeInvocation,
			Op:   "probe",
			Err:  fmt.Errorf("timed out after %s", p.timeout),
		}
	}

	var exitCode int
	switch err := runErr.(type) {
	case nil:
		exitCode = 0
	case *exec.ExitError:
		exitCode = err.ExitCode()
		if exitCode < 0 {
			return model.ReadinessStatus{}, &model.RunError{
				Kind: model.KindProbeInvocation,
				Op:   "probe",
				Err:  fmt.Errorf("terminated: %s", err.ProcessState),
			}
		}
	default:
		return model.ReadinessStatus{}, &model.RunError{Kind: model.KindProbeInvocation, Op: "probe", Err: runErr}
	}

	status, err := model.DecodeReadiness(exitCode)
	if err != nil {
		if msg := strings.TrimSpace(stderrBuf.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return model.ReadinessStatus{}, &model.RunError{Kind: model.KindProbeInvocation, Op: "probe", Err: err}
	}

	p.logger.Debug("probe finished",
		"date", date.Format(model.DateLayout),
		"code", fmt.Sprintf("%03d", exitCode),
		"status", status.String(),
		"duration", time.Since(start),
	)
	return status, nil
}

func (p *ExecProbe) logOutput(out string) {
	if !p.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			p.logger.Debug("probe output", "line", line)
		}
	}
}

// IsInvocationError reports whether err came from a failed probe invocation.
func IsInvocationError(err error) bool {
	var re *model.RunError
	return errors.As(err, &re) && re.Kind == model.KindProbeInvocation
}
