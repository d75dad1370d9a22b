// Package poll waits for a cycle's upstream data to become ready.
package poll

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/cyclelaunch/internal/probe"
	"github.com/me/cyclelaunch/pkg/model"
)

// Config holds the polling budget.
type Config struct {
	Interval time.Duration // pause between probe attempts
	MaxWait  time.Duration // wall-clock budget for the whole wait
}

// Result summarizes a wait.
type Result struct {
	Ready    bool
	Attempts int
	Last     model.ReadinessStatus // last status the probe actually reported
	LastErr  error                 // invocation error from the final attempt, if any
	Elapsed  time.Duration
}

// Waiter repeatedly asks a Probe whether a cycle is ready.
type Waiter struct {
	probe  probe.Probe
	config Config
	logger *slog.Logger
}

// NewWaiter creates a Waiter.
func NewWaiter(p probe.Probe, cfg Config, logger *slog.Logger) *Waiter {
	return &Waiter{
		probe:  p,
		config: cfg,
		logger: logger.With("component", "poll"),
	}
}

// WaitUntilReady probes until the sources are ready or the budget runs out.
// Not-ready answers and invocation errors both just wait for the next attempt;
// only the deadline fixed at entry ends the wait with Ready=false. A cancelled
// ctx returns an aborted RunError.
func (w *Waiter) WaitUntilReady(ctx context.Context, date time.Time) (Result, error) {
	start := time.Now()
	deadline := start.Add(w.config.MaxWait)
	var res Result

	for {
		res.Attempts++
		status, err := w.probe.Check(ctx, date)
		if ctx.Err() != nil {
			res.Elapsed = time.Since(start)
			return res, aborted(ctx)
		}

		if err != nil {
			res.LastErr = err
			w.logger.Warn("readiness probe failed", "attempt", res.Attempts, "error", err)
		} else {
			res.Last = status
			res.LastErr = nil
			if status.Ready() {
				res.Ready = true
				res.Elapsed = time.Since(start)
				w.logger.Info("all required sources available", "attempt", res.Attempts, "elapsed", res.Elapsed)
				return res, nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		pause := min(w.config.Interval, remaining)
		if err == nil {
			w.logger.Info("sources not ready, waiting",
				"attempt", res.Attempts,
				"code", status.Code(),
				"missing", status.Missing(),
				"retry_in", pause,
			)
		}
		if err := Sleep(ctx, pause); err != nil {
			res.Elapsed = time.Since(start)
			return res, aborted(ctx)
		}
		if !time.Now().Before(deadline) {
			break
		}
	}

	res.Elapsed = time.Since(start)
	w.logger.Error("timed out waiting for sources", "attempts", res.Attempts, "elapsed", res.Elapsed, "last", res.Last.String())
	return res, nil
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func aborted(ctx context.Context) error {
	return &model.RunError{Kind: model.KindAborted, Op: "wait for readiness", Err: ctx.Err()}
}
