// Package notify renders run outcome messages and delivers them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/cyclelaunch/pkg/model"
)

// Notifier delivers a rendered notification event.
type Notifier interface {
	Notify(ctx context.Context, event model.NotificationEvent) error

	// Name returns the notifier name for logging.
	Name() string
}

// Templates renders success and failure events. Prefix, when set, is
// prepended to subjects and bodies (the operational value is "V2 ODAS").
type Templates struct {
	Prefix     string
	Recipients []string
	Now        func() time.Time
}

func (t Templates) lead() string {
	if p := strings.TrimSpace(t.Prefix); p != "" {
		return p + " "
	}
	return ""
}

func (t Templates) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now().UTC()
}

// Success builds the event for an accepted submission. The job line is
// omitted when the scheduler printed no identifier.
func (t Templates) Success(exp model.Experiment, cycle time.Time, runID, jobID string) model.NotificationEvent {
	body := fmt.Sprintf("%sRun Submitted for experiment: %s", t.lead(), exp.Name)
	if jobID != "" {
		body += "\nJob ID: " + jobID
	}
	return model.NotificationEvent{
		Success:    true,
		Experiment: exp.Name,
		CycleDate:  cycle.Format(model.DateLayout),
		RunID:      runID,
		Subject:    fmt.Sprintf("%sRun Submitted - %s", t.lead(), exp.Name),
		Body:       body,
		Recipients: append([]string(nil), t.Recipients...),
		JobID:      jobID,
		CreatedAt:  t.now(),
	}
}

// Failure builds the event for a run that could not submit.
func (t Templates) Failure(exp model.Experiment, cycle time.Time, runID, message string) model.NotificationEvent {
	return model.NotificationEvent{
		Experiment: exp.Name,
		CycleDate:  cycle.Format(model.DateLayout),
		RunID:      runID,
		Subject:    fmt.Sprintf("%sRun Failed - %s", t.lead(), exp.Name),
		Body:       fmt.Sprintf("%sRun Failed for experiment: %s\nError: %s", t.lead(), exp.Name, message),
		Recipients: append([]string(nil), t.Recipients...),
		Error:      message,
		CreatedAt:  t.now(),
	}
}

// LogNotifier writes events to a logger. It is always part of the chain so
// every outcome is visible in the run log even without a delivery channel.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// Name returns "log".
func (n *LogNotifier) Name() string { return "log" }

// Notify logs the event at info (success) or error (failure) level.
func (n *LogNotifier) Notify(ctx context.Context, event model.NotificationEvent) error {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, event.Subject,
		"experiment", event.Experiment,
		"cycle_date", event.CycleDate,
		"run_id", event.RunID,
		"job_id", event.JobID,
		"recipients", strings.Join(event.Recipients, ","),
		"body", event.Body,
	)
	return nil
}

// Multi fans an event out to several notifiers. Every notifier is tried;
// the errors are joined.
type Multi []Notifier

// Name lists the member names.
func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, n := range m {
		names[i] = n.Name()
	}
	return strings.Join(names, "+")
}

// Notify delivers event to every member.
func (m Multi) Notify(ctx context.Context, event model.NotificationEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
