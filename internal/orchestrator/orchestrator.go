// Package orchestrator drives one launch run through its states:
// validate, check eligibility, wait for readiness, submit, notify.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/me/cyclelaunch/internal/calendar"
	"github.com/me/cyclelaunch/internal/config"
	"github.com/me/cyclelaunch/internal/executor"
	"github.com/me/cyclelaunch/internal/notify"
	"github.com/me/cyclelaunch/internal/poll"
	"github.com/me/cyclelaunch/internal/probe"
	"github.com/me/cyclelaunch/internal/store"
	"github.com/me/cyclelaunch/internal/telemetry"
	"github.com/me/cyclelaunch/internal/validate"
	"github.com/me/cyclelaunch/pkg/model"
)

// Exit statuses of a run.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// Waiter blocks until a cycle's sources are ready or the budget runs out.
type Waiter interface {
	WaitUntilReady(ctx context.Context, date time.Time) (poll.Result, error)
}

// Deps are the collaborators of a Runner. Leaser and Runs are optional.
type Deps struct {
	Waiter    Waiter
	Submitter executor.Submitter
	Notifier  notify.Notifier
	Leaser    store.Leaser
	Runs      store.RunLog
	Logger    *slog.Logger
}

// Outcome describes how a run ended.
type Outcome struct {
	RunID    string
	State    model.RunState // last state before DONE
	ExitCode int
	Eligible bool
	Attempts int
	JobID    string
	Err      error
	Notified bool
}

// Runner executes launch runs for one configuration.
type Runner struct {
	cfg       config.Config
	gate      calendar.Gate
	templates notify.Templates
	deps      Deps
	logger    *slog.Logger
	tracer    trace.Tracer
	newID     func() string
	now       func() time.Time
}

// New creates a Runner. cfg must already be validated.
func New(cfg config.Config, deps Deps) (*Runner, error) {
	gate, err := calendar.NewGate(cfg.CyclePeriodDays)
	if err != nil {
		return nil, err
	}
	if deps.Waiter == nil || deps.Submitter == nil || deps.Notifier == nil {
		return nil, errors.New("orchestrator: waiter, submitter and notifier are required")
	}
	if deps.Leaser == nil {
		deps.Leaser = store.NoopLeaser{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Runner{
		cfg:       cfg,
		gate:      gate,
		templates: notify.TemplatesFromConfig(cfg.Notify),
		deps:      deps,
		logger:    deps.Logger.With("component", "orchestrator"),
		tracer:    telemetry.Tracer(),
		newID:     func() string { return uuid.New().String() },
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// FromConfig wires the production collaborators: the external readiness
// probe, the configured scheduler, and the notifier chain. st may be nil,
// which disables the submit lease and the run audit.
func FromConfig(cfg config.Config, st *store.SQLiteStore, logger *slog.Logger) (*Runner, error) {
	checker := probe.NewExecProbe(cfg.ResolvedProbePath(), cfg.ProbeTimeout, true, logger)
	waiter := poll.NewWaiter(checker, poll.Config{Interval: cfg.CheckInterval, MaxWait: cfg.MaxWait}, logger)

	kind := model.SchedulerKind(cfg.Scheduler.Kind)
	reg := executor.NewDefaultRegistry(kind, cfg.Scheduler.Command, cfg.Scheduler.Args, logger)
	submitter, err := reg.Get(kind)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Waiter:    waiter,
		Submitter: submitter,
		Notifier:  notify.FromConfig(cfg.Notify, logger),
		Logger:    logger,
	}
	if st != nil {
		deps.Leaser = st
		deps.Runs = st
	}
	return New(cfg, deps)
}

// run tracks the state of a single launch.
type run struct {
	id     string
	state  model.RunState
	last   model.RunState
	logger *slog.Logger
}

func (r *run) advance(next model.RunState) error {
	if !r.state.CanTransitionTo(next) {
		return &model.InvalidTransitionError{RunID: r.id, From: r.state, To: next}
	}
	r.logger.Debug("state transition", "from", r.state, "to", next)
	if next == model.RunStateDone {
		r.last = r.state
	}
	r.state = next
	return nil
}

// Run launches experiment name for the cycle date and returns how it ended.
// Outcome.ExitCode is the process exit status: 0 for a submission or a
// skipped date, 1 for any failure.
func (r *Runner) Run(ctx context.Context, name string, date time.Time) Outcome {
	started := r.now()
	rs := &run{id: r.newID(), state: model.RunStateInit}
	rs.logger = r.logger.With("run_id", rs.id, "experiment", name, "cycle_date", date.Format(model.DateLayout))

	ctx, span := r.tracer.Start(ctx, "cyclelaunch.run", trace.WithAttributes(
		attribute.String("cyclelaunch.run_id", rs.id),
		attribute.String("cyclelaunch.experiment", name),
		attribute.String("cyclelaunch.cycle_date", date.Format(model.DateLayout)),
	))
	defer span.End()

	exp := r.cfg.Experiment(name)
	out := r.execute(ctx, rs, exp, date)
	out.RunID = rs.id
	out.State = rs.last

	span.SetAttributes(attribute.Int("cyclelaunch.exit_code", out.ExitCode))
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, string(model.KindOf(out.Err)))
	}
	r.record(ctx, out, exp, date, started)
	return out
}

func (r *Runner) execute(ctx context.Context, rs *run, exp model.Experiment, date time.Time) Outcome {
	rs.logger.Info("run started")

	if err := rs.advance(model.RunStateValidateExperiment); err != nil {
		return r.broken(rs, err)
	}
	if err := r.validate(ctx, exp); err != nil {
		return r.fail(ctx, rs, exp, date, Outcome{}, err)
	}

	if err := rs.advance(model.RunStateCheckEligibility); err != nil {
		return r.broken(rs, err)
	}
	cycle := r.gate.Cycle(date)
	if !cycle.Eligible {
		rs.logger.Info("not a forecast cycle date, nothing to do",
			"day_of_year_offset", calendar.DaysSinceJan1(date), "period", r.gate.Period())
		if err := rs.advance(model.RunStateDone); err != nil {
			return r.broken(rs, err)
		}
		return Outcome{ExitCode: ExitOK}
	}
	out := Outcome{Eligible: true}

	if err := rs.advance(model.RunStateWaitForReadiness); err != nil {
		return r.broken(rs, err)
	}
	res, err := r.wait(ctx, date)
	out.Attempts = res.Attempts
	if err != nil {
		return r.fail(ctx, rs, exp, date, out, err)
	}

	if err := rs.advance(model.RunStateSubmitJob); err != nil {
		return r.broken(rs, err)
	}
	result, err := r.submit(ctx, rs, exp, date)
	if err != nil {
		return r.fail(ctx, rs, exp, date, out, err)
	}
	out.JobID = result.JobID

	if err := rs.advance(model.RunStateNotifySuccess); err != nil {
		return r.broken(rs, err)
	}
	out.Notified = r.deliver(ctx, rs, r.templates.Success(exp, date, rs.id, result.JobID))
	if err := rs.advance(model.RunStateDone); err != nil {
		return r.broken(rs, err)
	}
	rs.logger.Info("run finished", "job_id", result.JobID)
	out.ExitCode = ExitOK
	return out
}

func (r *Runner) validate(ctx context.Context, exp model.Experiment) error {
	_, span := r.tracer.Start(ctx, "cyclelaunch.validate")
	defer span.End()

	return validate.Err(validate.Experiment(exp, r.cfg.RequiredFiles(exp)))
}

func (r *Runner) wait(ctx context.Context, date time.Time) (poll.Result, error) {
	ctx, span := r.tracer.Start(ctx, "cyclelaunch.wait_for_readiness")
	defer span.End()

	res, err := r.deps.Waiter.WaitUntilReady(ctx, date)
	span.SetAttributes(attribute.Int("cyclelaunch.attempts", res.Attempts))
	if err != nil {
		return res, err
	}
	if !res.Ready {
		detail := fmt.Sprintf("sources not ready after %s (%d attempts", r.cfg.MaxWait, res.Attempts)
		if missing := res.Last.Missing(); len(missing) > 0 {
			detail += fmt.Sprintf(", missing %v", missing)
		}
		if res.LastErr != nil {
			detail += fmt.Sprintf(", last probe error: %v", res.LastErr)
		}
		return res, model.NewRunError(model.KindReadinessTimeout, "wait for readiness", detail+")")
	}
	return res, nil
}

// submit holds the (experiment, date) lease while the job is handed to the
// scheduler.
func (r *Runner) submit(ctx context.Context, rs *run, exp model.Experiment, date time.Time) (model.JobSubmissionResult, error) {
	ctx, span := r.tracer.Start(ctx, "cyclelaunch.submit_job")
	defer span.End()

	key := store.LeaseKey(exp.Name, date)
	lease, err := r.deps.Leaser.Acquire(ctx, key, rs.id, r.cfg.Lease.TTL)
	if err != nil {
		if store.IsLeaseHeld(err) {
			return model.JobSubmissionResult{}, &model.RunError{Kind: model.KindLeaseConflict, Op: "acquire lease", Err: err}
		}
		return model.JobSubmissionResult{}, &model.RunError{Kind: model.KindSubmission, Op: "acquire lease", Err: err}
	}
	defer func() {
		if err := r.deps.Leaser.Release(context.WithoutCancel(ctx), lease); err != nil {
			rs.logger.Warn("release lease", "key", key, "error", err)
		}
	}()

	result := r.deps.Submitter.Submit(ctx, exp)
	if !result.Success {
		if ctx.Err() != nil {
			return result, &model.RunError{Kind: model.KindAborted, Op: "submit job", Err: ctx.Err()}
		}
		return result, model.NewRunError(model.KindSubmission, "submit job", result.Error)
	}
	span.SetAttributes(attribute.String("cyclelaunch.job_id", result.JobID))
	return result, nil
}

// fail moves the run through NOTIFY_FAILURE and ends it with ExitFailure.
func (r *Runner) fail(ctx context.Context, rs *run, exp model.Experiment, date time.Time, out Outcome, cause error) Outcome {
	rs.logger.Error("run failed", "state", rs.state, "kind", model.KindOf(cause), "error", cause)
	out.Err = cause
	out.ExitCode = ExitFailure
	if err := rs.advance(model.RunStateNotifyFailure); err != nil {
		return r.broken(rs, err)
	}
	out.Notified = r.deliver(ctx, rs, r.templates.Failure(exp, date, rs.id, FailureMessage(cause)))
	if err := rs.advance(model.RunStateDone); err != nil {
		return r.broken(rs, err)
	}
	return out
}

// broken ends a run whose state machine was driven out of order.
func (r *Runner) broken(rs *run, err error) Outcome {
	rs.logger.Error("run aborted on invalid transition", "error", err)
	return Outcome{ExitCode: ExitFailure, Err: err}
}

// deliver sends event and reports whether it went out. Delivery uses its own
// timeout and survives cancellation of ctx so an aborted run is still reported.
func (r *Runner) deliver(ctx context.Context, rs *run, event model.NotificationEvent) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Notify.Timeout)
	defer cancel()
	ctx, span := r.tracer.Start(ctx, "cyclelaunch.notify", trace.WithAttributes(
		attribute.Bool("cyclelaunch.success", event.Success),
		attribute.String("cyclelaunch.notifier", r.deps.Notifier.Name()),
	))
	defer span.End()

	if err := r.deps.Notifier.Notify(ctx, event); err != nil {
		err = &model.RunError{Kind: model.KindNotification, Op: "notify", Err: err}
		span.RecordError(err)
		rs.logger.Warn("notification not delivered", "notifier", r.deps.Notifier.Name(), "error", err)
		return false
	}
	return true
}

func (r *Runner) record(ctx context.Context, out Outcome, exp model.Experiment, date time.Time, started time.Time) {
	if r.deps.Runs == nil {
		return
	}
	finished := r.now()
	host, _ := os.Hostname()
	rec := model.RunRecord{
		ID:         out.RunID,
		Experiment: exp.Name,
		CycleDate:  date.Format(model.DateLayout),
		State:      out.State,
		ExitCode:   out.ExitCode,
		Eligible:   out.Eligible,
		Attempts:   out.Attempts,
		Host:       host,
		JobID:      out.JobID,
		StartedAt:  started,
		FinishedAt: &finished,
	}
	if out.Err != nil {
		rec.ErrorKind = model.KindOf(out.Err)
		rec.Error = out.Err.Error()
	}
	if err := r.deps.Runs.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("record run", "run_id", out.RunID, "error", err)
	}
}

// FailureMessage renders cause as the text of a failure notification.
func FailureMessage(cause error) string {
	var re *model.RunError
	if !errors.As(cause, &re) {
		return cause.Error()
	}
	switch re.Kind {
	case model.KindConfiguration:
		return "Experiment validation failed: " + re.Err.Error()
	case model.KindReadinessTimeout:
		return "Timeout waiting for input files: " + re.Err.Error()
	case model.KindSubmission:
		return "Job submission failed: " + re.Err.Error()
	case model.KindLeaseConflict:
		return "Another run is already submitting this cycle: " + re.Err.Error()
	case model.KindAborted:
		return "Run aborted: " + re.Err.Error()
	}
	return re.Error()
}
