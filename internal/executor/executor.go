package executor

import (
	"context"

	"github.com/me/cyclelaunch/pkg/model"
)

// Submitter hands an experiment's job script to a batch scheduler.
type Submitter interface {
	// Kind returns the scheduler kind this submitter talks to.
	Kind() model.SchedulerKind

	// Submit clears the experiment's stale marker file and submits its job
	// script. Failures are reported in the result, never as a panic or error.
	Submit(ctx context.Context, exp model.Experiment) model.JobSubmissionResult
}
