package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a run failure.
type ErrorKind string

const (
	KindConfiguration    ErrorKind = "configuration"
	KindProbeInvocation  ErrorKind = "probe_invocation"
	KindReadinessTimeout ErrorKind = "readiness_timeout"
	KindSubmission       ErrorKind = "submission"
	KindLeaseConflict    ErrorKind = "lease_conflict"
	KindNotification     ErrorKind = "notification"
	KindAborted          ErrorKind = "aborted"
)

// Fatal reports whether an error of this kind ends the run with a failure
// notification. Probe invocation and notification errors never do.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindProbeInvocation, KindNotification:
		return false
	}
	return true
}

// RunError is a classified error raised by one of the run stages.
type RunError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *RunError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError builds a RunError from a message.
func NewRunError(kind ErrorKind, op, msg string) *RunError {
	return &RunError{Kind: kind, Op: op, Err: errors.New(msg)}
}

// KindOf returns the kind of the first RunError in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// InvalidTransitionError is returned when a run state transition is invalid.
type InvalidTransitionError struct {
	RunID string
	From  RunState
	To    RunState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid run state transition: %s → %s (run %s)", e.From, e.To, e.RunID)
}
