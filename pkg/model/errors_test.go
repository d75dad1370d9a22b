package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestRunError_Error(t *testing.T) {
	err := NewRunError(KindSubmission, "sbatch", "QOS limit exceeded")
	want := "submission: sbatch: QOS limit exceeded"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	noOp := &RunError{Kind: KindReadinessTimeout, Err: errors.New("budget exhausted")}
	if got := noOp.Error(); got != "readiness_timeout: budget exhausted" {
		t.Errorf("Error() = %q", got)
	}
}

func TestKindOf(t *testing.T) {
	base := NewRunError(KindConfiguration, "validate", "missing job script")
	wrapped := fmt.Errorf("run: %w", base)

	if got := KindOf(wrapped); got != KindConfiguration {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, KindConfiguration)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestRunError_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := &RunError{Kind: KindAborted, Op: "wait", Err: sentinel}
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the wrapped sentinel")
	}
}

func TestErrorKind_Fatal(t *testing.T) {
	tests := []struct {
		kind  ErrorKind
		fatal bool
	}{
		{KindConfiguration, true},
		{KindProbeInvocation, false},
		{KindReadinessTimeout, true},
		{KindSubmission, true},
		{KindLeaseConflict, true},
		{KindNotification, false},
		{KindAborted, true},
	}
	for _, tt := range tests {
		if got := tt.kind.Fatal(); got != tt.fatal {
			t.Errorf("ErrorKind(%q).Fatal() = %v, want %v", tt.kind, got, tt.fatal)
		}
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{RunID: "run_1", From: RunStateDone, To: RunStateInit}
	want := "invalid run state transition: DONE → INIT (run run_1)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
