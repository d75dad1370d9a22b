package model

// RunState represents a stage of a single launch run.
type RunState string

const (
	RunStateInit               RunState = "INIT"
	RunStateValidateExperiment RunState = "VALIDATE_EXPERIMENT"
	RunStateCheckEligibility   RunState = "CHECK_ELIGIBILITY"
	RunStateWaitForReadiness   RunState = "WAIT_FOR_READINESS"
	RunStateSubmitJob          RunState = "SUBMIT_JOB"
	RunStateNotifySuccess      RunState = "NOTIFY_SUCCESS"
	RunStateNotifyFailure      RunState = "NOTIFY_FAILURE"
	RunStateDone               RunState = "DONE"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the run has finished.
func (s RunState) IsTerminal() bool {
	return s == RunStateDone
}

// ValidRunTransitions defines the allowed state transitions for a run.
var ValidRunTransitions = map[RunState][]RunState{
	RunStateInit:               {RunStateValidateExperiment},
	RunStateValidateExperiment: {RunStateCheckEligibility, RunStateNotifyFailure},
	RunStateCheckEligibility:   {RunStateWaitForReadiness, RunStateDone},
	RunStateWaitForReadiness:   {RunStateSubmitJob, RunStateNotifyFailure},
	RunStateSubmitJob:          {RunStateNotifySuccess, RunStateNotifyFailure},
	RunStateNotifySuccess:      {RunStateDone},
	RunStateNotifyFailure:      {RunStateDone},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s RunState) CanTransitionTo(next RunState) bool {
	for _, allowed := range ValidRunTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SchedulerKind identifies which batch scheduler accepts the job script.
type SchedulerKind string

const (
	SchedulerKindSlurm SchedulerKind = "slurm"
	SchedulerKindPBS   SchedulerKind = "pbs"
)
