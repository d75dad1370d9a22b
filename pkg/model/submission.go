package model

import "time"

// Experiment is a model run directory that owns a job script.
type Experiment struct {
	Name       string `json:"name"`
	Dir        string `json:"dir"`
	JobScript  string `json:"job_script"`
	MarkerFile string `json:"marker_file"`
}

// ForecastCycle is a calendar date considered for launch.
type ForecastCycle struct {
	Date     time.Time `json:"date"`
	Eligible bool      `json:"eligible"`
}

// DateLayout is the ISO calendar date format used on the command line and in keys.
const DateLayout = "2006-01-02"

// ParseCycleDate parses an ISO YYYY-MM-DD date as UTC midnight.
func ParseCycleDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// JobSubmissionResult is the outcome of handing a job script to the batch scheduler.
type JobSubmissionResult struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NotificationEvent is a rendered success or failure message.
// It is built once per run and passed by value.
type NotificationEvent struct {
	Success    bool      `json:"success"`
	Experiment string    `json:"experiment"`
	CycleDate  string    `json:"cycle_date,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Recipients []string  `json:"recipients"`
	JobID      string    `json:"job_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunRecord is the audit entry written when a run finishes.
type RunRecord struct {
	ID         string     `json:"id"`
	Experiment string     `json:"experiment"`
	CycleDate  string     `json:"cycle_date"`
	State      RunState   `json:"state"`
	ExitCode   int        `json:"exit_code"`
	Eligible   bool       `json:"eligible"`
	Attempts   int        `json:"attempts"`
	Host       string     `json:"host,omitempty"`
	JobID      string     `json:"job_id,omitempty"`
	ErrorKind  ErrorKind  `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}
