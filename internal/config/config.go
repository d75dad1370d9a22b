package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/me/cyclelaunch/pkg/model"
)

// Config holds everything a launch run needs. It is built once at startup
// and passed by value; nothing mutates it afterwards.
type Config struct {
	ExperimentsRoot   string        `yaml:"experiments_root" env:"CYCLELAUNCH_EXPERIMENTS_ROOT"`
	ScriptDir         string        `yaml:"script_dir" env:"CYCLELAUNCH_SCRIPT_DIR"`
	ForecastDatesFile string        `yaml:"forecast_dates_file" env:"CYCLELAUNCH_FORECAST_DATES_FILE"` // relative to ScriptDir unless absolute
	ProbePath         string        `yaml:"probe_path" env:"CYCLELAUNCH_PROBE_PATH"`                   // relative to ScriptDir unless absolute
	JobScript         string        `yaml:"job_script" env:"CYCLELAUNCH_JOB_SCRIPT"`                   // relative to the experiment directory
	MarkerFile        string        `yaml:"marker_file" env:"CYCLELAUNCH_MARKER_FILE"`                 // relative to the experiment directory
	CyclePeriodDays   int           `yaml:"cycle_period_days" env:"CYCLELAUNCH_CYCLE_PERIOD_DAYS"`
	CheckInterval     time.Duration `yaml:"check_interval" env:"CYCLELAUNCH_CHECK_INTERVAL"`
	MaxWait           time.Duration `yaml:"max_wait" env:"CYCLELAUNCH_MAX_WAIT"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout" env:"CYCLELAUNCH_PROBE_TIMEOUT"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify"`
	Lease     LeaseConfig     `yaml:"lease"`
	Log       LogConfig       `yaml:"log"`
}

// SchedulerConfig selects the batch scheduler submission command.
type SchedulerConfig struct {
	Kind    string   `yaml:"kind" env:"CYCLELAUNCH_SCHEDULER_KIND"`       // slurm or pbs
	Command string   `yaml:"command" env:"CYCLELAUNCH_SCHEDULER_COMMAND"` // overrides the kind's default binary
	Args    []string `yaml:"args" env:"CYCLELAUNCH_SCHEDULER_ARGS" envSeparator:" "`
}

// NotifyConfig controls where run outcomes are delivered.
type NotifyConfig struct {
	Recipients    []string      `yaml:"recipients" env:"CYCLELAUNCH_NOTIFY_RECIPIENTS" envSeparator:","`
	SubjectPrefix string        `yaml:"subject_prefix" env:"CYCLELAUNCH_NOTIFY_SUBJECT_PREFIX"`
	WebhookURL    string        `yaml:"webhook_url" env:"CYCLELAUNCH_NOTIFY_WEBHOOK_URL"`
	SendmailPath  string        `yaml:"sendmail_path" env:"CYCLELAUNCH_NOTIFY_SENDMAIL_PATH"`
	From          string        `yaml:"from" env:"CYCLELAUNCH_NOTIFY_FROM"`
	Timeout       time.Duration `yaml:"timeout" env:"CYCLELAUNCH_NOTIFY_TIMEOUT"`
}

// LeaseConfig controls the submit-phase lease. An empty DBPath disables it.
type LeaseConfig struct {
	DBPath string        `yaml:"db_path" env:"CYCLELAUNCH_LEASE_DB_PATH"`
	TTL    time.Duration `yaml:"ttl" env:"CYCLELAUNCH_LEASE_TTL"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"CYCLELAUNCH_LOG_LEVEL"`
	Format string `yaml:"format" env:"CYCLELAUNCH_LOG_FORMAT"`
}

// Default returns the operational defaults.
func Default() Config {
	return Config{
		ExperimentsRoot:   "/home/gmaofcst/geos-s2s-3",
		ScriptDir:         "/home/gmaofcst/ODAS/OBS/V3/D_BOSS",
		ForecastDatesFile: "forecast_dates.txt",
		ProbePath:         "s2s_check.py",
		JobScript:         "gcm_run.j",
		MarkerFile:        "ODAS_Check.txt",
		CyclePeriodDays:   5,
		CheckInterval:     15 * time.Minute,
		MaxWait:           2 * time.Hour,
		ProbeTimeout:      5 * time.Minute,
		Scheduler: SchedulerConfig{
			Kind: string(model.SchedulerKindSlurm),
		},
		Notify: NotifyConfig{
			Timeout: 30 * time.Second,
		},
		Lease: LeaseConfig{
			DBPath: defaultLeaseDBPath(),
			TTL:    10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultLeaseDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cyclelaunch", "cyclelaunch.db")
}

// Load builds a Config from defaults, an optional YAML file, and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config yaml %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv overlays CYCLELAUNCH_* environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects settings the run cannot work with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ExperimentsRoot) == "" {
		errs = append(errs, errors.New("experiments_root is required"))
	}
	if strings.TrimSpace(c.ForecastDatesFile) == "" {
		errs = append(errs, errors.New("forecast_dates_file is required"))
	}
	if strings.TrimSpace(c.ProbePath) == "" {
		errs = append(errs, errors.New("probe_path is required"))
	}
	if strings.TrimSpace(c.JobScript) == "" {
		errs = append(errs, errors.New("job_script is required"))
	}
	if strings.TrimSpace(c.MarkerFile) == "" {
		errs = append(errs, errors.New("marker_file is required"))
	}
	if c.CyclePeriodDays <= 0 {
		errs = append(errs, fmt.Errorf("cycle_period_days must be positive, got %d", c.CyclePeriodDays))
	}
	if c.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("check_interval must be positive, got %s", c.CheckInterval))
	}
	if c.MaxWait <= 0 {
		errs = append(errs, fmt.Errorf("max_wait must be positive, got %s", c.MaxWait))
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("probe_timeout must be positive, got %s", c.ProbeTimeout))
	}
	switch model.SchedulerKind(c.Scheduler.Kind) {
	case model.SchedulerKindSlurm, model.SchedulerKindPBS:
	default:
		errs = append(errs, fmt.Errorf("scheduler.kind %q is not one of slurm, pbs", c.Scheduler.Kind))
	}
	if c.Notify.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("notify.timeout must be positive, got %s", c.Notify.Timeout))
	}
	if c.Lease.DBPath != "" && c.Lease.TTL <= 0 {
		errs = append(errs, fmt.Errorf("lease.ttl must be positive, got %s", c.Lease.TTL))
	}
	return errors.Join(errs...)
}

// Experiment derives the per-experiment paths for name.
func (c Config) Experiment(name string) model.Experiment {
	dir := filepath.Join(c.ExperimentsRoot, name)
	return model.Experiment{
		Name:       name,
		Dir:        dir,
		JobScript:  filepath.Join(dir, c.JobScript),
		MarkerFile: filepath.Join(dir, c.MarkerFile),
	}
}

// ForecastDatesPath returns the resolved date-eligibility reference file.
func (c Config) ForecastDatesPath() string {
	return c.scriptPath(c.ForecastDatesFile)
}

// ResolvedProbePath returns the resolved readiness probe executable.
func (c Config) ResolvedProbePath() string {
	return c.scriptPath(c.ProbePath)
}

// RequiredFiles lists the files that must exist before a run for exp may proceed.
func (c Config) RequiredFiles(exp model.Experiment) []string {
	return []string{c.ForecastDatesPath(), c.ResolvedProbePath(), exp.JobScript}
}

func (c Config) scriptPath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.ScriptDir == "" {
		return p
	}
	return filepath.Join(c.ScriptDir, p)
}
