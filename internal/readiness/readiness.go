// Package readiness checks the three upstream data sources a forecast cycle
// depends on and reports them in the probe's exit-code form.
package readiness

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/cyclelaunch/internal/config"
	"github.com/me/cyclelaunch/pkg/model"
)

// CompleteMarker is the literal that closes a completion record in the status log.
const CompleteMarker = "COMPLETE"

// Sources locates the upstream products on disk.
type Sources struct {
	PrecipDir      string `yaml:"precip_dir" env:"CYCLELAUNCH_READINESS_PRECIP_DIR"`
	PrecipPrefix   string `yaml:"precip_prefix" env:"CYCLELAUNCH_READINESS_PRECIP_PREFIX"`
	PrecipSuffix   string `yaml:"precip_suffix" env:"CYCLELAUNCH_READINESS_PRECIP_SUFFIX"`
	AnalysisDir    string `yaml:"analysis_dir" env:"CYCLELAUNCH_READINESS_ANALYSIS_DIR"`
	AnalysisPrefix string `yaml:"analysis_prefix" env:"CYCLELAUNCH_READINESS_ANALYSIS_PREFIX"`
	AnalysisSuffix string `yaml:"analysis_suffix" env:"CYCLELAUNCH_READINESS_ANALYSIS_SUFFIX"`
	StatusLog      string `yaml:"status_log" env:"CYCLELAUNCH_READINESS_STATUS_LOG"`
	CompletionTask string `yaml:"completion_task" env:"CYCLELAUNCH_READINESS_COMPLETION_TASK"`
}

// DefaultSources returns the operational source layout.
func DefaultSources() Sources {
	return Sources{
		PrecipDir:      "/discover/nobackup/dao_ops/PrecipCorr/CMAPcorr",
		PrecipPrefix:   "d5124_rpit_jan12.tavg1_2d_lfo_Nx_CMAPcorr.",
		PrecipSuffix:   ".nc4",
		AnalysisDir:    "/discover/nobackup/dao_ops/scratch/d5124_rpit_jan12/ana",
		AnalysisPrefix: "d5124_rpit_jan12.ana.eta.",
		AnalysisSuffix: ".nc4",
		StatusLog:      "/home/dao_ops/D_BOSS/schedule/files/discover36/task_status",
		CompletionTask: "QUART-OSTIA-REYNOLDS-01",
	}
}

// LoadSources overlays an optional YAML file and then CYCLELAUNCH_READINESS_*
// environment variables onto DefaultSources.
func LoadSources(path string) (Sources, error) {
	s := DefaultSources()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Sources{}, fmt.Errorf("read sources %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Sources{}, fmt.Errorf("invalid sources yaml %s: %w", path, err)
		}
	}
	if err := config.ParseEnv(&s); err != nil {
		return Sources{}, err
	}
	return s, nil
}

// Finding is the result for one source.
type Finding struct {
	Source string
	Code   int
	Target string // file path, or the record searched for
	Where  string // status log path for record sources
	Found  bool
}

// Report collects the findings for one cycle date.
type Report struct {
	Date     time.Time
	Findings []Finding
}

// Status folds the findings into a ReadinessStatus.
func (r Report) Status() model.ReadinessStatus {
	var s model.ReadinessStatus
	for _, f := range r.Findings {
		if f.Found {
			continue
		}
		switch f.Code {
		case model.CodePrecipMissing:
			s.PrecipMissing = true
		case model.CodeAnalysisMissing:
			s.AnalysisMissing = true
		case model.CodeCompletionMissing:
			s.CompletionMissing = true
		}
	}
	return s
}

// Write prints the verbose per-source trace followed by the padded code.
func (r Report) Write(w io.Writer) {
	for _, f := range r.Findings {
		if f.Where != "" {
			fmt.Fprintf(w, "Looking for %s in %s\n", f.Target, f.Where)
		} else {
			fmt.Fprintf(w, "Looking for %s\n", f.Target)
		}
		if f.Found {
			fmt.Fprintln(w, "...Found!")
		} else {
			fmt.Fprintln(w, "...NOT FOUND")
		}
	}
	fmt.Fprintf(w, "rccode: %03d\n", r.Status().Code())
}

// Checker evaluates Sources against the filesystem.
type Checker struct {
	sources Sources
	stat    func(string) (os.FileInfo, error)
	open    func(string) (io.ReadCloser, error)
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(sources Sources) *Checker {
	return &Checker{
		sources: sources,
		stat:    os.Stat,
		open:    func(p string) (io.ReadCloser, error) { return os.Open(p) },
	}
}

// PrecipPath is the precipitation-correction file for the day before date at 23:30.
func (c *Checker) PrecipPath(date time.Time) string {
	target := atClock(date, 23, 30).AddDate(0, 0, -1)
	name := c.sources.PrecipPrefix + target.Format("20060102_1504z") + c.sources.PrecipSuffix
	return filepath.Join(c.sources.PrecipDir, name)
}

// AnalysisPath is the analysis-state file for date at 18z, under Y<year>/M<month>.
func (c *Checker) AnalysisPath(date time.Time) string {
	target := atClock(date, 18, 0)
	name := c.sources.AnalysisPrefix + target.Format("20060102_15z") + c.sources.AnalysisSuffix
	return filepath.Join(c.sources.AnalysisDir, target.Format("Y2006"), target.Format("M01"), name)
}

// CompletionKey is the status-log record that marks the completion task done for date.
func CompletionKey(task string, date time.Time) string {
	target := atClock(date, 0, 0)
	return strings.Join([]string{task, target.Format("15:04"), target.Format("2006-01-02"), CompleteMarker}, ", ")
}

// Check evaluates all three sources for date.
func (c *Checker) Check(date time.Time) Report {
	precip := c.PrecipPath(date)
	analysis := c.AnalysisPath(date)
	key := CompletionKey(c.sources.CompletionTask, date)

	return Report{
		Date: date,
		Findings: []Finding{
			{Source: model.SourcePrecip, Code: model.CodePrecipMissing, Target: precip, Found: c.isFile(precip)},
			{Source: model.SourceAnalysis, Code: model.CodeAnalysisMissing, Target: analysis, Found: c.isFile(analysis)},
			{Source: model.SourceCompletion, Code: model.CodeCompletionMissing, Target: key, Where: c.sources.StatusLog, Found: c.logContains(key)},
		},
	}
}

func (c *Checker) isFile(path string) bool {
	info, err := c.stat(path)
	return err == nil && info.Mode().IsRegular()
}

// logContains scans the status log for a line containing key. A missing or
// unreadable log counts as not found.
func (c *Checker) logContains(key string) bool {
	if c.sources.StatusLog == "" || !c.isFile(c.sources.StatusLog) {
		return false
	}
	f, err := c.open(c.sources.StatusLog)
	if err != nil {
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if strings.Contains(sc.Text(), key) {
			return true
		}
	}
	return false
}

func atClock(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.UTC)
}
