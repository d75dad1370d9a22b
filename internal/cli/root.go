package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/me/cyclelaunch/internal/config"
	"github.com/me/cyclelaunch/internal/logging"
	"github.com/spf13/cobra"
)

// app holds the parsed flags and the configuration and logger built from
// them before any command runs.
type app struct {
	flagConfig        string
	flagDebug         bool
	flagLogLevel      string
	flagLogFormat     string
	flagMaxWait       time.Duration
	flagCheckInterval time.Duration
	flagScheduler     string
	flagNoLease       bool

	cfg    config.Config
	logger *slog.Logger
}

// ExitError carries a process exit status out of a command without an
// additional error message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewRootCmd creates the root cobra command for the cyclelaunch CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cyclelaunch [flags] <experiment> <YYYY-MM-DD>",
		Short: "Conditionally launch a forecast cycle job",
		Long: `cyclelaunch submits an experiment's job script to the batch scheduler when
the date is a forecast cycle and the upstream data sources are ready.

Dates that are not cycles exit 0 without doing anything. Any failure sends a
notification and exits 1.`,
		Args: cobra.ExactArgs(2),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(a.flagConfig)
			if err != nil {
				return err
			}
			a.applyFlagOverrides(cmd, &loaded)
			if err := loaded.Validate(); err != nil {
				return err
			}
			a.cfg = loaded

			level := a.cfg.Log.Level
			if cmd.Flags().Changed("log-level") {
				level = a.flagLogLevel
			}
			if a.flagDebug {
				level = "debug"
			}
			format := a.cfg.Log.Format
			if cmd.Flags().Changed("log-format") {
				format = a.flagLogFormat
			}
			a.logger = logging.New(logging.Options{
				Level:  logging.ParseLevel(level),
				Format: format,
				Writer: cmd.ErrOrStderr(),
			})
			return nil
		},
		RunE:          a.runLaunch,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagConfig, "config", os.Getenv("CYCLELAUNCH_CONFIG"), "YAML config file (or CYCLELAUNCH_CONFIG env)")
	pf.BoolVar(&a.flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&a.flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.Flags().DurationVar(&a.flagMaxWait, "max-wait", 0, "Override the readiness wait budget")
	root.Flags().DurationVar(&a.flagCheckInterval, "check-interval", 0, "Override the pause between readiness checks")
	root.Flags().StringVar(&a.flagScheduler, "scheduler", "", "Override the scheduler kind (slurm, pbs)")
	root.Flags().BoolVar(&a.flagNoLease, "no-lease", false, "Do not take the submit lease or record the run")

	root.AddCommand(
		newCyclesCmd(a),
		newHistoryCmd(a),
		newLeaseCmd(a),
	)

	return root
}

// applyFlagOverrides layers explicitly set command-line flags over the
// file and environment configuration.
func (a *app) applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("max-wait") {
		c.MaxWait = a.flagMaxWait
	}
	if flags.Changed("check-interval") {
		c.CheckInterval = a.flagCheckInterval
	}
	if flags.Changed("scheduler") {
		c.Scheduler.Kind = a.flagScheduler
	}
	if flags.Changed("no-lease") && a.flagNoLease {
		c.Lease.DBPath = ""
	}
}

// Execute runs the CLI with args and returns the process exit status.
func Execute(ctx context.Context, args []string) int {
	return execute(ctx, NewRootCmd(), args)
}

func execute(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	return 1
}
