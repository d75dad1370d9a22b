// Command readiness-check reports whether the upstream data for a forecast
// cycle is on disk. The exit status is the sum of the codes of the missing
// sources: 1 precipitation correction, 10 analysis state, 100 completion record.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/me/cyclelaunch/internal/readiness"
	"github.com/spf13/cobra"
)

// exitError carries the readiness code out of RunE.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("readiness code %03d", e.code) }

func newRootCmd(stdout io.Writer) *cobra.Command {
	var (
		year, month, day int
		verbose          bool
		configPath       string
	)

	cmd := &cobra.Command{
		Use:           "readiness-check --year Y --month M --day D",
		Short:         "Check upstream data availability for a forecast cycle",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			if date.Year() != year || int(date.Month()) != month || date.Day() != day {
				return fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
			}
			sources, err := readiness.LoadSources(configPath)
			if err != nil {
				return err
			}

			report := readiness.NewChecker(sources).Check(date)
			if verbose {
				report.Write(stdout)
			}
			if code := report.Status().Code(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Cycle year")
	cmd.Flags().IntVar(&month, "month", 0, "Cycle month (1-12)")
	cmd.Flags().IntVar(&day, "day", 0, "Cycle day of month")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Print each source checked")
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("CYCLELAUNCH_READINESS_CONFIG"), "YAML file overriding source locations")
	for _, name := range []string{"year", "month", "day"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// run executes the checker and returns the process exit status. Usage and
// configuration errors exit 2, which no combination of source codes produces.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	if e, ok := err.(*exitError); ok {
		return e.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 2
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
