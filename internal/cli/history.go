package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var experiment string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded launch runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), experiment, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			fmt.Fprintf(out, "%-36s  %-24s  %-10s  %-18s  %-4s  %-12s  %s\n", "RUN", "EXPERIMENT", "DATE", "STATE", "EXIT", "JOB", "ERROR")
			for _, r := range runs {
				fmt.Fprintf(out, "%-36s  %-24s  %-10s  %-18s  %-4d  %-12s  %s\n",
					r.ID, r.Experiment, r.CycleDate, r.State, r.ExitCode, dash(r.JobID), dash(r.Error))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&experiment, "experiment", "", "Only show runs of this experiment")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
