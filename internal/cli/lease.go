package cli

import (
	"fmt"

	"github.com/me/cyclelaunch/internal/store"
	"github.com/me/cyclelaunch/pkg/model"
	"github.com/spf13/cobra"
)

func newLeaseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lease",
		Short: "Inspect or clear submit leases",
	}
	cmd.AddCommand(newLeaseReleaseCmd(a))
	return cmd
}

func newLeaseReleaseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "release <experiment> <YYYY-MM-DD>",
		Short: "Force-release the submit lease left by a crashed run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := model.ParseCycleDate(args[1])
			if err != nil {
				return fmt.Errorf("invalid cycle date %q (want YYYY-MM-DD): %w", args[1], err)
			}
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			key := store.LeaseKey(args[0], date)
			removed, err := st.ForceRelease(cmd.Context(), key)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Released lease %s\n", key)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No lease held for %s\n", key)
			}
			return nil
		},
	}
}
