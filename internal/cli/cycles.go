package cli

import (
	"fmt"
	"time"

	"github.com/me/cyclelaunch/internal/calendar"
	"github.com/me/cyclelaunch/pkg/model"
	"github.com/spf13/cobra"
)

func newCyclesCmd(a *app) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "List the forecast cycle dates of a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gate, err := calendar.NewGate(a.cfg.CyclePeriodDays)
			if err != nil {
				return err
			}
			for _, d := range gate.Cycles(year) {
				fmt.Fprintln(cmd.OutOrStdout(), d.Format(model.DateLayout))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "Calendar year")
	return cmd
}
