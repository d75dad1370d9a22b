package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/me/cyclelaunch/internal/orchestrator"
	"github.com/me/cyclelaunch/internal/store"
	"github.com/me/cyclelaunch/internal/telemetry"
	"github.com/me/cyclelaunch/pkg/model"
	"github.com/spf13/cobra"
)

func (a *app) runLaunch(cmd *cobra.Command, args []string) error {
	name := args[0]
	date, err := model.ParseCycleDate(args[1])
	if err != nil {
		return fmt.Errorf("invalid cycle date %q (want YYYY-MM-DD): %w", args[1], err)
	}
	ctx := cmd.Context()

	shutdown, err := telemetry.Setup(ctx, telemetry.ServiceName)
	if err != nil {
		a.logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("flush traces", "error", err)
		}
	}()

	var st *store.SQLiteStore
	if a.cfg.Lease.DBPath != "" {
		st, err = a.openStore(cmd)
		if err != nil {
			a.logger.Warn("state database unavailable, running without lease and audit",
				"db_path", a.cfg.Lease.DBPath, "error", err)
			st = nil
		} else {
			defer st.Close()
		}
	}

	runner, err := orchestrator.FromConfig(a.cfg, st, a.logger)
	if err != nil {
		return err
	}
	out := runner.Run(ctx, name, date)
	if out.ExitCode != orchestrator.ExitOK {
		return &ExitError{Code: out.ExitCode}
	}
	return nil
}

// openStore opens and migrates the lease and audit database.
func (a *app) openStore(cmd *cobra.Command) (*store.SQLiteStore, error) {
	if a.cfg.Lease.DBPath == "" {
		return nil, errors.New("no state database configured (lease.db_path is empty)")
	}
	st, err := store.NewSQLiteStore(a.cfg.Lease.DBPath, a.logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate %s: %w", a.cfg.Lease.DBPath, err)
	}
	return st, nil
}
