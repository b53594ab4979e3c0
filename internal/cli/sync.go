package cli

import (
	"context"
	"fmt"

	"github.com/matthewdavidson09/onboard-sync/internal/audit"
	"github.com/matthewdavidson09/onboard-sync/internal/hrsync"
	"github.com/spf13/cobra"
)

type syncOptions struct {
	actor string
}

func newSyncCommand(opts *RootOptions) *cobra.Command {
	so := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Compare HR records with the directory and apply differences",
	}
	cmd.PersistentFlags().StringVar(&so.actor, "actor", "cli", "name recorded as performedBy in the audit log")

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Dry run over every HR record; nothing is written",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, so, hrsync.ModeTest, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "manual EMPLOYEE_ID...",
		Short: "Apply differences for the named employees",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, so, hrsync.ModeManual, args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "full",
		Short: "Apply differences for every HR record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, so, hrsync.ModeFull, nil)
		},
	})
	return cmd
}

func runSync(cmd *cobra.Command, opts *RootOptions, so *syncOptions, mode hrsync.Mode, ids []string) error {
	ctx := audit.WithActor(commandContext(cmd), so.actor)
	return withApp(ctx, opts, func(a *app) error {
		results, runErr := a.engine.Run(ctx, mode, ids)
		if results == nil && runErr != nil {
			return runErr
		}
		if err := printSyncResults(cmd.OutOrStdout(), opts.Format, mode, results, runErr); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}
		if failed := hrsync.Summarize(results).Failed; failed > 0 {
			return fmt.Errorf("%d employee(s) failed", failed)
		}
		return nil
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
