package cli

import (
	"fmt"

	"github.com/matthewdavidson09/onboard-sync/internal/security"
	"github.com/spf13/cobra"
)

func newAuditCommand(opts *RootOptions) *cobra.Command {
	var (
		employeeID string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent provisioning and sync events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			return withApp(ctx, opts, func(a *app) error {
				events, err := a.store.Audit().List(ctx, employeeID, limit)
				if err != nil {
					return err
				}
				return printAuditEvents(cmd.OutOrStdout(), opts.Format, events)
			})
		},
	}
	cmd.Flags().StringVar(&employeeID, "employee", "", "only events for this employee id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of events")
	return cmd
}

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new random value for SECRET_ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := security.GenerateKey()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}
}
