package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDirectoryCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Inspect the stored directory connection",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the connection settings with the bind secret masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			return withApp(ctx, opts, func(a *app) error {
				cfg, err := a.directory.Get(ctx)
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return printJSON(cmd.OutOrStdout(), cfg)
				}
				table := newTable(cmd.OutOrStdout(), "SERVER", "PORT", "PROTOCOL", "BASE DN", "BIND ACCOUNT", "WORKING OU", "BASELINE GROUP")
				table.Append([]string{cfg.Server, fmt.Sprint(cfg.EffectivePort()), string(cfg.Protocol), cfg.BaseDN, cfg.BindAccount, cfg.WorkingOU, cfg.BaselineGroupName()})
				table.Render()
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Open and bind a session with the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			return withApp(ctx, opts, func(a *app) error {
				if err := a.engine.CheckDirectory(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Directory reachable, bind succeeded")
				return err
			})
		},
	})
	return cmd
}
