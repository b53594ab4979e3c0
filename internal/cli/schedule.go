package cli

import (
	"github.com/matthewdavidson09/onboard-sync/internal/schedule"
	"github.com/spf13/cobra"
)

func newScheduleCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show or change the recurring full sync",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			return withApp(ctx, opts, func(a *app) error {
				state, err := a.schedule.Get(ctx)
				if err != nil {
					return err
				}
				return printSchedule(cmd.OutOrStdout(), opts.Format, state)
			})
		},
	})

	var (
		enabled   bool
		frequency string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Enable or disable the schedule and set its frequency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			return withApp(ctx, opts, func(a *app) error {
				state, err := a.schedule.Update(ctx, enabled, schedule.ParseFrequency(frequency))
				if err != nil {
					return err
				}
				return printSchedule(cmd.OutOrStdout(), opts.Format, state)
			})
		},
	}
	set.Flags().BoolVar(&enabled, "enabled", false, "run the full sync on the schedule")
	set.Flags().StringVar(&frequency, "frequency", "", "daily, weekly or monthly (empty keeps the current value)")
	_ = set.MarkFlagRequired("enabled")
	cmd.AddCommand(set)
	return cmd
}
