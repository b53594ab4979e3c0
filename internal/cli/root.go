// Package cli is the onboard-sync command line.
package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/matthewdavidson09/onboard-sync/internal/config"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Format  string // "text" | "json"
	Verbose bool

	logCloser   io.Closer
	sessionOpts []ldapclient.Option
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "onboard-sync",
		Short:         "Keep Active Directory in step with HR records",
		Long:          "Synchronises HR attributes onto directory accounts, provisions new hires and runs the sync on a schedule.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := config.LoadDotEnv(opts.EnvFile); err != nil {
				return err
			}
			logCfg := tools.LogConfigFromEnv()
			if opts.Verbose {
				logCfg.Level = logrus.DebugLevel.String()
			}
			opts.logCloser = tools.ConfigureLogger(logCfg)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logCloser != nil {
				return opts.logCloser.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newScheduleCommand(opts))
	cmd.AddCommand(newProvisionCommand(opts))
	cmd.AddCommand(newDirectoryCommand(opts))
	cmd.AddCommand(newAuditCommand(opts))
	cmd.AddCommand(newKeygenCommand())
	return cmd
}
