package main

import (
	"github.com/spf13/cobra"
)

var flagConfig string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portalwatch",
		Short: "Watch a government portal for new and updated events",
		Long: `portalwatch periodically fetches event listings from a government
portal, detects new and updated entries against its persistent store,
and dispatches notifications over email, PDF export and a messaging
webhook.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "portalwatch.yaml", "Path to the configuration file")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}
