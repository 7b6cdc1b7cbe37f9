package main

import (
	"github.com/spf13/cobra"

	"github.com/okonski/portalwatch/internal/config"
)

func newCheckCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single cycle and exit",
		Long: `Runs one fetch-diff-dispatch cycle and exits. Exit code 2 means new
events were found, for cron-style callers that branch on it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			a, err := buildApp(cfg, dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.runner.Cycle(cmd.Context()); err != nil {
				return err
			}
			if last, ok := a.tracker.Last(); ok && last.New > 0 {
				return errNewEvents
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log what would be dispatched without sending anything")
	return cmd
}
