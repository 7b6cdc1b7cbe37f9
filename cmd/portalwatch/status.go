package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/okonski/portalwatch/internal/config"
	"github.com/okonski/portalwatch/internal/store"
)

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the outcome of the last completed cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid format %q (must be text or json)", format)
			}

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Store.Path, zerolog.Nop())
			if err != nil {
				return err
			}
			defer st.Close()

			rec, ok, err := st.LastCycle(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("No cycle has completed yet.")
				return nil
			}
			return printCycle(rec, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func printCycle(rec store.CycleRecord, format string) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"started_at":        rec.StartedAt.Format(time.RFC3339),
			"finished_at":       rec.FinishedAt.Format(time.RFC3339),
			"outcome":           rec.Outcome,
			"new":               rec.New,
			"updated":           rec.Updated,
			"unchanged":         rec.Unchanged,
			"failed_deliveries": rec.FailedDeliveries,
			"error":             rec.Error,
		})
	}

	fmt.Printf("Last cycle: %s (%s)\n", rec.FinishedAt.Local().Format("2 Jan 2006 15:04:05"), rec.Outcome)
	fmt.Printf("  new: %d  updated: %d  unchanged: %d\n", rec.New, rec.Updated, rec.Unchanged)
	if rec.FailedDeliveries > 0 {
		fmt.Printf("  failed deliveries: %d\n", rec.FailedDeliveries)
	}
	if rec.Error != "" {
		fmt.Printf("  error: %s\n", rec.Error)
	}
	return nil
}
