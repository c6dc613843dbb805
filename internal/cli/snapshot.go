package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"npbc-dashboard/internal/app"
)

var (
	snapshotRange int
	snapshotJSON  bool
	snapshotRows  int
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run one poll cycle and print the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if snapshotRows < 0 {
			return fmt.Errorf("--rows must not be negative")
		}

		opts := app.SnapshotOptions{
			Range: snapshotRange,
			JSON:  snapshotJSON,
			Rows:  snapshotRows,
		}

		return getApp().Snapshot(cmd.Context(), opts)
	},
}

func init() {
	snapshotCmd.Flags().IntVar(&snapshotRange, "range", 0, "Lookback in hours: 1, 6, 12, 24, 48 or 72 (defaults to config)")
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Print the view as JSON")
	snapshotCmd.Flags().IntVar(&snapshotRows, "rows", 10, "History rows to print; 0 prints all")
}
