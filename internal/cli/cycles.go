package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"npbc-dashboard/internal/app"
)

var (
	cyclesLimit int
)

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Display recently journaled poll cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cyclesLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		return getApp().Cycles(cmd.Context(), app.CyclesOptions{Limit: cyclesLimit})
	},
}

func init() {
	cyclesCmd.Flags().IntVar(&cyclesLimit, "limit", 20, "Number of cycles to display")
}
