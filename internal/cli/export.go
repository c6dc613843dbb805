package cli

import (
	"github.com/spf13/cobra"

	"npbc-dashboard/internal/app"
)

var (
	exportRange  int
	exportDir    string
	exportTheme  string
	exportNoPNG  bool
	exportNoCSV  bool
	exportHidden []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run one poll cycle and write charts as PNG and datasets as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Range:  exportRange,
			Dir:    exportDir,
			Theme:  exportTheme,
			NoPNG:  exportNoPNG,
			NoCSV:  exportNoCSV,
			Hidden: exportHidden,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportRange, "range", 0, "Lookback in hours (defaults to config)")
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "Directory to write files into")
	exportCmd.Flags().StringVar(&exportTheme, "theme", "", "Chart theme: light or dark")
	exportCmd.Flags().BoolVar(&exportNoPNG, "no-png", false, "Skip chart images")
	exportCmd.Flags().BoolVar(&exportNoCSV, "no-csv", false, "Skip CSV files")
	exportCmd.Flags().StringSliceVar(&exportHidden, "hide", nil, "Series to hide in charts, e.g. KTYPE,TBMP")
}
