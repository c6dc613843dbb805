package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"npbc-dashboard/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	// version needs no configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "version: %s\ncommit: %s\nbuilt: %s\ngo: %s\nuser-agent: %s\n",
			version.Version, version.Commit, version.BuildDate, runtime.Version(), version.UserAgent())
	},
}
