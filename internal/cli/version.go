package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/ankek/mermaid-studio/internal/cli.Version=...".
var Version = "dev"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	// The version needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string]string{
				"version": Version,
				"go":      runtime.Version(),
			})
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "mermaid-studio %s (%s)\n", Version, runtime.Version())
		return err
	},
}
