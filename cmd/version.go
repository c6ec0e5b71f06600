package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/abhisek/diarisk/internal/features"
	"github.com/spf13/cobra"
)

// version is stamped with -ldflags "-X github.com/abhisek/diarisk/cmd.version=...".
var version = ""

// buildVersion falls back to the module version recorded by `go install`.
func buildVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build and feature schema versions",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "diarisk %s (feature schema %s)\n", buildVersion(), features.V1.Version)
	},
}
