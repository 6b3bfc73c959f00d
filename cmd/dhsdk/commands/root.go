package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	endpoint   string
	localMode  bool
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dhsdk",
		Short: "dhsdk - DigitalHub platform client",
		Long: `dhsdk manages projects, entities and runs on a DigitalHub backend.

Connection settings come from, in increasing priority:
  - built-in defaults
  - DHCORE_* environment variables
  - the file given with --config
  - command line flags

With --local the commands work against an in-memory backend that lives for
the duration of the process; "dhsdk serve" exposes one over HTTP.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "backend endpoint (overrides DHCORE_ENDPOINT)")
	rootCmd.PersistentFlags().BoolVar(&localMode, "local", false, "use an in-memory backend")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newProjectCommand())
	rootCmd.AddCommand(newEntityCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newArtifactCommand())
	rootCmd.AddCommand(newServeCommand(version))

	return rootCmd
}
