package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kilnhq/kiln/internal/ir"
	"github.com/kilnhq/kiln/internal/logging"
)

// ErrPartialFailure marks a run in which some steps failed or were
// skipped while others succeeded.
var ErrPartialFailure = errors.New("partial failure")

var (
	declFile  string
	statePath string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "Declarative cloud provisioning",
	Long: `Kiln provisions cloud resources from a declarative YAML file.

It builds a dependency graph from your declarations, computes the
minimal set of changes against recorded state, and applies them in
dependency order with bounded parallelism.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an Execute error onto the process exit code: 0 for
// success, 2 for validation failures, 1 for everything else including
// partial failures.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ir.ErrValidation):
		return 2
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&declFile, "file", "f", "kiln.yaml", "Declaration file to load")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "State location (local path or s3:// URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(versionCmd)
}
