package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilnhq/kiln/internal/config"
	"github.com/kilnhq/kiln/internal/engine"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Check the declaration file",
	Long: `Parses the declaration file and builds its dependency graph,
reporting unknown types, duplicate ids, dangling references and cycles
without contacting any provider.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	resolveDeclFile(args)
	decl, err := config.Load(declFile)
	if err != nil {
		return err
	}

	if _, err := engine.BuildGraph(decl.Resources); err != nil {
		return err
	}

	fmt.Printf("Declaration is valid: %d resources.\n", len(decl.Resources))
	return nil
}
