package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilnhq/kiln/internal/config"
	"github.com/kilnhq/kiln/internal/engine"
)

var graphOutFile string

var graphCmd = &cobra.Command{
	Use:   "graph [file]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Print the dependency graph in DOT format",
	Long: `Builds the dependency graph of the declaration file and writes it
in Graphviz DOT format, suitable for piping into dot -Tsvg.`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVarP(&graphOutFile, "out", "o", "", "Write the graph to a file instead of stdout")
}

func runGraph(cmd *cobra.Command, args []string) error {
	resolveDeclFile(args)
	decl, err := config.Load(declFile)
	if err != nil {
		return err
	}

	graph, err := engine.BuildGraph(decl.Resources)
	if err != nil {
		return err
	}

	out := os.Stdout
	if graphOutFile != "" {
		f, err := os.Create(graphOutFile)
		if err != nil {
			return fmt.Errorf("failed to create graph file: %w", err)
		}
		defer f.Close()
		out = f
	}

	graph.Dot(out, "kiln")
	return nil
}
