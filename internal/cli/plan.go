package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var planOutFile string

var planCmd = &cobra.Command{
	Use:   "plan [file]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Show what an apply would change",
	Long: `Computes the difference between the declaration file and recorded
state and prints the resulting execution plan without touching any
resource.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOutFile, "out", "o", "", "Write the plan as JSON to a file")
}

func runPlan(cmd *cobra.Command, args []string) error {
	resolveDeclFile(args)
	ctx := cmd.Context()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	snapshots, err := rt.store.All()
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	plan, err := rt.eng.BuildPlan(rt.decl.Resources, snapshots)
	if err != nil {
		return err
	}

	if !plan.HasChanges() {
		fmt.Println("No changes. Infrastructure matches the declaration.")
		return nil
	}

	renderPlan(plan)

	if planOutFile != "" {
		raw, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		if err := os.WriteFile(planOutFile, raw, 0644); err != nil {
			return fmt.Errorf("failed to write plan file: %w", err)
		}
		fmt.Printf("\nPlan written to %s\n", planOutFile)
	}

	return nil
}
