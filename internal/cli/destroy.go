package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy [file]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Delete every managed resource",
	Long: `Plans and applies the removal of every resource recorded in state,
in reverse dependency order.`,
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	resolveDeclFile(args)
	ctx := cmd.Context()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	if err := rt.store.Lock(); err != nil {
		return err
	}
	defer rt.store.Unlock()

	snapshots, err := rt.store.All()
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	if len(snapshots) == 0 {
		fmt.Println("Nothing to destroy. State is empty.")
		return nil
	}

	// An empty declaration set turns every snapshot into a delete.
	plan, err := rt.eng.BuildPlan(nil, snapshots)
	if err != nil {
		return err
	}

	renderPlan(plan)

	if !destroyAutoApprove && !confirm(fmt.Sprintf("Destroy all %d resources?", plan.Summary.Delete)) {
		fmt.Println("Destroy cancelled.")
		return nil
	}

	result, err := rt.eng.Run(ctx, plan, rt.store)
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	renderRunResult(result)

	if result.PartialFailure() {
		return fmt.Errorf("%w: %d failed, %d skipped", ErrPartialFailure, result.Failed, result.Skipped)
	}
	return nil
}
