package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	applyAutoApprove bool
	applyParallelism int
	applyTimeout     time.Duration
)

var applyCmd = &cobra.Command{
	Use:   "apply [file]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Apply the declaration",
	Long: `Creates, updates and deletes resources until reality matches the
declaration file. State is locked for the duration of the run and a
snapshot is persisted after every confirmed change.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of the plan")
	applyCmd.Flags().IntVar(&applyParallelism, "parallelism", 0, "Maximum concurrent operations (default 10)")
	applyCmd.Flags().DurationVar(&applyTimeout, "timeout", 0, "Abort the run after this duration (remaining steps are skipped)")
}

func runApply(cmd *cobra.Command, args []string) error {
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

	plan, err := rt.eng.BuildPlan(rt.decl.Resources, snapshots)
	if err != nil {
		return err
	}

	if !plan.HasChanges() {
		fmt.Println("No changes. Infrastructure matches the declaration.")
		return nil
	}

	renderPlan(plan)

	if !applyAutoApprove && !confirm("Do you want to perform these actions?") {
		fmt.Println("Apply cancelled.")
		return nil
	}

	if applyParallelism > 0 {
		rt.eng.Parallelism = applyParallelism
	}

	runCtx := ctx
	if applyTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, applyTimeout)
		defer cancel()
	}

	result, err := rt.eng.Run(runCtx, plan, rt.store)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}

	renderRunResult(result)

	if result.PartialFailure() {
		return fmt.Errorf("%w: %d failed, %d skipped", ErrPartialFailure, result.Failed, result.Skipped)
	}
	return nil
}
