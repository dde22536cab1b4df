package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilnhq/kiln/internal/ir"
)

var refreshPrune bool

var refreshCmd = &cobra.Command{
	Use:   "refresh [file]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Detect drift between state and reality",
	Long: `Reads every resource recorded in state back from the provider and
reports drift: resources that vanished or whose live attributes differ
from the declaration. State is only modified with --prune.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshPrune, "prune", false, "Drop state entries for resources that no longer exist")
}

func runRefresh(cmd *cobra.Command, args []string) error {
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
	if len(snapshots) == 0 {
		fmt.Println("State is empty.")
		return nil
	}

	ids := make([]string, 0, len(snapshots))
	for id := range snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	declared := make(map[string]*ir.Resource, len(rt.decl.Resources))
	for _, r := range rt.decl.Resources {
		declared[r.ID] = r
	}

	missing, drifted := 0, 0
	for _, id := range ids {
		snap := snapshots[id]
		adapter, err := rt.eng.Adapter(snap.Type)
		if err != nil {
			return err
		}

		live, err := adapter.Read(ctx, snap.ExternalID)
		if err != nil {
			fmt.Printf("%s  ? %s: read failed: %v%s\n", colorYellow, id, err, colorReset)
			continue
		}
		if live == nil {
			missing++
			fmt.Printf("%s  ✗ %s (%s): gone from the provider%s\n", colorRed, id, snap.ExternalID, colorReset)
			if refreshPrune {
				if err := rt.store.Delete(id); err != nil {
					return err
				}
				fmt.Printf("    removed from state\n")
			}
			continue
		}
		if res, ok := declared[id]; ok {
			if changed := driftedAttrs(res.Attributes, live); len(changed) > 0 {
				drifted++
				fmt.Printf("%s  ~ %s (%s): %s differ from the declaration%s\n",
					colorYellow, id, snap.ExternalID, strings.Join(changed, ", "), colorReset)
				continue
			}
		}
		fmt.Printf("%s  ✓ %s (%s)%s\n", colorGreen, id, snap.ExternalID, colorReset)
	}

	if missing == 0 && drifted == 0 {
		fmt.Println("\nNo drift detected.")
		return nil
	}
	if drifted > 0 {
		fmt.Printf("\n%d resources have drifted. Run apply to reconcile them.\n", drifted)
	}
	if missing > 0 && !refreshPrune {
		fmt.Printf("\n%d resources are gone. Re-run with --prune to drop them from state.\n", missing)
	}
	return nil
}

// driftedAttrs returns the declared attribute keys whose live value no
// longer matches. Reference values are skipped: they resolve to
// external ids at apply time and never compare equal to the raw string.
// Keys absent from the live view are skipped too, since providers do
// not echo every input back.
func driftedAttrs(declared, live map[string]any) []string {
	var changed []string
	for k, want := range declared {
		if s, ok := want.(string); ok && strings.HasPrefix(s, "ref://") {
			continue
		}
		got, ok := live[k]
		if !ok {
			continue
		}
		if fmt.Sprint(want) != fmt.Sprint(got) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
