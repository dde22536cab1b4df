package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kilnhq/kiln/internal/config"
	"github.com/kilnhq/kiln/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and modify recorded state",
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every resource in state",
	RunE:  runStateList,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the recorded snapshot of a resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

var stateRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Forget a resource without deleting it",
	Long: `Removes a resource from state without touching the real resource.
Kiln stops managing it; a later apply will treat a matching declaration
as a brand new resource.`,
	Args: cobra.ExactArgs(1),
	RunE: runStateRm,
}

func init() {
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateRmCmd)
}

// openStateStore opens the store without requiring a valid provider
// config, since state inspection never talks to the cloud.
func openStateStore() (state.Store, error) {
	location := statePath
	if location == "" {
		if decl, err := config.Load(declFile); err == nil && decl.State != "" {
			location = decl.State
		} else {
			location = defaultStatePath
		}
	}
	return state.Open(location)
}

func runStateList(cmd *cobra.Command, args []string) error {
	store, err := openStateStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snapshots, err := store.All()
	if err != nil {
		return err
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

	for _, id := range ids {
		snap := snapshots[id]
		fmt.Printf("%-30s %-16s %s\n", id, snap.Type, snap.ExternalID)
	}
	return nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	store, err := openStateStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Get(args[0])
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("no resource %q in state", args[0])
	}

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

func runStateRm(cmd *cobra.Command, args []string) error {
	store, err := openStateStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Lock(); err != nil {
		return err
	}
	defer store.Unlock()

	snap, err := store.Get(args[0])
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("no resource %q in state", args[0])
	}

	if err := store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s from state. The real resource was not touched.\n", args[0])
	return nil
}
