package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kilnhq/kiln/internal/config"
	"github.com/kilnhq/kiln/internal/engine"
	"github.com/kilnhq/kiln/internal/ir"
	"github.com/kilnhq/kiln/internal/provider"
	"github.com/kilnhq/kiln/internal/state"
	"github.com/kilnhq/kiln/providers/aws"
	"github.com/kilnhq/kiln/providers/mem"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

const defaultStatePath = ".kiln/state.db"

// resolveDeclFile lets a positional file argument override the -f flag.
func resolveDeclFile(args []string) {
	if len(args) > 0 {
		declFile = args[0]
	}
}

// runtime bundles everything a command needs after loading the
// declaration file.
type runtime struct {
	decl  *config.Declaration
	store state.Store
	eng   *engine.Engine
}

// setup loads the declaration, opens the state store and wires the
// provider registry for the declared provider.
func setup(ctx context.Context) (*runtime, error) {
	decl, err := config.Load(declFile)
	if err != nil {
		return nil, err
	}

	registry := provider.NewRegistry()
	switch decl.Provider {
	case "aws":
		p, err := aws.New(ctx, decl.Region)
		if err != nil {
			return nil, err
		}
		p.Register(registry)
	case "mem":
		mem.New().Register(registry)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ir.ErrValidation, decl.Provider)
	}

	store, err := state.Open(stateLocation(decl))
	if err != nil {
		return nil, err
	}

	eng := engine.New(registry)
	eng.Region = decl.Region

	return &runtime{decl: decl, store: store, eng: eng}, nil
}

// stateLocation resolves the state store location: the --state flag
// wins, then the declaration's state entry, then the local default.
func stateLocation(decl *config.Declaration) string {
	if statePath != "" {
		return statePath
	}
	if decl.State != "" {
		return decl.State
	}
	return defaultStatePath
}

func actionSymbol(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "+"
	case ir.ActionDelete:
		return "-"
	case ir.ActionUpdate:
		return "~"
	default:
		return " "
	}
}

func actionColor(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return colorGreen
	case ir.ActionDelete:
		return colorRed
	case ir.ActionUpdate:
		return colorYellow
	default:
		return colorReset
	}
}

// renderPlan prints the change list followed by a summary.
func renderPlan(plan *ir.Plan) {
	fmt.Println("\nKiln will perform the following actions:")
	for _, step := range plan.Steps {
		if step.Action == ir.ActionNoOp {
			continue
		}
		color := actionColor(step.Action)
		fmt.Printf("%s  %s %s.%s%s\n", color, actionSymbol(step.Action),
			step.Resource.Type, step.Resource.ID, colorReset)

		if step.Action == ir.ActionCreate || step.Action == ir.ActionUpdate {
			keys := make([]string, 0, len(step.Resource.Attributes))
			for k := range step.Resource.Attributes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s      %s = %v%s\n", color, k, step.Resource.Attributes[k], colorReset)
			}
		}
	}
	renderPlanSummary(plan)
}

func renderPlanSummary(plan *ir.Plan) {
	fmt.Println("\nPlan Summary:")
	fmt.Printf("  Create: %d\n", plan.Summary.Create)
	fmt.Printf("  Update: %d\n", plan.Summary.Update)
	fmt.Printf("  Delete: %d\n", plan.Summary.Delete)
	fmt.Printf("  NoOp:   %d\n", plan.Summary.NoOp)
}

// renderRunResult prints per-step outcomes and the closing tally.
func renderRunResult(result *ir.RunResult) {
	fmt.Println()
	for _, res := range result.Results {
		switch res.Outcome {
		case ir.OutcomeSucceeded:
			if res.Action == ir.ActionNoOp {
				continue
			}
			fmt.Printf("%s  ✓ %s: %s complete%s\n", colorGreen, res.ResourceID, res.Action, colorReset)
		case ir.OutcomeFailed:
			fmt.Printf("%s  ✗ %s: %s failed: %s%s\n", colorRed, res.ResourceID, res.Action, res.Error, colorReset)
		case ir.OutcomeSkipped:
			fmt.Printf("%s  - %s: skipped (%s)%s\n", colorYellow, res.ResourceID, res.SkipReason, colorReset)
		}
	}

	fmt.Printf("\nRun complete in %s: %d succeeded, %d failed, %d skipped.\n",
		result.Duration.Round(10*time.Millisecond), result.Succeeded, result.Failed, result.Skipped)
}

// confirm asks for interactive approval on stdin.
func confirm(prompt string) bool {
	fmt.Printf("\n%s (y/n): ", prompt)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
