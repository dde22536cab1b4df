package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilnhq/kiln/internal/ir"
	"github.com/kilnhq/kiln/internal/logging"
	"github.com/kilnhq/kiln/internal/provider"
)

// Engine turns declarations into plans and walks plans against adapters.
type Engine struct {
	registry *provider.Registry

	// Region is recorded into snapshots so resources remain deletable
	// after their declaration is gone.
	Region string

	// Retry governs transient-failure handling during execution.
	Retry *RetryPolicy

	// Parallelism bounds the number of concurrent adapter calls.
	Parallelism int
}

func New(registry *provider.Registry) *Engine {
	return &Engine{
		registry:    registry,
		Retry:       DefaultRetryPolicy(),
		Parallelism: DefaultParallelism,
	}
}

// Adapter exposes the registered adapter for a resource type. Used by
// callers that read live resources outside a plan, such as drift checks.
func (e *Engine) Adapter(typ ir.ResourceType) (provider.Adapter, error) {
	return e.registry.Get(typ)
}

// BuildPlan diffs declared resources against the recorded snapshots and
// produces a dependency-ordered execution plan. Creates and updates come
// first in creation order; deletes of undeclared resources follow in
// reverse dependency order.
func (e *Engine) BuildPlan(resources []*ir.Resource, snapshots map[string]*ir.Snapshot) (*ir.Plan, error) {
	graph, err := BuildGraph(resources)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*ir.Resource, len(resources))
	for _, res := range resources {
		byID[res.ID] = res
	}

	plan := &ir.Plan{CreatedAt: time.Now().UTC()}

	order := graph.Order()
	if len(order) != len(resources) {
		// Unreachable after validation; kept as a defensive check.
		return nil, fmt.Errorf("%w: topological order covers %d of %d resources",
			ir.ErrPlanning, len(order), len(resources))
	}

	for _, id := range order {
		res, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: ordered id %q missing from declarations", ir.ErrPlanning, id)
		}

		step := &ir.Step{Resource: res}
		snap, recorded := snapshots[id]
		switch {
		case !recorded:
			step.Action = ir.ActionCreate
			plan.Summary.Create++
		case snap.ConfigHash != ir.ConfigHash(res):
			step.Action = ir.ActionUpdate
			step.Prior = snap
			plan.Summary.Update++
		default:
			step.Action = ir.ActionNoOp
			step.Prior = snap
			plan.Summary.NoOp++
		}
		plan.Steps = append(plan.Steps, step)
	}

	deletes, err := e.planDeletes(byID, snapshots)
	if err != nil {
		return nil, err
	}
	plan.Steps = append(plan.Steps, deletes...)
	plan.Summary.Delete = len(deletes)

	logging.Debug("plan built",
		"create", plan.Summary.Create,
		"update", plan.Summary.Update,
		"delete", plan.Summary.Delete,
		"noop", plan.Summary.NoOp)

	return plan, nil
}

// planDeletes finds snapshots with no matching declaration and orders
// their removal so dependents go before their dependencies.
func (e *Engine) planDeletes(declared map[string]*ir.Resource, snapshots map[string]*ir.Snapshot) ([]*ir.Step, error) {
	doomed := make(map[string]*ir.Snapshot)
	for id, snap := range snapshots {
		if _, ok := declared[id]; !ok {
			doomed[id] = snap
		}
	}
	if len(doomed) == 0 {
		return nil, nil
	}

	// Rebuild a graph from the dependency lists recorded at apply time,
	// restricted to the doomed set: anything still declared stays put.
	ids := make([]string, 0, len(doomed))
	for id := range doomed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	synthetic := make([]*ir.Resource, 0, len(ids))
	for _, id := range ids {
		var deps []string
		for _, dep := range doomed[id].Dependencies {
			if _, ok := doomed[dep]; ok {
				deps = append(deps, dep)
			}
		}
		synthetic = append(synthetic, &ir.Resource{
			ID:        id,
			Type:      doomed[id].Type,
			DependsOn: deps,
		})
	}

	graph, err := BuildGraph(synthetic)
	if err != nil {
		// Snapshot dependency lists were produced by a validated run.
		return nil, fmt.Errorf("%w: snapshot dependency graph: %v", ir.ErrPlanning, err)
	}

	order := graph.Order()
	steps := make([]*ir.Step, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		steps = append(steps, &ir.Step{
			Resource: &ir.Resource{ID: id, Type: doomed[id].Type},
			Action:   ir.ActionDelete,
			Prior:    doomed[id],
		})
	}
	return steps, nil
}
