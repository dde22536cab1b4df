package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kilnhq/kiln/internal/ir"
	"github.com/kilnhq/kiln/internal/logging"
	"github.com/kilnhq/kiln/internal/state"
)

// Run walks a plan, issuing adapter calls for each step. Independent
// subgraphs execute concurrently under the configured parallelism; a
// step never starts before every step it depends on has succeeded.
//
// A permanent failure fails the step and skips its transitive
// dependents while sibling subtrees continue. The snapshot store is
// updated after every confirmed success, before any dependent starts,
// so a crash mid-run leaves state consistent with reality, never ahead
// of it. Run reports per-step outcomes rather than aborting on first
// error; the returned error is reserved for infrastructure failures.
func (e *Engine) Run(ctx context.Context, plan *ir.Plan, store state.Store) (*ir.RunResult, error) {
	result := &ir.RunResult{StartTime: time.Now().UTC()}

	var forward, deletes []*ir.Step
	for _, step := range plan.Steps {
		switch step.Action {
		case ir.ActionNoOp:
			// Nothing to call, but an edge-only edit leaves the config
			// hash unchanged while the recorded dependency list is
			// stale, which would corrupt later delete ordering.
			if err := e.refreshDependencies(step, store); err != nil {
				result.Record(ir.StepResult{
					ResourceID: step.Resource.ID,
					Action:     ir.ActionNoOp,
					Outcome:    ir.OutcomeFailed,
					Error:      err.Error(),
				})
				continue
			}
			result.Record(ir.StepResult{
				ResourceID: step.Resource.ID,
				Action:     ir.ActionNoOp,
				Outcome:    ir.OutcomeSucceeded,
				ExternalID: step.Prior.ExternalID,
			})
		case ir.ActionDelete:
			deletes = append(deletes, step)
		default:
			forward = append(forward, step)
		}
	}

	e.runPool(ctx, forward, forwardDeps(forward), store, result)
	e.runPool(ctx, deletes, deleteDeps(deletes), store, result)

	result.EndTime = time.Now().UTC()
	result.Duration = result.EndTime.Sub(result.StartTime)

	logging.Info("run finished",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", result.Duration.String())

	return result, nil
}

// refreshDependencies rewrites a NoOp step's snapshot when the current
// dependency edges no longer match the recorded ones. The hash and
// external id are untouched; only the edge list and timestamp change.
func (e *Engine) refreshDependencies(step *ir.Step, store state.Store) error {
	deps := resourceDeps(step.Resource)
	if slices.Equal(deps, step.Prior.Dependencies) {
		return nil
	}
	snap := *step.Prior
	snap.Dependencies = deps
	snap.UpdatedAt = time.Now().UTC()
	if err := store.Put(step.Resource.ID, &snap); err != nil {
		return fmt.Errorf("record snapshot for %s: %w", step.Resource.ID, err)
	}
	logging.Debug("dependencies refreshed", "resource", step.Resource.ID)
	return nil
}

// forwardDeps maps each create/update step to the steps it must wait
// for. Only steps present in the batch count: dependencies that planned
// as NoOp are already satisfied.
func forwardDeps(steps []*ir.Step) map[string][]string {
	inBatch := make(map[string]bool, len(steps))
	for _, s := range steps {
		inBatch[s.Resource.ID] = true
	}

	deps := make(map[string][]string, len(steps))
	for _, s := range steps {
		for _, dep := range resourceDeps(s.Resource) {
			if inBatch[dep] {
				deps[s.Resource.ID] = append(deps[s.Resource.ID], dep)
			}
		}
	}
	return deps
}

// deleteDeps inverts the recorded dependency edges: a resource may only
// be deleted after everything that depended on it is gone.
func deleteDeps(steps []*ir.Step) map[string][]string {
	inBatch := make(map[string]bool, len(steps))
	for _, s := range steps {
		inBatch[s.Resource.ID] = true
	}

	deps := make(map[string][]string, len(steps))
	for _, s := range steps {
		if s.Prior == nil {
			continue
		}
		for _, dep := range s.Prior.Dependencies {
			if inBatch[dep] {
				deps[dep] = append(deps[dep], s.Resource.ID)
			}
		}
	}
	return deps
}

// runPool executes a batch of steps respecting the given wait-for map.
func (e *Engine) runPool(ctx context.Context, steps []*ir.Step, deps map[string][]string, store state.Store, result *ir.RunResult) {
	if len(steps) == 0 {
		return
	}

	parallelism := e.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	var (
		mu        sync.Mutex
		cond      = sync.NewCond(&mu)
		completed = make(map[string]bool)
		failed    = make(map[string]bool)
		sem       = make(chan struct{}, parallelism)
		wg        sync.WaitGroup
	)

	record := func(res ir.StepResult) {
		mu.Lock()
		result.Record(res)
		mu.Unlock()
	}

	for _, step := range steps {
		wg.Add(1)
		go func(s *ir.Step) {
			defer wg.Done()
			id := s.Resource.ID

			mu.Lock()
			for {
				if ctx.Err() != nil {
					failed[id] = true
					result.Record(ir.StepResult{
						ResourceID: id,
						Action:     s.Action,
						Outcome:    ir.OutcomeSkipped,
						SkipReason: "run cancelled",
					})
					mu.Unlock()
					cond.Broadcast()
					return
				}

				var failedDep string
				ready := true
				for _, dep := range deps[id] {
					if failed[dep] {
						failedDep = dep
						break
					}
					if !completed[dep] {
						ready = false
						break
					}
				}
				if failedDep != "" {
					failed[id] = true
					result.Record(ir.StepResult{
						ResourceID: id,
						Action:     s.Action,
						Outcome:    ir.OutcomeSkipped,
						SkipReason: fmt.Sprintf("dependency %s failed", failedDep),
					})
					mu.Unlock()
					cond.Broadcast()
					return
				}
				if ready {
					break
				}
				cond.Wait()
			}
			mu.Unlock()

			sem <- struct{}{}
			start := time.Now()
			externalID, err := e.executeStep(ctx, s, store)
			<-sem

			if err != nil {
				logging.Error("step failed", "resource", id, "action", string(s.Action), "error", err.Error())
				record(ir.StepResult{
					ResourceID: id,
					Action:     s.Action,
					Outcome:    ir.OutcomeFailed,
					Error:      err.Error(),
					Duration:   time.Since(start),
				})
				mu.Lock()
				failed[id] = true
				mu.Unlock()
				cond.Broadcast()
				return
			}

			logging.Debug("step applied", "resource", id, "action", string(s.Action), "external_id", externalID)
			record(ir.StepResult{
				ResourceID: id,
				Action:     s.Action,
				Outcome:    ir.OutcomeSucceeded,
				ExternalID: externalID,
				Duration:   time.Since(start),
			})
			mu.Lock()
			completed[id] = true
			mu.Unlock()
			cond.Broadcast()
		}(step)
	}

	wg.Wait()
}

// executeStep performs one adapter call with retries and commits the
// outcome to the snapshot store before returning.
func (e *Engine) executeStep(ctx context.Context, step *ir.Step, store state.Store) (string, error) {
	adapter, err := e.registry.Get(step.Resource.Type)
	if err != nil {
		return "", err
	}

	switch step.Action {
	case ir.ActionCreate:
		attrs, err := e.resolveRefsMap(step.Resource.Attributes, store)
		if err != nil {
			return "", err
		}
		var externalID string
		err = e.Retry.Do(ctx, func() error {
			var createErr error
			externalID, createErr = adapter.Create(ctx, attrs)
			return createErr
		})
		if err != nil {
			return "", fmt.Errorf("create %s: %w", step.Resource.ID, err)
		}
		snap := &ir.Snapshot{
			Type:         step.Resource.Type,
			Region:       e.Region,
			ConfigHash:   ir.ConfigHash(step.Resource),
			ExternalID:   externalID,
			Dependencies: resourceDeps(step.Resource),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := store.Put(step.Resource.ID, snap); err != nil {
			return "", fmt.Errorf("record snapshot for %s: %w", step.Resource.ID, err)
		}
		return externalID, nil

	case ir.ActionUpdate:
		attrs, err := e.resolveRefsMap(step.Resource.Attributes, store)
		if err != nil {
			return "", err
		}
		err = e.Retry.Do(ctx, func() error {
			return adapter.Update(ctx, step.Prior.ExternalID, attrs)
		})
		if err != nil {
			return "", fmt.Errorf("update %s: %w", step.Resource.ID, err)
		}
		snap := &ir.Snapshot{
			Type:         step.Resource.Type,
			Region:       step.Prior.Region,
			ConfigHash:   ir.ConfigHash(step.Resource),
			ExternalID:   step.Prior.ExternalID,
			Dependencies: resourceDeps(step.Resource),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := store.Put(step.Resource.ID, snap); err != nil {
			return "", fmt.Errorf("record snapshot for %s: %w", step.Resource.ID, err)
		}
		return step.Prior.ExternalID, nil

	case ir.ActionDelete:
		err = e.Retry.Do(ctx, func() error {
			return adapter.Delete(ctx, step.Prior.ExternalID)
		})
		if err != nil {
			return "", fmt.Errorf("delete %s: %w", step.Resource.ID, err)
		}
		if err := store.Delete(step.Resource.ID); err != nil {
			return "", fmt.Errorf("remove snapshot for %s: %w", step.Resource.ID, err)
		}
		return step.Prior.ExternalID, nil

	default:
		return "", fmt.Errorf("%w: unexpected action %q", ir.ErrPlanning, step.Action)
	}
}

// resolveRefs replaces ref:// values with the external id of the
// referenced resource, read back from the snapshot store. Dependencies
// are guaranteed applied by the pool ordering, so a missing snapshot is
// a hard error.
func (e *Engine) resolveRefs(v any, store state.Store) (any, error) {
	switch val := v.(type) {
	case string:
		if !strings.HasPrefix(val, refScheme) {
			return val, nil
		}
		target := RefTarget(val)
		snap, err := store.Get(target)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			return nil, fmt.Errorf("reference %q: no snapshot for %q", val, target)
		}
		return snap.ExternalID, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			resolved, err := e.resolveRefs(item, store)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := e.resolveRefs(item, store)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func (e *Engine) resolveRefsMap(attrs map[string]any, store state.Store) (map[string]any, error) {
	resolved, err := e.resolveRefs(attrs, store)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, nil
	}
	return resolved.(map[string]any), nil
}

// resourceDeps returns the declared plus inferred dependency ids of a
// resource, deduplicated in first-seen order.
func resourceDeps(res *ir.Resource) []string {
	seen := make(map[string]bool)
	var deps []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	}
	for _, dep := range res.DependsOn {
		add(dep)
	}
	for _, ref := range ExtractRefs(res.Attributes) {
		add(RefTarget(ref))
	}
	return deps
}
