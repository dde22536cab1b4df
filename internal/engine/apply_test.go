package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnhq/kiln/internal/ir"
	"github.com/kilnhq/kiln/internal/state"
)

func tempStateStore(t *testing.T) state.Store {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "kiln.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunCreatePersistsSnapshotsAndResolvesRefs(t *testing.T) {
	e, p := newTestEngine()
	store := tempStateStore(t)

	vpc := res("vpc-main", ir.TypeVPC, map[string]any{"name": "main", "cidr_block": "10.0.0.0/16"})
	sub := res("sub-a", ir.TypeSubnet, map[string]any{"name": "a", "vpc_id": "ref://vpc-main/id"})

	plan, err := e.BuildPlan([]*ir.Resource{vpc, sub}, nil)
	require.NoError(t, err)

	result, err := e.Run(context.Background(), plan, store)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.False(t, result.PartialFailure())

	vpcSnap, err := store.Get("vpc-main")
	require.NoError(t, err)
	require.NotNil(t, vpcSnap)
	assert.NotEmpty(t, vpcSnap.ExternalID)
	assert.Equal(t, ir.ConfigHash(vpc), vpcSnap.ConfigHash)
	assert.Equal(t, "us-east-1", vpcSnap.Region)

	subSnap, err := store.Get("sub-a")
	require.NoError(t, err)
	require.NotNil(t, subSnap)
	assert.Equal(t, []string{"vpc-main"}, subSnap.Dependencies)

	// The subnet was created with the vpc's real id, not the ref.
	attrs, ok := p.Object(subSnap.ExternalID)
	require.True(t, ok)
	assert.Equal(t, vpcSnap.ExternalID, attrs["vpc_id"])
}

func TestRunPermanentFailureSkipsSubtreeWhileSiblingsContinue(t *testing.T) {
	e, p := newTestEngine()
	store := tempStateStore(t)
	p.Fail("bad", &ir.PermanentAPIError{Err: errors.New("access denied")})

	plan, err := e.BuildPlan([]*ir.Resource{
		res("vpc-bad", ir.TypeVPC, map[string]any{"name": "bad"}),
		res("sub-a", ir.TypeSubnet, map[string]any{"name": "a"}, "vpc-bad"),
		res("web-1", ir.TypeEC2Instance, map[string]any{"name": "web"}, "sub-a"),
		res("repo-api", ir.TypeECRRepository, map[string]any{"name": "api"}),
	}, nil)
	require.NoError(t, err)

	result, err := e.Run(context.Background(), plan, store)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Succeeded)
	assert.True(t, result.PartialFailure())
	assert.Equal(t, []string{"vpc-bad"}, result.FailedIDs())

	outcomes := make(map[string]ir.StepResult)
	for _, r := range result.Results {
		outcomes[r.ResourceID] = r
	}
	assert.Equal(t, ir.OutcomeSkipped, outcomes["sub-a"].Outcome)
	assert.Contains(t, outcomes["sub-a"].SkipReason, "vpc-bad")
	assert.Equal(t, ir.OutcomeSkipped, outcomes["web-1"].Outcome)
	assert.Equal(t, ir.OutcomeSucceeded, outcomes["repo-api"].Outcome)

	// Only the sibling made it into state.
	snap, err := store.Get("repo-api")
	require.NoError(t, err)
	assert.NotNil(t, snap)
	snap, err = store.Get("vpc-bad")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	e, p := newTestEngine()
	store := tempStateStore(t)
	p.FailTimes("flaky", 2, &ir.TransientAPIError{Err: errors.New("throttled")})

	plan, err := e.BuildPlan([]*ir.Resource{
		res("repo-flaky", ir.TypeECRRepository, map[string]any{"name": "flaky"}),
	}, nil)
	require.NoError(t, err)

	result, err := e.Run(context.Background(), plan, store)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 3, p.CallCount("create"))
}

func TestRunTransientExhaustionFailsStep(t *testing.T) {
	e, p := newTestEngine()
	store := tempStateStore(t)
	p.Fail("flaky", &ir.TransientAPIError{Err: errors.New("throttled")})

	plan, err := e.BuildPlan([]*ir.Resource{
		res("repo-flaky", ir.TypeECRRepository, map[string]any{"name": "flaky"}),
	}, nil)
	require.NoError(t, err)

	result, err := e.Run(context.Background(), plan, store)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, e.Retry.MaxAttempts, p.CallCount("create"))
	assert.Contains(t, result.Results[0].Error, "max attempts")
}

func TestRunNoOpStepsMakeNoAdapterCalls(t *testing.T) {
	e, p := newTestEngine()
	store := tempStateStore(t)

	vpc := res("vpc-main", ir.TypeVPC, map[string]any{"cidr_block": "10.0.0.0/16"})
	snapshots := map[string]*ir.Snapshot{"vpc-main": snapshotFor(vpc, "vpc-1")}

	plan, err := e.BuildPlan([]*ir.Resource{vpc}, snapshots)
	require.NoError(t, err)

	result, err := e.Run(context.Background(), plan, store)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Empty(t, p.Calls())
	assert.Equal(t, "vpc-1", result.Results[0].ExternalID)
}

func TestRunNoOpRefreshesRecordedDependencies(t *testing.T) {
	e, p := newTestEngine()
	store := tempStateStore(t)

	vpc := res("vpc-main", ir.TypeVPC, map[string]any{"name": "main"})
	sub := res("sub-a", ir.TypeSubnet, map[string]any{"name": "a"})

	plan, err := e.BuildPlan([]*ir.Resource{vpc, sub}, nil)
	require.NoError(t, err)
	_, err = e.Run(context.Background(), plan, store)
	require.NoError(t, err)

	// Adding only a depends_on edge leaves the config hash unchanged,
	// so the second apply is all NoOp. The recorded dependency list
	// must still pick up the new edge.
	subEdge := res("sub-a", ir.TypeSubnet, map[string]any{"name": "a"}, "vpc-main")
	snapshots, err := store.All()
	require.NoError(t, err)

	plan2, err := e.BuildPlan([]*ir.Resource{vpc, subEdge}, snapshots)
	require.NoError(t, err)
	assert.False(t, plan2.HasChanges())

	calls := len(p.Calls())
	result, err := e.Run(context.Background(), plan2, store)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Len(t, p.Calls(), calls)

	subSnap, err := store.Get("sub-a")
	require.NoError(t, err)
	require.NotNil(t, subSnap)
	assert.Equal(t, []string{"vpc-main"}, subSnap.Dependencies)

	vpcSnap, err := store.Get("vpc-main")
	require.NoError(t, err)
	require.NotNil(t, vpcSnap)

	// A later destroy orders deletes from the recorded lists, so the
	// subnet must go before the vpc it now depends on.
	snapshots, err = store.All()
	require.NoError(t, err)
	destroy, err := e.BuildPlan(nil, snapshots)
	require.NoError(t, err)

	_, err = e.Run(context.Background(), destroy, store)
	require.NoError(t, err)

	var deleted []string
	for _, c := range p.Calls()[calls:] {
		require.Equal(t, "delete", c.Op)
		deleted = append(deleted, c.ExternalID)
	}
	assert.Equal(t, []string{subSnap.ExternalID, vpcSnap.ExternalID}, deleted)
}

func TestRunDeletesDependentsFirst(t *testing.T) {
	e, p := newTestEngine()
	store := tempStateStore(t)

	require.NoError(t, store.Put("vpc-main", &ir.Snapshot{Type: ir.TypeVPC, ExternalID: "vpc-1"}))
	require.NoError(t, store.Put("sub-a", &ir.Snapshot{Type: ir.TypeSubnet, ExternalID: "subnet-1", Dependencies: []string{"vpc-main"}}))
	require.NoError(t, store.Put("web-1", &ir.Snapshot{Type: ir.TypeEC2Instance, ExternalID: "i-1", Dependencies: []string{"sub-a"}}))

	snapshots, err := store.All()
	require.NoError(t, err)

	plan, err := e.BuildPlan(nil, snapshots)
	require.NoError(t, err)

	result, err := e.Run(context.Background(), plan, store)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Succeeded)

	var deleted []string
	for _, c := range p.Calls() {
		require.Equal(t, "delete", c.Op)
		deleted = append(deleted, c.ExternalID)
	}
	assert.Equal(t, []string{"i-1", "subnet-1", "vpc-1"}, deleted)

	remaining, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRunCancelledContextSkipsSteps(t *testing.T) {
	e, p := newTestEngine()
	store := tempStateStore(t)

	plan, err := e.BuildPlan([]*ir.Resource{
		res("vpc-main", ir.TypeVPC, map[string]any{"name": "main"}),
		res("sub-a", ir.TypeSubnet, map[string]any{"name": "a"}, "vpc-main"),
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Run(ctx, plan, store)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, p.Calls())
	for _, r := range result.Results {
		assert.Equal(t, "run cancelled", r.SkipReason)
	}
}
