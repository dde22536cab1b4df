package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnhq/kiln/internal/config"
	"github.com/kilnhq/kiln/internal/ir"
	"github.com/kilnhq/kiln/internal/state"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"success", nil, 0},
		{"validation error", fmt.Errorf("bad file: %w", ir.ErrValidation), 2},
		{"cycle error", &ir.CycleError{Involved: []string{"a"}}, 2},
		{"partial failure", fmt.Errorf("%w: 1 failed", ErrPartialFailure), 1},
		{"generic error", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExitCode(tt.err))
		})
	}
}

func TestActionSymbol(t *testing.T) {
	assert.Equal(t, "+", actionSymbol(ir.ActionCreate))
	assert.Equal(t, "~", actionSymbol(ir.ActionUpdate))
	assert.Equal(t, "-", actionSymbol(ir.ActionDelete))
	assert.Equal(t, " ", actionSymbol(ir.ActionNoOp))
}

func TestActionColor(t *testing.T) {
	assert.Equal(t, colorGreen, actionColor(ir.ActionCreate))
	assert.Equal(t, colorRed, actionColor(ir.ActionDelete))
	assert.Equal(t, colorYellow, actionColor(ir.ActionUpdate))
	assert.Equal(t, colorReset, actionColor(ir.ActionNoOp))
}

func TestStateLocationPrecedence(t *testing.T) {
	defer func() { statePath = "" }()

	decl := &config.Declaration{State: "s3://bucket/state.json"}

	statePath = "/tmp/override.db"
	assert.Equal(t, "/tmp/override.db", stateLocation(decl))

	statePath = ""
	assert.Equal(t, "s3://bucket/state.json", stateLocation(decl))

	assert.Equal(t, defaultStatePath, stateLocation(&config.Declaration{}))
}

func TestSetupRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kiln.yaml")
	content := "version: \"1\"\nprovider: gcp\nresources: []\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	orig := declFile
	declFile = path
	defer func() { declFile = orig }()

	_, err := setup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrValidation)
	assert.Contains(t, err.Error(), "gcp")
}

func TestSetupWithMemProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kiln.yaml")
	content := "version: \"1\"\n" +
		"provider: mem\n" +
		"state: " + filepath.Join(dir, "state.db") + "\n" +
		"resources:\n" +
		"  - id: repo-api\n" +
		"    type: ecr_repository\n" +
		"    attributes:\n" +
		"      name: api\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	orig := declFile
	declFile = path
	defer func() { declFile = orig }()

	rt, err := setup(context.Background())
	require.NoError(t, err)
	defer rt.store.Close()

	snapshots, err := rt.store.All()
	require.NoError(t, err)
	require.Empty(t, snapshots)

	plan, err := rt.eng.BuildPlan(rt.decl.Resources, snapshots)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Summary.Create)

	result, err := rt.eng.Run(context.Background(), plan, rt.store)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.False(t, result.PartialFailure())
}

func TestDriftedAttrs(t *testing.T) {
	declared := map[string]any{
		"name":       "api",
		"cidr_block": "10.0.0.0/16",
		"vpc_id":     "ref://vpc-main/id",
		"mutable":    true,
	}
	live := map[string]any{
		"name":       "api",
		"cidr_block": "10.1.0.0/16",
		"vpc_id":     "vpc-1234",
		"mutable":    false,
		"extra":      "provider-only",
	}

	assert.Equal(t, []string{"cidr_block", "mutable"}, driftedAttrs(declared, live))
	assert.Empty(t, driftedAttrs(declared, declared))
	assert.Empty(t, driftedAttrs(map[string]any{"count": 3}, map[string]any{"count": float64(3)}))
}

func TestRefreshPrunesVanishedResources(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.db")
	path := filepath.Join(dir, "kiln.yaml")
	content := "version: \"1\"\n" +
		"provider: mem\n" +
		"state: " + statePath + "\n" +
		"resources:\n" +
		"  - id: repo-api\n" +
		"    type: ecr_repository\n" +
		"    attributes:\n" +
		"      name: api\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	store, err := state.Open(statePath)
	require.NoError(t, err)
	require.NoError(t, store.Put("repo-api", &ir.Snapshot{
		Type:       ir.TypeECRRepository,
		ExternalID: "mem-ecr_repository-1",
	}))
	require.NoError(t, store.Close())

	origDecl, origPrune := declFile, refreshPrune
	declFile = path
	refreshPrune = true
	defer func() { declFile, refreshPrune = origDecl, origPrune }()

	refreshCmd.SetContext(context.Background())
	require.NoError(t, runRefresh(refreshCmd, nil))

	store, err = state.Open(statePath)
	require.NoError(t, err)
	defer store.Close()
	snapshots, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}
