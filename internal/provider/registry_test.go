package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnhq/kiln/internal/ir"
)

type stubAdapter struct{ id string }

func (s *stubAdapter) Create(context.Context, map[string]any) (string, error) { return s.id, nil }
func (s *stubAdapter) Read(context.Context, string) (map[string]any, error)   { return nil, nil }
func (s *stubAdapter) Update(context.Context, string, map[string]any) error   { return nil }
func (s *stubAdapter) Delete(context.Context, string) error                   { return nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	reg.Register(ir.TypeVPC, &stubAdapter{id: "vpc-123"})

	a, err := reg.Get(ir.TypeVPC)
	require.NoError(t, err)

	id, err := a.Create(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "vpc-123", id)
}

func TestRegistry_GetUnknownType(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get(ir.TypeEKSCluster)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eks_cluster")
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	reg.Register(ir.TypeSubnet, &stubAdapter{id: "first"})
	reg.Register(ir.TypeSubnet, &stubAdapter{id: "second"})

	a, err := reg.Get(ir.TypeSubnet)
	require.NoError(t, err)
	id, _ := a.Create(context.Background(), nil)
	assert.Equal(t, "second", id)

	assert.Len(t, reg.Types(), 1)
}
