package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigHash_Deterministic(t *testing.T) {
	r := &Resource{
		ID:   "vpc-main",
		Type: TypeVPC,
		Attributes: map[string]any{
			"cidr_block": "10.0.0.0/16",
			"tags":       map[string]any{"env": "prod", "team": "platform"},
		},
	}

	assert.Equal(t, ConfigHash(r), ConfigHash(r))
}

func TestConfigHash_IgnoresDependsOnAndID(t *testing.T) {
	a := &Resource{ID: "a", Type: TypeSubnet, Attributes: map[string]any{"cidr_block": "10.0.1.0/24"}}
	b := &Resource{ID: "b", Type: TypeSubnet, Attributes: map[string]any{"cidr_block": "10.0.1.0/24"}, DependsOn: []string{"vpc-main"}}

	// Dependency wiring and the declaration id are not part of the desired
	// configuration; only type and attributes feed the hash.
	assert.Equal(t, ConfigHash(a), ConfigHash(b))
}

func TestConfigHash_ChangesWithAttributes(t *testing.T) {
	a := &Resource{ID: "r", Type: TypeECRRepository, Attributes: map[string]any{"name": "api"}}
	b := &Resource{ID: "r", Type: TypeECRRepository, Attributes: map[string]any{"name": "worker"}}

	assert.NotEqual(t, ConfigHash(a), ConfigHash(b))
}

func TestConfigHash_ChangesWithType(t *testing.T) {
	a := &Resource{ID: "r", Type: TypeVPC, Attributes: map[string]any{"name": "x"}}
	b := &Resource{ID: "r", Type: TypeSubnet, Attributes: map[string]any{"name": "x"}}

	assert.NotEqual(t, ConfigHash(a), ConfigHash(b))
}
