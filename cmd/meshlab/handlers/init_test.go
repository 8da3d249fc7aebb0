package handlers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshlab-io/meshlab/internal/config"
)

func TestInitWritesLoadableConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "meshlab.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.EnvironmentName)
	assert.Equal(t, config.ScenarioSingleAccount, cfg.Scenario)
	require.Len(t, cfg.ECS.Services, 2)
	assert.Equal(t, "web", cfg.ECS.Services[0].Name)
	require.Len(t, cfg.Mesh.AuthorizationPolicies, 1)
	assert.Equal(t, "DENY", cfg.Mesh.AuthorizationPolicies[0].Action)
	require.Len(t, cfg.Verify.Checks, 2)
	assert.True(t, cfg.Verify.Checks[1].ExpectFailure)
}

// The starter deny policy must match the identity the deny check probes
// with, and the positive check must hit a service the policy leaves alone.
// Otherwise the out-of-the-box verify run can never go green.
func TestInitDenyDemoIsConsistent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "meshlab.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	policy := cfg.Mesh.AuthorizationPolicies[0]
	require.Len(t, policy.SourcePrincipals, 1)
	assert.Equal(t, "cluster.local/ns/demo/sa/mesh-client", policy.SourcePrincipals[0])

	allowed, denied := cfg.Verify.Checks[0], cfg.Verify.Checks[1]
	assert.Equal(t, "app=mesh-client", denied.FromSelector)
	assert.Contains(t, denied.URL, policy.TargetService+".")
	assert.NotContains(t, allowed.URL, policy.TargetService+".")
}

func TestInitRefusesToOverwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "meshlab.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, Init(path, true))
}
