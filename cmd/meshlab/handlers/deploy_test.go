package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/util/prerequisites"
)

func stubConnectCluster(t *testing.T, err error) *int {
	t.Helper()
	calls := 0

	orig := connectCluster
	t.Cleanup(func() { connectCluster = orig })
	connectCluster = func(*provisioning.Context) (func(), error) {
		calls++
		if err != nil {
			return nil, err
		}
		return func() {}, nil
	}
	return &calls
}

func TestDeployRunsWorkloadAndMeshPhases(t *testing.T) {
	cfg := testConfig(t)
	stubCommon(t, cfg)
	names := stubRunPhases(t)
	connects := stubConnectCluster(t, nil)

	require.NoError(t, Deploy(context.Background(), Options{ConfigPath: "meshlab.yaml"}))

	assert.Equal(t, 1, *connects)
	assert.Equal(t, []string{
		"ecs-services",
		"mesh-namespaces",
		"mesh-install",
		"mesh-client",
		"mesh-gateway",
		"mesh-workloads",
		"mesh-waypoints",
		"mesh-policies",
	}, *names)
}

func TestDeployRequiresIstioctl(t *testing.T) {
	cfg := testConfig(t)
	cfg.PrerequisitesCheckEnabled = nil
	stubCommon(t, cfg)

	orig := checkMeshPrereqs
	t.Cleanup(func() { checkMeshPrereqs = orig })
	checkMeshPrereqs = func() *prerequisites.CheckResults {
		return &prerequisites.CheckResults{
			Missing: []prerequisites.Tool{{Name: "istioctl", Required: true, InstallURL: "https://docs.solo.io/"}},
		}
	}

	err := Deploy(context.Background(), Options{ConfigPath: "meshlab.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "istioctl")
}

func TestDeployPropagatesConnectFailure(t *testing.T) {
	cfg := testConfig(t)
	stubCommon(t, cfg)
	stubRunPhases(t)
	stubConnectCluster(t, errors.New("EKS cluster not recorded in state; run apply first"))

	err := Deploy(context.Background(), Options{ConfigPath: "meshlab.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run apply first")
}
