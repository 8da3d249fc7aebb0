package network

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshlab-io/meshlab/internal/config"
	"github.com/meshlab-io/meshlab/internal/platform/awscloud"
	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/state"
)

func testContext(t *testing.T, mock *awscloud.MockClient, external *awscloud.MockClient) *provisioning.Context {
	t.Helper()
	cfg := &config.Config{
		EnvironmentName: "demo",
		Scenario:        config.ScenarioSingleAccount,
		Region:          "us-east-1",
		StatePath:       filepath.Join(t.TempDir(), "state.yaml"),
		Network: config.NetworkConfig{
			LocalCIDR:    "10.10.0.0/16",
			ExternalCIDR: "10.20.0.0/16",
			AZCount:      2,
		},
		ECS: config.ECSConfig{
			Services: []config.ServiceSpec{
				{Name: "web", Image: "nginx", Port: 8080},
			},
		},
	}

	var externalCloud awscloud.CloudManager
	if external != nil {
		cfg.Scenario = config.ScenarioMultiAccount
		cfg.ExternalProfile = "external"
		externalCloud = external
	}

	return provisioning.NewContext(context.Background(), cfg, state.New("demo", "us-east-1"), mock, externalCloud)
}

func TestNetworkPhasePopulatesState(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock, nil)

	phase := NewPhase("local")
	require.NoError(t, phase.Provision(ctx))

	st := ctx.State.Side("local")
	assert.Equal(t, "vpc-demo-local-vpc", st.VPCID)
	assert.Len(t, st.PublicSubnetIDs, 2)
	assert.Len(t, st.PrivateSubnetIDs, 2)
	assert.NotEmpty(t, st.InternetGatewayID)
	assert.NotEmpty(t, st.NatGatewayID)
	assert.NotEmpty(t, st.NatEIPAllocID)
	assert.NotEmpty(t, st.PublicRouteTable)
	assert.NotEmpty(t, st.PrivateRouteTable)
	assert.NotEmpty(t, st.MeshSecurityGroup)

	// 2 AZs, public and private each.
	assert.Equal(t, 4, mock.CallCount("EnsureSubnet"))
	assert.Equal(t, 1, mock.CallCount("WaitNatGatewayAvailable"))
	// Default route for public and private tables.
	assert.Equal(t, 2, mock.CallCount("EnsureRoute"))
	assert.Equal(t, 4, mock.CallCount("AssociateRouteTable"))
}

func TestNetworkPhaseWaitsBeforePrivateRoutes(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock, nil)
	require.NoError(t, NewPhase("local").Provision(ctx))

	calls := mock.Calls()
	waitIdx, routeIdx := -1, -1
	routeSeen := 0
	for i, call := range calls {
		switch call {
		case "WaitNatGatewayAvailable":
			waitIdx = i
		case "EnsureRoute":
			routeSeen++
			if routeSeen == 2 { // private default route
				routeIdx = i
			}
		}
	}
	require.GreaterOrEqual(t, waitIdx, 0)
	require.GreaterOrEqual(t, routeIdx, 0)
	assert.Less(t, waitIdx, routeIdx)
}

func TestNetworkPhaseStopsOnError(t *testing.T) {
	mock := awscloud.NewMockClient()
	mock.EnsureNatGatewayFunc = func(context.Context, string, string, map[string]string) (awscloud.NatGateway, error) {
		return awscloud.NatGateway{}, errors.New("address limit exceeded")
	}

	ctx := testContext(t, mock, nil)
	err := NewPhase("local").Provision(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address limit exceeded")
	assert.Equal(t, 0, mock.CallCount("EnsureSecurityGroup"))
}

func TestMeshIngressRules(t *testing.T) {
	t.Parallel()

	rules := meshIngressRules("10.10.0.0/16", "10.20.0.0/16", []int32{8080})

	var hbone, app, dns int
	for _, rule := range rules {
		switch {
		case rule.FromPort == HBONEPort:
			hbone++
		case rule.FromPort == 8080:
			app++
		case rule.FromPort == 53:
			dns++
		}
	}
	assert.Equal(t, 2, hbone)
	assert.Equal(t, 2, app)
	assert.Equal(t, 4, dns)
}
