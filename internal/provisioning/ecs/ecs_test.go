package ecs

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

func testContext(t *testing.T, mock *awscloud.MockClient) *provisioning.Context {
	t.Helper()
	cfg := &config.Config{
		EnvironmentName: "demo",
		Scenario:        config.ScenarioSingleAccount,
		Region:          "us-east-1",
		StatePath:       filepath.Join(t.TempDir(), "state.yaml"),
		ECS: config.ECSConfig{
			Services: []config.ServiceSpec{
				{Name: "web", Image: "nginx:1.27", Port: 8080, DesiredCount: 1, CPU: "256", Memory: "512"},
				{Name: "api", Image: "httpbin", Port: 80, DesiredCount: 2, CPU: "256", Memory: "512"},
			},
		},
	}
	return provisioning.NewContext(context.Background(), cfg, state.New("demo", "us-east-1"), mock, nil)
}

func provisionedState(ctx *provisioning.Context) {
	ctx.State.ECSClusterARN = "arn:aws:ecs:us-east-1:000000000000:cluster/demo-ecs"
	ctx.State.TaskExecutionRoleARN = "arn:aws:iam::000000000000:role/demo-task-execution"
	ctx.State.TaskRoleARN = "arn:aws:iam::000000000000:role/demo-task"
	st := ctx.State.Side("external")
	st.PrivateSubnetIDs = []string{"subnet-a", "subnet-b"}
	st.MeshSecurityGroup = "sg-mesh"
}

func TestClusterPhase(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock)

	require.NoError(t, NewClusterPhase().Provision(ctx))
	assert.Contains(t, ctx.State.ECSClusterARN, "demo-ecs")
}

func TestServicesPhaseDeploysAll(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock)
	provisionedState(ctx)

	var gotOpts []awscloud.ServiceOpts
	mock.EnsureECSServiceFunc = func(_ context.Context, opts awscloud.ServiceOpts) (string, error) {
		gotOpts = append(gotOpts, opts)
		return "arn:aws:ecs:us-east-1:000000000000:service/demo-ecs/" + opts.Name, nil
	}

	require.NoError(t, NewServicesPhase().Provision(ctx))

	assert.Len(t, ctx.State.TaskDefinitionARNs, 2)
	assert.Len(t, ctx.State.ServiceARNs, 2)
	assert.ElementsMatch(t, []string{"/ecs/demo/web", "/ecs/demo/api"}, ctx.State.LogGroups)

	require.Len(t, gotOpts, 2)
	assert.Equal(t, "demo-ecs", gotOpts[0].Cluster)
	assert.Equal(t, []string{"subnet-a", "subnet-b"}, gotOpts[0].SubnetIDs)
	assert.Equal(t, []string{"sg-mesh"}, gotOpts[0].SecurityGroupIDs)

	assert.Equal(t, 1, mock.CallCount("WaitServicesStable"))
}

func TestServicesPhaseRequiresCluster(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock)

	err := NewServicesPhase().Provision(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run apply first")
}

func TestServicesPhasePassesTaskDefinitionSpec(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock)
	provisionedState(ctx)

	var specs []awscloud.TaskDefinitionSpec
	mock.RegisterTaskDefinitionFunc = func(_ context.Context, spec awscloud.TaskDefinitionSpec) (string, error) {
		specs = append(specs, spec)
		return "arn:aws:ecs:us-east-1:000000000000:task-definition/" + spec.Family + ":1", nil
	}

	require.NoError(t, NewServicesPhase().Provision(ctx))

	require.Len(t, specs, 2)
	assert.Equal(t, "demo-web", specs[0].Family)
	assert.Equal(t, "nginx:1.27", specs[0].Container.Image)
	assert.Equal(t, "/ecs/demo/web", specs[0].Container.LogGroup)
	assert.Equal(t, "us-east-1", specs[0].Container.LogRegion)
	assert.Contains(t, specs[0].ExecutionRoleARN, "demo-task-execution")
}

func TestServicesPhaseStopsOnRegisterFailure(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock)
	provisionedState(ctx)

	mock.RegisterTaskDefinitionFunc = func(context.Context, awscloud.TaskDefinitionSpec) (string, error) {
		return "", errors.New("invalid cpu value")
	}

	err := NewServicesPhase().Provision(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, mock.CallCount("EnsureECSService"))
}
