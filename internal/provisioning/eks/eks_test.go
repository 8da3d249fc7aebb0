package eks

import (
	"context"
	"path/filepath"
	"testing"

	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
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
		EKS: config.EKSConfig{
			Version:      "1.31",
			InstanceType: "t3.large",
			NodeCount:    2,
		},
	}
	return provisioning.NewContext(context.Background(), cfg, state.New("demo", "us-east-1"), mock, nil)
}

func readyState(ctx *provisioning.Context) {
	st := ctx.State.Side("local")
	st.VPCID = "vpc-local"
	st.PublicSubnetIDs = []string{"subnet-pub-a", "subnet-pub-b"}
	st.PrivateSubnetIDs = []string{"subnet-priv-a", "subnet-priv-b"}
	ctx.State.EKSClusterRoleARN = "arn:aws:iam::000000000000:role/demo-eks-cluster"
	ctx.State.NodeRoleARN = "arn:aws:iam::000000000000:role/demo-eks-node"
}

func TestEKSPhaseRecordsClusterDetails(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock)
	readyState(ctx)

	var gotCluster awscloud.EKSClusterOpts
	mock.EnsureEKSClusterFunc = func(_ context.Context, opts awscloud.EKSClusterOpts) (*ekstypes.Cluster, error) {
		gotCluster = opts
		return nil, nil
	}

	require.NoError(t, NewPhase().Provision(ctx))

	assert.Equal(t, "demo-eks", ctx.State.EKSClusterName)
	assert.NotEmpty(t, ctx.State.EKSEndpoint)
	assert.NotEmpty(t, ctx.State.EKSCertificate)

	assert.Equal(t, "1.31", gotCluster.Version)
	assert.Len(t, gotCluster.SubnetIDs, 4)
	assert.Equal(t, 1, mock.CallCount("WaitEKSClusterActive"))
	assert.Equal(t, 1, mock.CallCount("EnsureNodegroup"))
	assert.Equal(t, 1, mock.CallCount("WaitNodegroupActive"))
}

func TestEKSPhaseNodegroupUsesPrivateSubnets(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock)
	readyState(ctx)

	var gotNodegroup awscloud.NodegroupOpts
	mock.EnsureNodegroupFunc = func(_ context.Context, opts awscloud.NodegroupOpts) error {
		gotNodegroup = opts
		return nil
	}

	require.NoError(t, NewPhase().Provision(ctx))

	assert.Equal(t, []string{"subnet-priv-a", "subnet-priv-b"}, gotNodegroup.SubnetIDs)
	assert.Equal(t, "t3.large", gotNodegroup.InstanceType)
	assert.Equal(t, int32(2), gotNodegroup.DesiredSize)
}

func TestEKSPhaseRequiresNetwork(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock)

	err := NewPhase().Provision(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network phase")
}

func TestConnectRequiresRecordedCluster(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock)

	_, err := Connect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run apply first")
}
