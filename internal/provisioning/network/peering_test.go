package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshlab-io/meshlab/internal/platform/awscloud"
)

func TestPeeringPhaseRequiresBothVPCs(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock, nil)
	ctx.State.Side("local").VPCID = "vpc-local"

	err := NewPeeringPhase().Provision(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both VPCs must exist")
}

func TestPeeringPhaseSingleAccount(t *testing.T) {
	mock := awscloud.NewMockClient()
	ctx := testContext(t, mock, nil)

	local := ctx.State.Side("local")
	local.VPCID = "vpc-local"
	local.PublicRouteTable = "rtb-lpub"
	local.PrivateRouteTable = "rtb-lpriv"
	external := ctx.State.Side("external")
	external.VPCID = "vpc-external"
	external.PublicRouteTable = "rtb-epub"
	external.PrivateRouteTable = "rtb-epriv"

	var gotPeerAccount string
	mock.CreatePeeringFunc = func(_ context.Context, name, vpcID, peerVPCID, peerAccountID string, _ map[string]string) (string, error) {
		gotPeerAccount = peerAccountID
		return "pcx-123", nil
	}

	require.NoError(t, NewPeeringPhase().Provision(ctx))

	assert.Equal(t, "pcx-123", ctx.State.PeeringConnectionID)
	assert.Empty(t, gotPeerAccount)
	assert.Equal(t, 1, mock.CallCount("AcceptPeering"))
	assert.Equal(t, 1, mock.CallCount("WaitPeeringActive"))
	// Cross-VPC routes in four route tables.
	assert.Equal(t, 4, mock.CallCount("EnsureRoute"))
}

func TestPeeringPhaseMultiAccountUsesExternalClient(t *testing.T) {
	local := awscloud.NewMockClient()
	external := awscloud.NewMockClient()
	ctx := testContext(t, local, external)
	ctx.State.ExternalAccountID = "222222222222"

	ls := ctx.State.Side("local")
	ls.VPCID = "vpc-local"
	ls.PublicRouteTable = "rtb-lpub"
	ls.PrivateRouteTable = "rtb-lpriv"
	es := ctx.State.Side("external")
	es.VPCID = "vpc-external"
	es.PublicRouteTable = "rtb-epub"
	es.PrivateRouteTable = "rtb-epriv"

	var gotPeerAccount string
	local.CreatePeeringFunc = func(_ context.Context, name, vpcID, peerVPCID, peerAccountID string, _ map[string]string) (string, error) {
		gotPeerAccount = peerAccountID
		return "pcx-xacct", nil
	}

	require.NoError(t, NewPeeringPhase().Provision(ctx))

	assert.Equal(t, "222222222222", gotPeerAccount)
	// Acceptance happens in the external account.
	assert.Equal(t, 0, local.CallCount("AcceptPeering"))
	assert.Equal(t, 1, external.CallCount("AcceptPeering"))
	// Each side adds routes through its own client.
	assert.Equal(t, 2, local.CallCount("EnsureRoute"))
	assert.Equal(t, 2, external.CallCount("EnsureRoute"))
}
