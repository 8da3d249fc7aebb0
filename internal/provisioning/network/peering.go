package network

import (
	"fmt"

	"github.com/meshlab-io/meshlab/internal/platform/awscloud"
	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/util/naming"
	"github.com/meshlab-io/meshlab/internal/util/tags"
)

// PeeringPhase connects the two VPCs. The request is created from the local
// account and accepted by the external side's client, which is the same
// client in the single-account scenario.
type PeeringPhase struct{}

// NewPeeringPhase creates the peering phase.
func NewPeeringPhase() *PeeringPhase {
	return &PeeringPhase{}
}

// Name implements the Phase interface.
func (p *PeeringPhase) Name() string {
	return "peering"
}

// Provision implements the Phase interface.
func (p *PeeringPhase) Provision(ctx *provisioning.Context) error {
	local := ctx.State.Side("local")
	external := ctx.State.Side("external")
	if local.VPCID == "" || external.VPCID == "" {
		return fmt.Errorf("both VPCs must exist before peering (local=%q external=%q)", local.VPCID, external.VPCID)
	}

	env := ctx.Config.EnvironmentName
	peerAccountID := ""
	if ctx.Config.IsMultiAccount() {
		peerAccountID = ctx.State.ExternalAccountID
	}

	name := naming.Peering(env)
	peeringID, err := ctx.Cloud.CreatePeering(ctx, name, local.VPCID, external.VPCID, peerAccountID,
		tags.NewBuilder(env).WithName(name).Build())
	if err != nil {
		return err
	}
	ctx.State.PeeringConnectionID = peeringID

	if err := ctx.CloudFor("external").AcceptPeering(ctx, peeringID); err != nil {
		return err
	}
	if err := ctx.Cloud.WaitPeeringActive(ctx, peeringID, ctx.Timeouts.Peering); err != nil {
		return err
	}
	provisioning.LogResourceCreated(ctx.Observer, p.Name(), "peering connection", name, peeringID)

	// Cross-VPC routes in both directions, in every route table that carries
	// workload traffic.
	target := awscloud.RouteTarget{PeeringID: peeringID}
	localCIDR := ctx.Config.Network.LocalCIDR
	externalCIDR := ctx.Config.Network.ExternalCIDR

	for _, rt := range []string{local.PublicRouteTable, local.PrivateRouteTable} {
		if err := ctx.Cloud.EnsureRoute(ctx, rt, externalCIDR, target); err != nil {
			return err
		}
	}
	externalCloud := ctx.CloudFor("external")
	for _, rt := range []string{external.PublicRouteTable, external.PrivateRouteTable} {
		if err := externalCloud.EnsureRoute(ctx, rt, localCIDR, target); err != nil {
			return err
		}
	}
	return nil
}
