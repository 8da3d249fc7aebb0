// Package network provisions the VPC-level infrastructure for one side of a
// meshlab environment and the peering between the two sides.
package network

import (
	"fmt"

	"github.com/meshlab-io/meshlab/internal/platform/awscloud"
	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/state"
	"github.com/meshlab-io/meshlab/internal/util/naming"
	"github.com/meshlab-io/meshlab/internal/util/tags"
)

// HBONEPort is the ztunnel tunnel port that carries all mesh traffic.
const HBONEPort = 15008

// Phase provisions the network of one side: VPC, subnets across AZs, IGW,
// NAT, route tables, and the mesh security group.
type Phase struct {
	side string
}

// NewPhase creates a network phase for the given side ("local" or
// "external").
func NewPhase(side string) *Phase {
	return &Phase{side: side}
}

// Name implements the Phase interface.
func (p *Phase) Name() string {
	return p.side + "-network"
}

// Provision implements the Phase interface.
func (p *Phase) Provision(ctx *provisioning.Context) error {
	cloud := ctx.CloudFor(p.side)
	st := ctx.State.Side(p.side)
	env := ctx.Config.EnvironmentName
	observer := ctx.Observer.WithFields(map[string]string{"side": p.side})

	cidr := ctx.Config.Network.LocalCIDR
	if p.side == tags.SideExternal {
		cidr = ctx.Config.Network.ExternalCIDR
	}

	builder := tags.NewBuilder(env).WithSide(p.side)

	vpcName := naming.VPC(env, p.side)
	known := st.VPCID
	vpc, err := cloud.EnsureVPC(ctx, vpcName, cidr, builder.WithName(vpcName).Build())
	if err != nil {
		return err
	}
	st.VPCID = *vpc.VpcId
	if st.VPCID == known {
		provisioning.LogResourceExists(observer, p.Name(), "vpc", vpcName, st.VPCID)
	} else {
		provisioning.LogResourceCreated(observer, p.Name(), "vpc", vpcName, st.VPCID)
	}

	zones, err := cloud.AvailabilityZones(ctx, ctx.Config.Network.AZCount)
	if err != nil {
		return err
	}

	publicCIDRs, privateCIDRs, err := SubnetCIDRs(cidr, len(zones))
	if err != nil {
		return err
	}

	if err := p.provisionSubnets(ctx, cloud, st, zones, publicCIDRs, privateCIDRs); err != nil {
		return err
	}
	if err := p.provisionRouting(ctx, cloud, st); err != nil {
		return err
	}
	return p.provisionSecurityGroup(ctx, cloud, st)
}

func (p *Phase) provisionSubnets(ctx *provisioning.Context, cloud awscloud.CloudManager, st *state.SideState, zones, publicCIDRs, privateCIDRs []string) error {
	env := ctx.Config.EnvironmentName
	builder := tags.NewBuilder(env).WithSide(p.side)

	st.PublicSubnetIDs = st.PublicSubnetIDs[:0]
	st.PrivateSubnetIDs = st.PrivateSubnetIDs[:0]

	for i, zone := range zones {
		name := naming.Subnet(env, p.side, "public", i)
		subnet, err := cloud.EnsureSubnet(ctx, st.VPCID, name, publicCIDRs[i], zone, true, builder.WithName(name).Build())
		if err != nil {
			return err
		}
		st.PublicSubnetIDs = append(st.PublicSubnetIDs, *subnet.SubnetId)

		name = naming.Subnet(env, p.side, "private", i)
		subnet, err = cloud.EnsureSubnet(ctx, st.VPCID, name, privateCIDRs[i], zone, false, builder.WithName(name).Build())
		if err != nil {
			return err
		}
		st.PrivateSubnetIDs = append(st.PrivateSubnetIDs, *subnet.SubnetId)
	}
	return nil
}

func (p *Phase) provisionRouting(ctx *provisioning.Context, cloud awscloud.CloudManager, st *state.SideState) error {
	env := ctx.Config.EnvironmentName
	builder := tags.NewBuilder(env).WithSide(p.side)
	observer := ctx.Observer.WithFields(map[string]string{"side": p.side})

	igwName := naming.InternetGateway(env, p.side)
	igwID, err := cloud.EnsureInternetGateway(ctx, st.VPCID, igwName, builder.WithName(igwName).Build())
	if err != nil {
		return err
	}
	st.InternetGatewayID = igwID

	publicRT := naming.RouteTable(env, p.side, "public")
	publicRTID, err := cloud.EnsureRouteTable(ctx, st.VPCID, publicRT, builder.WithName(publicRT).Build())
	if err != nil {
		return err
	}
	st.PublicRouteTable = publicRTID

	if err := cloud.EnsureRoute(ctx, publicRTID, "0.0.0.0/0", awscloud.RouteTarget{InternetGatewayID: igwID}); err != nil {
		return err
	}
	for _, subnetID := range st.PublicSubnetIDs {
		if err := cloud.AssociateRouteTable(ctx, publicRTID, subnetID); err != nil {
			return err
		}
	}

	natName := naming.NatGateway(env, p.side)
	nat, err := cloud.EnsureNatGateway(ctx, st.PublicSubnetIDs[0], natName, builder.WithName(natName).Build())
	if err != nil {
		return err
	}
	st.NatGatewayID = nat.ID
	st.NatEIPAllocID = nat.AllocationID

	// Routes through a NAT gateway only work once it is available.
	if err := cloud.WaitNatGatewayAvailable(ctx, nat.ID, ctx.Timeouts.NatGateway); err != nil {
		return err
	}
	provisioning.LogResourceCreated(observer, p.Name(), "nat gateway", natName, nat.ID)

	privateRT := naming.RouteTable(env, p.side, "private")
	privateRTID, err := cloud.EnsureRouteTable(ctx, st.VPCID, privateRT, builder.WithName(privateRT).Build())
	if err != nil {
		return err
	}
	st.PrivateRouteTable = privateRTID

	if err := cloud.EnsureRoute(ctx, privateRTID, "0.0.0.0/0", awscloud.RouteTarget{NatGatewayID: nat.ID}); err != nil {
		return err
	}
	for _, subnetID := range st.PrivateSubnetIDs {
		if err := cloud.AssociateRouteTable(ctx, privateRTID, subnetID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Phase) provisionSecurityGroup(ctx *provisioning.Context, cloud awscloud.CloudManager, st *state.SideState) error {
	env := ctx.Config.EnvironmentName
	builder := tags.NewBuilder(env).WithSide(p.side)

	sgName := naming.MeshSecurityGroup(env, p.side)
	sgID, err := cloud.EnsureSecurityGroup(ctx, st.VPCID, sgName, "meshlab mesh dataplane", builder.WithName(sgName).Build())
	if err != nil {
		return err
	}
	st.MeshSecurityGroup = sgID

	rules := meshIngressRules(ctx.Config.Network.LocalCIDR, ctx.Config.Network.ExternalCIDR, servicePorts(ctx))
	if err := cloud.AuthorizeIngress(ctx, sgID, rules); err != nil {
		return err
	}
	return nil
}

func servicePorts(ctx *provisioning.Context) []int32 {
	var ports []int32
	for _, svc := range ctx.Config.ECS.Services {
		if svc.Port > 0 {
			ports = append(ports, svc.Port)
		}
	}
	return ports
}

// meshIngressRules builds the ingress set for the mesh security group: HBONE
// from both VPCs, the application ports, and DNS.
func meshIngressRules(localCIDR, externalCIDR string, appPorts []int32) []awscloud.IngressRule {
	cidrs := []string{localCIDR, externalCIDR}

	var rules []awscloud.IngressRule
	for _, cidr := range cidrs {
		rules = append(rules, awscloud.IngressRule{
			Protocol:    "tcp",
			FromPort:    HBONEPort,
			ToPort:      HBONEPort,
			CIDR:        cidr,
			Description: "HBONE mesh tunnel",
		})
		for _, port := range appPorts {
			rules = append(rules, awscloud.IngressRule{
				Protocol:    "tcp",
				FromPort:    port,
				ToPort:      port,
				CIDR:        cidr,
				Description: fmt.Sprintf("application port %d", port),
			})
		}
		rules = append(rules,
			awscloud.IngressRule{
				Protocol:    "udp",
				FromPort:    53,
				ToPort:      53,
				CIDR:        cidr,
				Description: "mesh DNS",
			},
			awscloud.IngressRule{
				Protocol:    "tcp",
				FromPort:    53,
				ToPort:      53,
				CIDR:        cidr,
				Description: "mesh DNS over TCP",
			},
		)
	}
	return rules
}
