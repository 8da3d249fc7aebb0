package awscloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/meshlab-io/meshlab/internal/util/retry"
	"github.com/meshlab-io/meshlab/internal/util/tags"
)

// EnsureVPC ensures a VPC with the given Name tag exists.
func (c *RealClient) EnsureVPC(ctx context.Context, name, cidr string, tagSet map[string]string) (ec2types.Vpc, error) {
	existing, err := c.findVPC(ctx, name)
	if err != nil {
		return ec2types.Vpc{}, err
	}
	if existing != nil {
		if stringValue(existing.CidrBlock) != cidr {
			return ec2types.Vpc{}, fmt.Errorf("vpc %s exists but with different CIDR %s (expected %s)",
				name, stringValue(existing.CidrBlock), cidr)
		}
		return *existing, nil
	}

	out, err := c.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(cidr),
		TagSpecifications: tagSpec(ec2types.ResourceTypeVpc, withName(tagSet, name)),
	})
	if err != nil {
		return ec2types.Vpc{}, fmt.Errorf("failed to create vpc %s: %w", name, err)
	}

	vpcID := stringValue(out.Vpc.VpcId)

	// DNS support is required for ECS service discovery and EKS endpoints.
	for _, attr := range []ec2.ModifyVpcAttributeInput{
		{VpcId: aws.String(vpcID), EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
		{VpcId: aws.String(vpcID), EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
	} {
		if _, err := c.ec2.ModifyVpcAttribute(ctx, &attr); err != nil {
			return ec2types.Vpc{}, fmt.Errorf("failed to enable DNS attributes on vpc %s: %w", vpcID, err)
		}
	}

	return *out.Vpc, nil
}

// EnsureSubnet ensures a subnet with the given Name tag exists in the VPC.
func (c *RealClient) EnsureSubnet(ctx context.Context, vpcID, name, cidr, az string, public bool, tagSet map[string]string) (ec2types.Subnet, error) {
	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: nameFilters(name, vpcID),
	})
	if err != nil {
		return ec2types.Subnet{}, fmt.Errorf("failed to describe subnets: %w", err)
	}
	if len(out.Subnets) > 0 {
		return out.Subnets[0], nil
	}

	created, err := c.ec2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             aws.String(vpcID),
		CidrBlock:         aws.String(cidr),
		AvailabilityZone:  aws.String(az),
		TagSpecifications: tagSpec(ec2types.ResourceTypeSubnet, withName(tagSet, name)),
	})
	if err != nil {
		return ec2types.Subnet{}, fmt.Errorf("failed to create subnet %s: %w", name, err)
	}

	if public {
		_, err = c.ec2.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            created.Subnet.SubnetId,
			MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
		if err != nil {
			return ec2types.Subnet{}, fmt.Errorf("failed to enable public IPs on subnet %s: %w", name, err)
		}
	}

	return *created.Subnet, nil
}

// EnsureInternetGateway ensures an internet gateway exists and is attached to
// the VPC.
func (c *RealClient) EnsureInternetGateway(ctx context.Context, vpcID, name string, tagSet map[string]string) (string, error) {
	out, err := c.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe internet gateways: %w", err)
	}

	var igwID string
	var attached bool
	if len(out.InternetGateways) > 0 {
		igw := out.InternetGateways[0]
		igwID = stringValue(igw.InternetGatewayId)
		for _, att := range igw.Attachments {
			if stringValue(att.VpcId) == vpcID {
				attached = true
			}
		}
	} else {
		created, err := c.ec2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
			TagSpecifications: tagSpec(ec2types.ResourceTypeInternetGateway, withName(tagSet, name)),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create internet gateway %s: %w", name, err)
		}
		igwID = stringValue(created.InternetGateway.InternetGatewayId)
	}

	if !attached {
		_, err = c.ec2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
			VpcId:             aws.String(vpcID),
		})
		if err != nil && !isAPIErrorCode(err, "Resource.AlreadyAssociated") {
			return "", fmt.Errorf("failed to attach internet gateway %s: %w", igwID, err)
		}
	}

	return igwID, nil
}

// EnsureNatGateway allocates an elastic IP and creates a NAT gateway in the
// given public subnet. An existing gateway with the Name tag that is pending
// or available is reused along with its allocation.
func (c *RealClient) EnsureNatGateway(ctx context.Context, subnetID, name string, tagSet map[string]string) (NatGateway, error) {
	out, err := c.ec2.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
		Filter: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
			{Name: aws.String("state"), Values: []string{"pending", "available"}},
		},
	})
	if err != nil {
		return NatGateway{}, fmt.Errorf("failed to describe nat gateways: %w", err)
	}
	if len(out.NatGateways) > 0 {
		nat := out.NatGateways[0]
		gw := NatGateway{ID: stringValue(nat.NatGatewayId)}
		if len(nat.NatGatewayAddresses) > 0 {
			gw.AllocationID = stringValue(nat.NatGatewayAddresses[0].AllocationId)
		}
		return gw, nil
	}

	eip, err := c.ec2.AllocateAddress(ctx, &ec2.AllocateAddressInput{
		Domain:            ec2types.DomainTypeVpc,
		TagSpecifications: tagSpec(ec2types.ResourceTypeElasticIp, withName(tagSet, name)),
	})
	if err != nil {
		return NatGateway{}, fmt.Errorf("failed to allocate elastic IP for %s: %w", name, err)
	}

	created, err := c.ec2.CreateNatGateway(ctx, &ec2.CreateNatGatewayInput{
		SubnetId:          aws.String(subnetID),
		AllocationId:      eip.AllocationId,
		TagSpecifications: tagSpec(ec2types.ResourceTypeNatgateway, withName(tagSet, name)),
	})
	if err != nil {
		return NatGateway{}, fmt.Errorf("failed to create nat gateway %s: %w", name, err)
	}

	return NatGateway{
		ID:           stringValue(created.NatGateway.NatGatewayId),
		AllocationID: stringValue(eip.AllocationId),
	}, nil
}

// WaitNatGatewayAvailable polls until the NAT gateway reports available.
func (c *RealClient) WaitNatGatewayAvailable(ctx context.Context, natID string, timeout time.Duration) error {
	return retry.PollUntil(ctx, c.timeouts.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		out, err := c.ec2.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
			NatGatewayIds: []string{natID},
		})
		if err != nil {
			if IsNotFound(err) {
				return false, retry.Fatal(err)
			}
			return false, err
		}
		if len(out.NatGateways) == 0 {
			return false, nil
		}
		switch out.NatGateways[0].State {
		case ec2types.NatGatewayStateAvailable:
			return true, nil
		case ec2types.NatGatewayStateFailed:
			return false, retry.Fatal(fmt.Errorf("nat gateway %s failed: %s",
				natID, stringValue(out.NatGateways[0].FailureMessage)))
		default:
			return false, nil
		}
	})
}

// EnsureRouteTable ensures a route table with the given Name tag exists.
func (c *RealClient) EnsureRouteTable(ctx context.Context, vpcID, name string, tagSet map[string]string) (string, error) {
	out, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: nameFilters(name, vpcID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe route tables: %w", err)
	}
	if len(out.RouteTables) > 0 {
		return stringValue(out.RouteTables[0].RouteTableId), nil
	}

	created, err := c.ec2.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId:             aws.String(vpcID),
		TagSpecifications: tagSpec(ec2types.ResourceTypeRouteTable, withName(tagSet, name)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create route table %s: %w", name, err)
	}
	return stringValue(created.RouteTable.RouteTableId), nil
}

// AssociateRouteTable associates a subnet with a route table. Associating an
// already-associated pair is treated as success.
func (c *RealClient) AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) error {
	_, err := c.ec2.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(routeTableID),
		SubnetId:     aws.String(subnetID),
	})
	if err != nil && !isAPIErrorCode(err, "Resource.AlreadyAssociated") {
		return fmt.Errorf("failed to associate subnet %s with route table %s: %w", subnetID, routeTableID, err)
	}
	return nil
}

// EnsureRoute adds a route, treating RouteAlreadyExists as success.
func (c *RealClient) EnsureRoute(ctx context.Context, routeTableID, destCIDR string, target RouteTarget) error {
	input := &ec2.CreateRouteInput{
		RouteTableId:         aws.String(routeTableID),
		DestinationCidrBlock: aws.String(destCIDR),
	}
	switch {
	case target.InternetGatewayID != "":
		input.GatewayId = aws.String(target.InternetGatewayID)
	case target.NatGatewayID != "":
		input.NatGatewayId = aws.String(target.NatGatewayID)
	case target.PeeringID != "":
		input.VpcPeeringConnectionId = aws.String(target.PeeringID)
	default:
		return fmt.Errorf("route to %s has no target", destCIDR)
	}

	_, err := c.ec2.CreateRoute(ctx, input)
	if err != nil && !IsAlreadyExists(err) {
		return fmt.Errorf("failed to create route %s in %s: %w", destCIDR, routeTableID, err)
	}
	return nil
}

// EnsureSecurityGroup ensures a security group with the given name exists in
// the VPC.
func (c *RealClient) EnsureSecurityGroup(ctx context.Context, vpcID, name, description string, tagSet map[string]string) (string, error) {
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-name"), Values: []string{name}},
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe security groups: %w", err)
	}
	if len(out.SecurityGroups) > 0 {
		return stringValue(out.SecurityGroups[0].GroupId), nil
	}

	created, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		VpcId:             aws.String(vpcID),
		GroupName:         aws.String(name),
		Description:       aws.String(description),
		TagSpecifications: tagSpec(ec2types.ResourceTypeSecurityGroup, withName(tagSet, name)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group %s: %w", name, err)
	}
	return stringValue(created.GroupId), nil
}

// AuthorizeIngress adds ingress rules to a security group. Duplicate rules
// are treated as success so re-apply stays idempotent.
func (c *RealClient) AuthorizeIngress(ctx context.Context, groupID string, rules []IngressRule) error {
	for _, rule := range rules {
		perm := ec2types.IpPermission{
			IpProtocol: aws.String(rule.Protocol),
		}
		if rule.Protocol != "-1" {
			perm.FromPort = aws.Int32(rule.FromPort)
			perm.ToPort = aws.Int32(rule.ToPort)
		}
		if rule.CIDR != "" {
			perm.IpRanges = []ec2types.IpRange{
				{CidrIp: aws.String(rule.CIDR), Description: aws.String(rule.Description)},
			}
		}
		if rule.SourceSecurityGroupID != "" {
			perm.UserIdGroupPairs = []ec2types.UserIdGroupPair{
				{GroupId: aws.String(rule.SourceSecurityGroupID), Description: aws.String(rule.Description)},
			}
		}

		_, err := c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []ec2types.IpPermission{perm},
		})
		if err != nil && !IsAlreadyExists(err) {
			return fmt.Errorf("failed to authorize ingress on %s: %w", groupID, err)
		}
	}
	return nil
}

// CreatePeering requests a peering connection. The accepter VPC may live in
// another account; acceptance happens through that account's client.
func (c *RealClient) CreatePeering(ctx context.Context, name, vpcID, peerVPCID, peerAccountID string, tagSet map[string]string) (string, error) {
	out, err := c.ec2.DescribeVpcPeeringConnections(ctx, &ec2.DescribeVpcPeeringConnectionsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
			{Name: aws.String("status-code"), Values: []string{"pending-acceptance", "provisioning", "active"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe peering connections: %w", err)
	}
	if len(out.VpcPeeringConnections) > 0 {
		return stringValue(out.VpcPeeringConnections[0].VpcPeeringConnectionId), nil
	}

	input := &ec2.CreateVpcPeeringConnectionInput{
		VpcId:             aws.String(vpcID),
		PeerVpcId:         aws.String(peerVPCID),
		TagSpecifications: tagSpec(ec2types.ResourceTypeVpcPeeringConnection, withName(tagSet, name)),
	}
	if peerAccountID != "" {
		input.PeerOwnerId = aws.String(peerAccountID)
	}

	created, err := c.ec2.CreateVpcPeeringConnection(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to create peering connection %s: %w", name, err)
	}
	return stringValue(created.VpcPeeringConnection.VpcPeeringConnectionId), nil
}

// AcceptPeering accepts a pending peering request.
func (c *RealClient) AcceptPeering(ctx context.Context, peeringID string) error {
	_, err := c.ec2.AcceptVpcPeeringConnection(ctx, &ec2.AcceptVpcPeeringConnectionInput{
		VpcPeeringConnectionId: aws.String(peeringID),
	})
	if err != nil {
		// Accepting an already-active connection is fine.
		if isAPIErrorCode(err, "InvalidStateTransition") {
			return nil
		}
		return fmt.Errorf("failed to accept peering connection %s: %w", peeringID, err)
	}
	return nil
}

// WaitPeeringActive polls until the peering connection reports active.
func (c *RealClient) WaitPeeringActive(ctx context.Context, peeringID string, timeout time.Duration) error {
	return retry.PollUntil(ctx, c.timeouts.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		out, err := c.ec2.DescribeVpcPeeringConnections(ctx, &ec2.DescribeVpcPeeringConnectionsInput{
			VpcPeeringConnectionIds: []string{peeringID},
		})
		if err != nil {
			if IsNotFound(err) {
				return false, retry.Fatal(err)
			}
			return false, err
		}
		if len(out.VpcPeeringConnections) == 0 || out.VpcPeeringConnections[0].Status == nil {
			return false, nil
		}
		switch out.VpcPeeringConnections[0].Status.Code {
		case ec2types.VpcPeeringConnectionStateReasonCodeActive:
			return true, nil
		case ec2types.VpcPeeringConnectionStateReasonCodeFailed,
			ec2types.VpcPeeringConnectionStateReasonCodeRejected,
			ec2types.VpcPeeringConnectionStateReasonCodeDeleted:
			return false, retry.Fatal(fmt.Errorf("peering connection %s entered state %s",
				peeringID, out.VpcPeeringConnections[0].Status.Code))
		default:
			return false, nil
		}
	})
}

// AvailabilityZones returns the first count available AZ names in the region.
func (c *RealClient) AvailabilityZones(ctx context.Context, count int) ([]string, error) {
	out, err := c.ec2.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("state"), Values: []string{"available"}},
			{Name: aws.String("zone-type"), Values: []string{"availability-zone"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe availability zones: %w", err)
	}
	if len(out.AvailabilityZones) < count {
		return nil, fmt.Errorf("region %s has %d availability zones, need %d", c.region, len(out.AvailabilityZones), count)
	}

	zones := make([]string, 0, count)
	for _, az := range out.AvailabilityZones[:count] {
		zones = append(zones, stringValue(az.ZoneName))
	}
	return zones, nil
}

func (c *RealClient) findVPC(ctx context.Context, name string) (*ec2types.Vpc, error) {
	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe vpcs: %w", err)
	}
	if len(out.Vpcs) == 0 {
		return nil, nil
	}
	return &out.Vpcs[0], nil
}

// withName returns a copy of the tag set with the Name tag set.
func withName(tagSet map[string]string, name string) map[string]string {
	out := make(map[string]string, len(tagSet)+1)
	for k, v := range tagSet {
		out[k] = v
	}
	out[tags.KeyName] = name
	return out
}

// tagSpec converts a tag map into the TagSpecifications shape EC2 create
// calls expect.
func tagSpec(resourceType ec2types.ResourceType, tagSet map[string]string) []ec2types.TagSpecification {
	ec2Tags := make([]ec2types.Tag, 0, len(tagSet))
	for k, v := range tagSet {
		ec2Tags = append(ec2Tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return []ec2types.TagSpecification{
		{ResourceType: resourceType, Tags: ec2Tags},
	}
}

func nameFilters(name, vpcID string) []ec2types.Filter {
	return []ec2types.Filter{
		{Name: aws.String("tag:Name"), Values: []string{name}},
		{Name: aws.String("vpc-id"), Values: []string{vpcID}},
	}
}
