package awscloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/meshlab-io/meshlab/internal/util/retry"
)

// deleteWithRetry runs an idempotent delete: not-found is success, dependency
// violations are retried with backoff while teardown drains, anything else is
// fatal.
func (c *RealClient) deleteWithRetry(ctx context.Context, resourceType, id string, del func(context.Context) error) error {
	err := retry.WithExponentialBackoff(ctx, func() error {
		err := del(ctx)
		if err == nil || IsNotFound(err) {
			return nil
		}
		if IsDependencyViolation(err) || IsThrottled(err) {
			return err // Retryable
		}
		return retry.Fatal(err)
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(time.Minute))
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", resourceType, id, err)
	}
	return nil
}

// DeletePeering deletes a peering connection.
func (c *RealClient) DeletePeering(ctx context.Context, peeringID string) error {
	return c.deleteWithRetry(ctx, "peering connection", peeringID, func(ctx context.Context) error {
		_, err := c.ec2.DeleteVpcPeeringConnection(ctx, &ec2.DeleteVpcPeeringConnectionInput{
			VpcPeeringConnectionId: aws.String(peeringID),
		})
		return err
	})
}

// DeleteSecurityGroup deletes a security group.
func (c *RealClient) DeleteSecurityGroup(ctx context.Context, groupID string) error {
	return c.deleteWithRetry(ctx, "security group", groupID, func(ctx context.Context) error {
		_, err := c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: aws.String(groupID),
		})
		return err
	})
}

// DeleteRouteTable disassociates and deletes a route table.
func (c *RealClient) DeleteRouteTable(ctx context.Context, routeTableID string) error {
	out, err := c.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		RouteTableIds: []string{routeTableID},
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to describe route table %s: %w", routeTableID, err)
	}

	for _, rt := range out.RouteTables {
		for _, assoc := range rt.Associations {
			if assoc.Main != nil && *assoc.Main {
				continue // main association cannot be removed
			}
			if assoc.RouteTableAssociationId == nil {
				continue
			}
			if _, err := c.ec2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
				AssociationId: assoc.RouteTableAssociationId,
			}); err != nil && !IsNotFound(err) {
				return fmt.Errorf("failed to disassociate route table %s: %w", routeTableID, err)
			}
		}
	}

	return c.deleteWithRetry(ctx, "route table", routeTableID, func(ctx context.Context) error {
		_, err := c.ec2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{
			RouteTableId: aws.String(routeTableID),
		})
		return err
	})
}

// DeleteSubnet deletes a subnet.
func (c *RealClient) DeleteSubnet(ctx context.Context, subnetID string) error {
	return c.deleteWithRetry(ctx, "subnet", subnetID, func(ctx context.Context) error {
		_, err := c.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{
			SubnetId: aws.String(subnetID),
		})
		return err
	})
}

// DeleteInternetGateway detaches and deletes an internet gateway.
func (c *RealClient) DeleteInternetGateway(ctx context.Context, vpcID, igwID string) error {
	err := c.deleteWithRetry(ctx, "internet gateway attachment", igwID, func(ctx context.Context) error {
		_, err := c.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
			VpcId:             aws.String(vpcID),
		})
		if isAPIErrorCode(err, "Gateway.NotAttached") {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	return c.deleteWithRetry(ctx, "internet gateway", igwID, func(ctx context.Context) error {
		_, err := c.ec2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
		})
		return err
	})
}

// DeleteNatGateway deletes a NAT gateway and waits until it is gone. Routes
// and the elastic IP cannot be released while the gateway is deleting.
func (c *RealClient) DeleteNatGateway(ctx context.Context, natID string, timeout time.Duration) error {
	_, err := c.ec2.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{
		NatGatewayId: aws.String(natID),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete nat gateway %s: %w", natID, err)
	}

	return retry.PollUntil(ctx, c.timeouts.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		out, err := c.ec2.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
			NatGatewayIds: []string{natID},
		})
		if err != nil {
			if IsNotFound(err) {
				return true, nil
			}
			return false, err
		}
		if len(out.NatGateways) == 0 {
			return true, nil
		}
		return out.NatGateways[0].State == "deleted", nil
	})
}

// ReleaseAddress releases an elastic IP allocation.
func (c *RealClient) ReleaseAddress(ctx context.Context, allocationID string) error {
	return c.deleteWithRetry(ctx, "elastic IP", allocationID, func(ctx context.Context) error {
		_, err := c.ec2.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{
			AllocationId: aws.String(allocationID),
		})
		return err
	})
}

// DeleteVPC deletes a VPC. All dependent resources must already be gone.
func (c *RealClient) DeleteVPC(ctx context.Context, vpcID string) error {
	return c.deleteWithRetry(ctx, "vpc", vpcID, func(ctx context.Context) error {
		_, err := c.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{
			VpcId: aws.String(vpcID),
		})
		return err
	})
}
