package awscloud

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/meshlab-io/meshlab/internal/util/retry"
)

// tokenPrefix is the header value format kube-apiserver's aws-iam-authenticator
// webhook expects.
const tokenPrefix = "k8s-aws-v1."

// clusterIDHeader carries the cluster name inside the pre-signed request.
const clusterIDHeader = "x-k8s-aws-id"

// EnsureEKSCluster creates the EKS cluster if it does not exist. Returns the
// cluster in whatever state it is in; callers wait for ACTIVE separately.
func (c *RealClient) EnsureEKSCluster(ctx context.Context, opts EKSClusterOpts) (*ekstypes.Cluster, error) {
	existing, err := c.describeEKSCluster(ctx, opts.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	input := &eks.CreateClusterInput{
		Name:    aws.String(opts.Name),
		RoleArn: aws.String(opts.RoleARN),
		ResourcesVpcConfig: &ekstypes.VpcConfigRequest{
			SubnetIds: opts.SubnetIDs,
		},
		Tags: opts.Tags,
	}
	if opts.Version != "" {
		input.Version = aws.String(opts.Version)
	}

	out, err := c.eks.CreateCluster(ctx, input)
	if err != nil {
		if IsAlreadyExists(err) {
			return c.describeEKSCluster(ctx, opts.Name)
		}
		return nil, fmt.Errorf("failed to create eks cluster %s: %w", opts.Name, err)
	}
	return out.Cluster, nil
}

// WaitEKSClusterActive polls until the control plane reports ACTIVE and
// returns the final cluster description (endpoint and CA populated).
func (c *RealClient) WaitEKSClusterActive(ctx context.Context, name string, timeout time.Duration) (*ekstypes.Cluster, error) {
	var cluster *ekstypes.Cluster

	err := retry.PollUntil(ctx, c.timeouts.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		got, err := c.describeEKSCluster(ctx, name)
		if err != nil {
			return false, err
		}
		if got == nil {
			return false, retry.Fatal(fmt.Errorf("eks cluster %s does not exist", name))
		}
		switch got.Status {
		case ekstypes.ClusterStatusActive:
			cluster = got
			return true, nil
		case ekstypes.ClusterStatusFailed:
			return false, retry.Fatal(fmt.Errorf("eks cluster %s entered FAILED state", name))
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for eks cluster %s: %w", name, err)
	}
	return cluster, nil
}

// EnsureNodegroup creates the managed nodegroup if it does not exist.
func (c *RealClient) EnsureNodegroup(ctx context.Context, opts NodegroupOpts) error {
	_, err := c.eks.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
		ClusterName:   aws.String(opts.ClusterName),
		NodegroupName: aws.String(opts.Name),
	})
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return fmt.Errorf("failed to describe nodegroup %s: %w", opts.Name, err)
	}

	_, err = c.eks.CreateNodegroup(ctx, &eks.CreateNodegroupInput{
		ClusterName:   aws.String(opts.ClusterName),
		NodegroupName: aws.String(opts.Name),
		NodeRole:      aws.String(opts.NodeRoleARN),
		Subnets:       opts.SubnetIDs,
		InstanceTypes: []string{opts.InstanceType},
		ScalingConfig: &ekstypes.NodegroupScalingConfig{
			MinSize:     aws.Int32(opts.DesiredSize),
			MaxSize:     aws.Int32(opts.DesiredSize),
			DesiredSize: aws.Int32(opts.DesiredSize),
		},
		AmiType: ekstypes.AMITypesAl2023X8664Standard,
		Tags:    opts.Tags,
	})
	if err != nil && !IsAlreadyExists(err) {
		return fmt.Errorf("failed to create nodegroup %s: %w", opts.Name, err)
	}
	return nil
}

// WaitNodegroupActive polls until the nodegroup reports ACTIVE.
func (c *RealClient) WaitNodegroupActive(ctx context.Context, cluster, nodegroup string, timeout time.Duration) error {
	return retry.PollUntil(ctx, c.timeouts.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		out, err := c.eks.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
			ClusterName:   aws.String(cluster),
			NodegroupName: aws.String(nodegroup),
		})
		if err != nil {
			if IsNotFound(err) {
				return false, retry.Fatal(err)
			}
			return false, err
		}
		switch out.Nodegroup.Status {
		case ekstypes.NodegroupStatusActive:
			return true, nil
		case ekstypes.NodegroupStatusCreateFailed, ekstypes.NodegroupStatusDegraded:
			return false, retry.Fatal(fmt.Errorf("nodegroup %s entered state %s", nodegroup, out.Nodegroup.Status))
		default:
			return false, nil
		}
	})
}

// EKSToken returns a pre-signed STS bearer token for the cluster. The token
// is the aws-iam-authenticator format: a pre-signed GetCallerIdentity URL
// carrying the cluster name header, base64url-encoded.
func (c *RealClient) EKSToken(ctx context.Context, clusterName string) (string, error) {
	presigner := sts.NewPresignClient(c.sts)

	out, err := presigner.PresignGetCallerIdentity(ctx, &sts.GetCallerIdentityInput{},
		func(po *sts.PresignOptions) {
			po.ClientOptions = append(po.ClientOptions, func(o *sts.Options) {
				o.APIOptions = append(o.APIOptions,
					smithyhttp.AddHeaderValue(clusterIDHeader, clusterName),
					smithyhttp.AddHeaderValue("X-Amz-Expires", "60"),
				)
			})
		})
	if err != nil {
		return "", fmt.Errorf("failed to presign token for cluster %s: %w", clusterName, err)
	}

	return tokenPrefix + base64.RawURLEncoding.EncodeToString([]byte(out.URL)), nil
}

// DeleteNodegroup deletes the nodegroup and waits until it is gone. The EKS
// cluster cannot be deleted while nodegroups remain.
func (c *RealClient) DeleteNodegroup(ctx context.Context, cluster, nodegroup string, timeout time.Duration) error {
	_, err := c.eks.DeleteNodegroup(ctx, &eks.DeleteNodegroupInput{
		ClusterName:   aws.String(cluster),
		NodegroupName: aws.String(nodegroup),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete nodegroup %s: %w", nodegroup, err)
	}

	return retry.PollUntil(ctx, c.timeouts.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		_, err := c.eks.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
			ClusterName:   aws.String(cluster),
			NodegroupName: aws.String(nodegroup),
		})
		if IsNotFound(err) {
			return true, nil
		}
		return false, err
	})
}

// DeleteEKSCluster deletes the cluster and waits until it is gone.
func (c *RealClient) DeleteEKSCluster(ctx context.Context, name string, timeout time.Duration) error {
	_, err := c.eks.DeleteCluster(ctx, &eks.DeleteClusterInput{
		Name: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete eks cluster %s: %w", name, err)
	}

	return retry.PollUntil(ctx, c.timeouts.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		got, err := c.describeEKSCluster(ctx, name)
		if err != nil {
			return false, err
		}
		return got == nil, nil
	})
}

func (c *RealClient) describeEKSCluster(ctx context.Context, name string) (*ekstypes.Cluster, error) {
	out, err := c.eks.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe eks cluster %s: %w", name, err)
	}
	return out.Cluster, nil
}
