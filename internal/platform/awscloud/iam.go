package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// Trust policies for the roles meshlab creates. IAM wants these as raw JSON
// policy documents.
const (
	ECSTasksTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "ecs-tasks.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

	EKSClusterTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "eks.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

	EC2TrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "ec2.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`
)

// Managed policy ARNs attached to the roles meshlab creates.
const (
	PolicyECSTaskExecution       = "arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"
	PolicyEKSCluster             = "arn:aws:iam::aws:policy/AmazonEKSClusterPolicy"
	PolicyEKSWorkerNode          = "arn:aws:iam::aws:policy/AmazonEKSWorkerNodePolicy"
	PolicyEKSCNI                 = "arn:aws:iam::aws:policy/AmazonEKS_CNI_Policy"
	PolicyECRReadOnly            = "arn:aws:iam::aws:policy/AmazonEC2ContainerRegistryReadOnly"
	PolicySSMManagedInstanceCore = "arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore"
)

// EnsureRole creates the role if it does not exist and returns its ARN.
func (c *RealClient) EnsureRole(ctx context.Context, name, assumeRolePolicy string, tagSet map[string]string) (string, error) {
	got, err := c.iam.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(name),
	})
	if err == nil {
		return stringValue(got.Role.Arn), nil
	}
	if !IsNotFound(err) {
		return "", fmt.Errorf("failed to get iam role %s: %w", name, err)
	}

	created, err := c.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(assumeRolePolicy),
		Tags:                     iamTags(tagSet),
	})
	if err != nil {
		if IsAlreadyExists(err) {
			got, getErr := c.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
			if getErr != nil {
				return "", fmt.Errorf("failed to get iam role %s after create race: %w", name, getErr)
			}
			return stringValue(got.Role.Arn), nil
		}
		return "", fmt.Errorf("failed to create iam role %s: %w", name, err)
	}
	return stringValue(created.Role.Arn), nil
}

// AttachRolePolicy attaches a managed policy to a role. Attaching an already
// attached policy is a no-op on the AWS side.
func (c *RealClient) AttachRolePolicy(ctx context.Context, roleName, policyARN string) error {
	_, err := c.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyARN),
	})
	if err != nil {
		return fmt.Errorf("failed to attach policy %s to role %s: %w", policyARN, roleName, err)
	}
	return nil
}

// DeleteRole detaches all managed policies and deletes the role.
func (c *RealClient) DeleteRole(ctx context.Context, name string) error {
	attached, err := c.iam.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list policies for role %s: %w", name, err)
	}

	for _, policy := range attached.AttachedPolicies {
		_, err := c.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(name),
			PolicyArn: policy.PolicyArn,
		})
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to detach policy %s from role %s: %w", stringValue(policy.PolicyArn), name, err)
		}
	}

	return c.deleteWithRetry(ctx, "iam role", name, func(ctx context.Context) error {
		_, err := c.iam.DeleteRole(ctx, &iam.DeleteRoleInput{
			RoleName: aws.String(name),
		})
		return err
	})
}

func iamTags(tagSet map[string]string) []iamtypes.Tag {
	out := make([]iamtypes.Tag, 0, len(tagSet))
	for k, v := range tagSet {
		out = append(out, iamtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}
