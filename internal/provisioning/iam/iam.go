// Package iam provisions the IAM roles the ECS tasks and EKS cluster run
// under.
package iam

import (
	"github.com/meshlab-io/meshlab/internal/platform/awscloud"
	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/util/naming"
	"github.com/meshlab-io/meshlab/internal/util/tags"
)

// Phase ensures the four roles and their managed policy attachments. Role
// creation is idempotent and attachment is a no-op when already attached.
type Phase struct{}

// NewPhase creates the IAM phase.
func NewPhase() *Phase {
	return &Phase{}
}

// Name implements the Phase interface.
func (p *Phase) Name() string {
	return "iam"
}

// Provision implements the Phase interface.
func (p *Phase) Provision(ctx *provisioning.Context) error {
	env := ctx.Config.EnvironmentName
	roleTags := tags.NewBuilder(env).Build()

	// ECS roles live in the account that runs the ECS cluster.
	ecsCloud := ctx.CloudFor("external")

	execRole := naming.TaskExecutionRole(env)
	execARN, err := ecsCloud.EnsureRole(ctx, execRole, awscloud.ECSTasksTrustPolicy, roleTags)
	if err != nil {
		return err
	}
	if err := ecsCloud.AttachRolePolicy(ctx, execRole, awscloud.PolicyECSTaskExecution); err != nil {
		return err
	}
	ctx.State.TaskExecutionRoleARN = execARN
	provisioning.LogResourceCreated(ctx.Observer, p.Name(), "iam role", execRole, execARN)

	taskRole := naming.TaskRole(env)
	taskARN, err := ecsCloud.EnsureRole(ctx, taskRole, awscloud.ECSTasksTrustPolicy, roleTags)
	if err != nil {
		return err
	}
	// Exec into tasks goes through SSM messages.
	if err := ecsCloud.AttachRolePolicy(ctx, taskRole, awscloud.PolicySSMManagedInstanceCore); err != nil {
		return err
	}
	ctx.State.TaskRoleARN = taskARN

	clusterRole := naming.EKSClusterRole(env)
	clusterARN, err := ctx.Cloud.EnsureRole(ctx, clusterRole, awscloud.EKSClusterTrustPolicy, roleTags)
	if err != nil {
		return err
	}
	if err := ctx.Cloud.AttachRolePolicy(ctx, clusterRole, awscloud.PolicyEKSCluster); err != nil {
		return err
	}
	ctx.State.EKSClusterRoleARN = clusterARN

	nodeRole := naming.NodeRole(env)
	nodeARN, err := ctx.Cloud.EnsureRole(ctx, nodeRole, awscloud.EC2TrustPolicy, roleTags)
	if err != nil {
		return err
	}
	for _, policy := range []string{
		awscloud.PolicyEKSWorkerNode,
		awscloud.PolicyEKSCNI,
		awscloud.PolicyECRReadOnly,
	} {
		if err := ctx.Cloud.AttachRolePolicy(ctx, nodeRole, policy); err != nil {
			return err
		}
	}
	ctx.State.NodeRoleARN = nodeARN

	return nil
}
