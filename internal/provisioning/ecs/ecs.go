// Package ecs provisions the ECS side of a meshlab environment: the Fargate
// cluster during apply, and task definitions plus services during deploy.
package ecs

import (
	"fmt"

	"github.com/meshlab-io/meshlab/internal/platform/awscloud"
	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/util/naming"
	"github.com/meshlab-io/meshlab/internal/util/tags"
)

// ClusterPhase ensures the ECS cluster exists.
type ClusterPhase struct{}

// NewClusterPhase creates the ECS cluster phase.
func NewClusterPhase() *ClusterPhase {
	return &ClusterPhase{}
}

// Name implements the Phase interface.
func (p *ClusterPhase) Name() string {
	return "ecs-cluster"
}

// Provision implements the Phase interface.
func (p *ClusterPhase) Provision(ctx *provisioning.Context) error {
	env := ctx.Config.EnvironmentName
	cloud := ctx.CloudFor("external")

	name := naming.ECSCluster(env)
	arn, err := cloud.EnsureECSCluster(ctx, name, tags.NewBuilder(env).WithSide(tags.SideExternal).Build())
	if err != nil {
		return err
	}
	ctx.State.ECSClusterARN = arn
	provisioning.LogResourceCreated(ctx.Observer, p.Name(), "ecs cluster", name, arn)
	return nil
}

// ServicesPhase registers task definitions and deploys one ECS service per
// configured ServiceSpec, then waits for them to stabilize.
type ServicesPhase struct{}

// NewServicesPhase creates the ECS services phase.
func NewServicesPhase() *ServicesPhase {
	return &ServicesPhase{}
}

// Name implements the Phase interface.
func (p *ServicesPhase) Name() string {
	return "ecs-services"
}

// Provision implements the Phase interface.
func (p *ServicesPhase) Provision(ctx *provisioning.Context) error {
	env := ctx.Config.EnvironmentName
	cloud := ctx.CloudFor("external")
	st := ctx.State.Side("external")

	if ctx.State.ECSClusterARN == "" {
		return fmt.Errorf("ecs cluster not provisioned; run apply first")
	}
	if len(st.PrivateSubnetIDs) == 0 || st.MeshSecurityGroup == "" {
		return fmt.Errorf("external network not provisioned; run apply first")
	}

	cluster := naming.ECSCluster(env)
	var serviceNames []string

	for _, svc := range ctx.Config.ECS.Services {
		svcTags := tags.NewBuilder(env).WithSide(tags.SideExternal).WithRole(svc.Name).Build()

		logGroup := naming.LogGroup(env, svc.Name)
		if err := cloud.EnsureLogGroup(ctx, logGroup, svcTags); err != nil {
			return err
		}
		ctx.State.AddLogGroup(logGroup)

		family := naming.TaskFamily(env, svc.Name)
		taskDefARN, err := cloud.RegisterTaskDefinition(ctx, awscloud.TaskDefinitionSpec{
			Family:           family,
			CPU:              svc.CPU,
			Memory:           svc.Memory,
			ExecutionRoleARN: ctx.State.TaskExecutionRoleARN,
			TaskRoleARN:      ctx.State.TaskRoleARN,
			Container: awscloud.ContainerSpec{
				Name:      svc.Name,
				Image:     svc.Image,
				Port:      svc.Port,
				Env:       svc.Env,
				LogGroup:  logGroup,
				LogRegion: ctx.Config.Region,
				LogPrefix: svc.Name,
			},
			Tags: svcTags,
		})
		if err != nil {
			return err
		}
		ctx.State.TaskDefinitionARNs[svc.Name] = taskDefARN

		serviceARN, err := cloud.EnsureECSService(ctx, awscloud.ServiceOpts{
			Cluster:           cluster,
			Name:              svc.Name,
			TaskDefinitionARN: taskDefARN,
			DesiredCount:      svc.DesiredCount,
			SubnetIDs:         st.PrivateSubnetIDs,
			SecurityGroupIDs:  []string{st.MeshSecurityGroup},
			Tags:              svcTags,
		})
		if err != nil {
			return err
		}
		ctx.State.ServiceARNs[svc.Name] = serviceARN
		serviceNames = append(serviceNames, svc.Name)
		provisioning.LogResourceCreated(ctx.Observer, p.Name(), "ecs service", svc.Name, serviceARN)
	}

	return cloud.WaitServicesStable(ctx, cluster, serviceNames, ctx.Timeouts.ECSService)
}
