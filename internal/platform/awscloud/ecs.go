package awscloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/meshlab-io/meshlab/internal/util/retry"
)

// EnsureECSCluster ensures an ECS cluster with the given name exists and is
// active. A cluster in INACTIVE state (previously deleted) is recreated.
func (c *RealClient) EnsureECSCluster(ctx context.Context, name string, tagSet map[string]string) (string, error) {
	out, err := c.ecs.DescribeClusters(ctx, &ecs.DescribeClustersInput{
		Clusters: []string{name},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe ecs cluster %s: %w", name, err)
	}
	for _, cluster := range out.Clusters {
		if stringValue(cluster.Status) == "ACTIVE" {
			return stringValue(cluster.ClusterArn), nil
		}
	}

	created, err := c.ecs.CreateCluster(ctx, &ecs.CreateClusterInput{
		ClusterName:       aws.String(name),
		Tags:              ecsTags(tagSet),
		CapacityProviders: []string{"FARGATE"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create ecs cluster %s: %w", name, err)
	}
	return stringValue(created.Cluster.ClusterArn), nil
}

// RegisterTaskDefinition registers a new revision of a Fargate task
// definition. Registration is append-only on the AWS side; every call makes a
// new revision and callers deploy the returned ARN.
func (c *RealClient) RegisterTaskDefinition(ctx context.Context, spec TaskDefinitionSpec) (string, error) {
	container := ecstypes.ContainerDefinition{
		Name:      aws.String(spec.Container.Name),
		Image:     aws.String(spec.Container.Image),
		Essential: aws.Bool(true),
	}

	if spec.Container.Port > 0 {
		container.PortMappings = []ecstypes.PortMapping{
			{
				ContainerPort: aws.Int32(spec.Container.Port),
				Protocol:      ecstypes.TransportProtocolTcp,
			},
		}
	}

	for k, v := range spec.Container.Env {
		container.Environment = append(container.Environment, ecstypes.KeyValuePair{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	if spec.Container.LogGroup != "" {
		container.LogConfiguration = &ecstypes.LogConfiguration{
			LogDriver: ecstypes.LogDriverAwslogs,
			Options: map[string]string{
				"awslogs-group":         spec.Container.LogGroup,
				"awslogs-region":        spec.Container.LogRegion,
				"awslogs-stream-prefix": spec.Container.LogPrefix,
			},
		}
	}

	out, err := c.ecs.RegisterTaskDefinition(ctx, &ecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(spec.Family),
		RequiresCompatibilities: []ecstypes.Compatibility{ecstypes.CompatibilityFargate},
		NetworkMode:             ecstypes.NetworkModeAwsvpc,
		Cpu:                     aws.String(spec.CPU),
		Memory:                  aws.String(spec.Memory),
		ExecutionRoleArn:        aws.String(spec.ExecutionRoleARN),
		TaskRoleArn:             aws.String(spec.TaskRoleARN),
		ContainerDefinitions:    []ecstypes.ContainerDefinition{container},
		Tags:                    ecsTags(spec.Tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to register task definition %s: %w", spec.Family, err)
	}
	return stringValue(out.TaskDefinition.TaskDefinitionArn), nil
}

// EnsureECSService creates the service, or updates desired count and task
// definition when a service with the name already exists.
func (c *RealClient) EnsureECSService(ctx context.Context, opts ServiceOpts) (string, error) {
	existing, err := c.findService(ctx, opts.Cluster, opts.Name)
	if err != nil {
		return "", err
	}

	if existing != nil {
		if stringValue(existing.TaskDefinition) == opts.TaskDefinitionARN &&
			existing.DesiredCount == opts.DesiredCount {
			return stringValue(existing.ServiceArn), nil
		}
		updated, err := c.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
			Cluster:        aws.String(opts.Cluster),
			Service:        aws.String(opts.Name),
			TaskDefinition: aws.String(opts.TaskDefinitionARN),
			DesiredCount:   aws.Int32(opts.DesiredCount),
		})
		if err != nil {
			return "", fmt.Errorf("failed to update ecs service %s: %w", opts.Name, err)
		}
		return stringValue(updated.Service.ServiceArn), nil
	}

	created, err := c.ecs.CreateService(ctx, &ecs.CreateServiceInput{
		Cluster:        aws.String(opts.Cluster),
		ServiceName:    aws.String(opts.Name),
		TaskDefinition: aws.String(opts.TaskDefinitionARN),
		DesiredCount:   aws.Int32(opts.DesiredCount),
		LaunchType:     ecstypes.LaunchTypeFargate,
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        opts.SubnetIDs,
				SecurityGroups: opts.SecurityGroupIDs,
				AssignPublicIp: ecstypes.AssignPublicIpDisabled,
			},
		},
		Tags:                 ecsTags(opts.Tags),
		EnableExecuteCommand: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create ecs service %s: %w", opts.Name, err)
	}
	return stringValue(created.Service.ServiceArn), nil
}

// WaitServicesStable polls until every service reports a settled primary
// deployment with runningCount == desiredCount.
func (c *RealClient) WaitServicesStable(ctx context.Context, cluster string, services []string, timeout time.Duration) error {
	if len(services) == 0 {
		return nil
	}

	return retry.PollUntil(ctx, c.timeouts.PollInterval, timeout, func(ctx context.Context) (bool, error) {
		out, err := c.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
			Cluster:  aws.String(cluster),
			Services: services,
		})
		if err != nil {
			return false, err
		}

		stable := 0
		for _, svc := range out.Services {
			if serviceStable(svc) {
				stable++
			}
		}
		return stable == len(services), nil
	})
}

func serviceStable(svc ecstypes.Service) bool {
	if svc.RunningCount != svc.DesiredCount {
		return false
	}
	// A single settled deployment means no rollout is in flight.
	return len(svc.Deployments) == 1
}

// ScaleService sets the desired count of a service.
func (c *RealClient) ScaleService(ctx context.Context, cluster, service string, count int32) error {
	_, err := c.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(cluster),
		Service:      aws.String(service),
		DesiredCount: aws.Int32(count),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to scale ecs service %s to %d: %w", service, count, err)
	}
	return nil
}

// DeleteECSService deletes a service. The service should be scaled to zero
// first; force handles any stragglers.
func (c *RealClient) DeleteECSService(ctx context.Context, cluster, service string) error {
	return c.deleteWithRetry(ctx, "ecs service", service, func(ctx context.Context) error {
		_, err := c.ecs.DeleteService(ctx, &ecs.DeleteServiceInput{
			Cluster: aws.String(cluster),
			Service: aws.String(service),
			Force:   aws.Bool(true),
		})
		return err
	})
}

// DeregisterTaskDefinitions deregisters all active revisions of a family.
func (c *RealClient) DeregisterTaskDefinitions(ctx context.Context, family string) error {
	paginator := ecs.NewListTaskDefinitionsPaginator(c.ecs, &ecs.ListTaskDefinitionsInput{
		FamilyPrefix: aws.String(family),
		Status:       ecstypes.TaskDefinitionStatusActive,
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list task definitions for %s: %w", family, err)
		}
		for _, arn := range page.TaskDefinitionArns {
			_, err := c.ecs.DeregisterTaskDefinition(ctx, &ecs.DeregisterTaskDefinitionInput{
				TaskDefinition: aws.String(arn),
			})
			if err != nil && !IsNotFound(err) {
				return fmt.Errorf("failed to deregister task definition %s: %w", arn, err)
			}
		}
	}
	return nil
}

// DeleteECSCluster deletes an ECS cluster.
func (c *RealClient) DeleteECSCluster(ctx context.Context, name string) error {
	return c.deleteWithRetry(ctx, "ecs cluster", name, func(ctx context.Context) error {
		_, err := c.ecs.DeleteCluster(ctx, &ecs.DeleteClusterInput{
			Cluster: aws.String(name),
		})
		return err
	})
}

func (c *RealClient) findService(ctx context.Context, cluster, name string) (*ecstypes.Service, error) {
	out, err := c.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{name},
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe ecs service %s: %w", name, err)
	}
	for i := range out.Services {
		if stringValue(out.Services[i].Status) == "ACTIVE" {
			return &out.Services[i], nil
		}
	}
	return nil, nil
}

func ecsTags(tagSet map[string]string) []ecstypes.Tag {
	out := make([]ecstypes.Tag, 0, len(tagSet))
	for k, v := range tagSet {
		out = append(out, ecstypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}
