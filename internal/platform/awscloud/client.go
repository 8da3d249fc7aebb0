// Package awscloud provides a wrapper around the AWS APIs used by meshlab.
package awscloud

import (
	"context"
	"time"

	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
)

// NatGateway pairs a NAT gateway with the elastic IP allocation backing it.
type NatGateway struct {
	ID           string
	AllocationID string
}

// RouteTarget selects the target of a route. Exactly one field should be set.
type RouteTarget struct {
	InternetGatewayID string
	NatGatewayID      string
	PeeringID         string
}

// IngressRule describes one security group ingress permission.
type IngressRule struct {
	Protocol string // "tcp", "udp", or "-1" for all
	FromPort int32
	ToPort   int32
	CIDR     string
	// SourceSecurityGroupID permits traffic from another group instead of a CIDR.
	SourceSecurityGroupID string
	Description           string
}

// ContainerSpec describes one container within a task definition.
type ContainerSpec struct {
	Name         string
	Image        string
	Port         int32
	Env          map[string]string
	LogGroup     string
	LogRegion    string
	LogPrefix    string
	HealthChecks []string
}

// TaskDefinitionSpec holds the parameters for registering a task definition.
type TaskDefinitionSpec struct {
	Family           string
	CPU              string
	Memory           string
	ExecutionRoleARN string
	TaskRoleARN      string
	Container        ContainerSpec
	Tags             map[string]string
}

// ServiceOpts holds the parameters for creating or updating an ECS service.
type ServiceOpts struct {
	Cluster           string
	Name              string
	TaskDefinitionARN string
	DesiredCount      int32
	SubnetIDs         []string
	SecurityGroupIDs  []string
	Tags              map[string]string
}

// EKSClusterOpts holds the parameters for creating an EKS cluster.
type EKSClusterOpts struct {
	Name      string
	Version   string
	RoleARN   string
	SubnetIDs []string
	Tags      map[string]string
}

// NodegroupOpts holds the parameters for creating a managed nodegroup.
type NodegroupOpts struct {
	ClusterName  string
	Name         string
	NodeRoleARN  string
	SubnetIDs    []string
	InstanceType string
	DesiredSize  int32
	Tags         map[string]string
}

// NetworkManager defines the interface for managing VPC-level resources.
type NetworkManager interface {
	// EnsureVPC creates the VPC if a VPC with the given Name tag does not
	// exist. An existing VPC with a different CIDR is an error.
	EnsureVPC(ctx context.Context, name, cidr string, tags map[string]string) (ec2types.Vpc, error)
	EnsureSubnet(ctx context.Context, vpcID, name, cidr, az string, public bool, tags map[string]string) (ec2types.Subnet, error)
	EnsureInternetGateway(ctx context.Context, vpcID, name string, tags map[string]string) (string, error)
	// EnsureNatGateway allocates an elastic IP and creates the NAT gateway in
	// the given public subnet. Reuses an existing gateway with a matching
	// Name tag that is pending or available.
	EnsureNatGateway(ctx context.Context, subnetID, name string, tags map[string]string) (NatGateway, error)
	WaitNatGatewayAvailable(ctx context.Context, natID string, timeout time.Duration) error
	EnsureRouteTable(ctx context.Context, vpcID, name string, tags map[string]string) (string, error)
	AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) error
	EnsureRoute(ctx context.Context, routeTableID, destCIDR string, target RouteTarget) error
	EnsureSecurityGroup(ctx context.Context, vpcID, name, description string, tags map[string]string) (string, error)
	// AuthorizeIngress adds rules, treating duplicate-rule errors as success.
	AuthorizeIngress(ctx context.Context, groupID string, rules []IngressRule) error
	// CreatePeering requests a peering connection to a VPC that may live in
	// another account.
	CreatePeering(ctx context.Context, name, vpcID, peerVPCID, peerAccountID string, tags map[string]string) (string, error)
	// AcceptPeering accepts a pending peering request. Called on the client
	// for the accepter account.
	AcceptPeering(ctx context.Context, peeringID string) error
	WaitPeeringActive(ctx context.Context, peeringID string, timeout time.Duration) error
	AvailabilityZones(ctx context.Context, count int) ([]string, error)

	DeletePeering(ctx context.Context, peeringID string) error
	DeleteSecurityGroup(ctx context.Context, groupID string) error
	DeleteRouteTable(ctx context.Context, routeTableID string) error
	DeleteSubnet(ctx context.Context, subnetID string) error
	DeleteInternetGateway(ctx context.Context, vpcID, igwID string) error
	DeleteNatGateway(ctx context.Context, natID string, timeout time.Duration) error
	ReleaseAddress(ctx context.Context, allocationID string) error
	DeleteVPC(ctx context.Context, vpcID string) error
}

// ClusterManager defines the interface for managing ECS resources.
type ClusterManager interface {
	EnsureECSCluster(ctx context.Context, name string, tags map[string]string) (string, error)
	RegisterTaskDefinition(ctx context.Context, spec TaskDefinitionSpec) (string, error)
	// EnsureECSService creates the service or updates desired count and task
	// definition when the service already exists.
	EnsureECSService(ctx context.Context, opts ServiceOpts) (string, error)
	WaitServicesStable(ctx context.Context, cluster string, services []string, timeout time.Duration) error
	ScaleService(ctx context.Context, cluster, service string, count int32) error
	DeleteECSService(ctx context.Context, cluster, service string) error
	DeregisterTaskDefinitions(ctx context.Context, family string) error
	DeleteECSCluster(ctx context.Context, name string) error
}

// KubernetesManager defines the interface for managing the EKS control plane.
type KubernetesManager interface {
	EnsureEKSCluster(ctx context.Context, opts EKSClusterOpts) (*ekstypes.Cluster, error)
	WaitEKSClusterActive(ctx context.Context, name string, timeout time.Duration) (*ekstypes.Cluster, error)
	EnsureNodegroup(ctx context.Context, opts NodegroupOpts) error
	WaitNodegroupActive(ctx context.Context, cluster, nodegroup string, timeout time.Duration) error
	// EKSToken returns a pre-signed bearer token for the cluster, suitable
	// for client-go authentication.
	EKSToken(ctx context.Context, clusterName string) (string, error)

	DeleteNodegroup(ctx context.Context, cluster, nodegroup string, timeout time.Duration) error
	DeleteEKSCluster(ctx context.Context, name string, timeout time.Duration) error
}

// RoleManager defines the interface for managing IAM roles.
type RoleManager interface {
	EnsureRole(ctx context.Context, name, assumeRolePolicy string, tags map[string]string) (string, error)
	AttachRolePolicy(ctx context.Context, roleName, policyARN string) error
	// DeleteRole detaches all managed policies before deleting.
	DeleteRole(ctx context.Context, name string) error
}

// LoadBalancerManager cleans up load balancers created behind our back by
// Kubernetes Service objects (the east-west gateway's NLB).
type LoadBalancerManager interface {
	DeleteTaggedLoadBalancers(ctx context.Context, env string) error
}

// LogGroupManager defines the interface for managing CloudWatch log groups.
type LogGroupManager interface {
	EnsureLogGroup(ctx context.Context, name string, tags map[string]string) error
	DeleteLogGroup(ctx context.Context, name string) error
}

// CloudManager combines all AWS interfaces for one account.
type CloudManager interface {
	NetworkManager
	ClusterManager
	KubernetesManager
	RoleManager
	LoadBalancerManager
	LogGroupManager
	// CallerIdentity returns the account ID and caller ARN for this client.
	CallerIdentity(ctx context.Context) (accountID, arn string, err error)
}
