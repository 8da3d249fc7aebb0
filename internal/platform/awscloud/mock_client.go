package awscloud

import (
	"context"
	"fmt"
	"sync"
	"time"

	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
)

// MockClient is a mock implementation of CloudManager for testing. Each
// method delegates to the corresponding function field when set, and falls
// back to a permissive default otherwise. Calls are recorded for assertions.
type MockClient struct {
	mu    sync.Mutex
	calls []string

	EnsureVPCFunc                 func(ctx context.Context, name, cidr string, tags map[string]string) (ec2types.Vpc, error)
	EnsureSubnetFunc              func(ctx context.Context, vpcID, name, cidr, az string, public bool, tags map[string]string) (ec2types.Subnet, error)
	EnsureInternetGatewayFunc     func(ctx context.Context, vpcID, name string, tags map[string]string) (string, error)
	EnsureNatGatewayFunc          func(ctx context.Context, subnetID, name string, tags map[string]string) (NatGateway, error)
	WaitNatGatewayAvailableFunc   func(ctx context.Context, natID string, timeout time.Duration) error
	EnsureRouteTableFunc          func(ctx context.Context, vpcID, name string, tags map[string]string) (string, error)
	AssociateRouteTableFunc       func(ctx context.Context, routeTableID, subnetID string) error
	EnsureRouteFunc               func(ctx context.Context, routeTableID, destCIDR string, target RouteTarget) error
	EnsureSecurityGroupFunc       func(ctx context.Context, vpcID, name, description string, tags map[string]string) (string, error)
	AuthorizeIngressFunc          func(ctx context.Context, groupID string, rules []IngressRule) error
	CreatePeeringFunc             func(ctx context.Context, name, vpcID, peerVPCID, peerAccountID string, tags map[string]string) (string, error)
	AcceptPeeringFunc             func(ctx context.Context, peeringID string) error
	WaitPeeringActiveFunc         func(ctx context.Context, peeringID string, timeout time.Duration) error
	AvailabilityZonesFunc         func(ctx context.Context, count int) ([]string, error)
	DeletePeeringFunc             func(ctx context.Context, peeringID string) error
	DeleteSecurityGroupFunc       func(ctx context.Context, groupID string) error
	DeleteRouteTableFunc          func(ctx context.Context, routeTableID string) error
	DeleteSubnetFunc              func(ctx context.Context, subnetID string) error
	DeleteInternetGatewayFunc     func(ctx context.Context, vpcID, igwID string) error
	DeleteNatGatewayFunc          func(ctx context.Context, natID string, timeout time.Duration) error
	ReleaseAddressFunc            func(ctx context.Context, allocationID string) error
	DeleteVPCFunc                 func(ctx context.Context, vpcID string) error
	EnsureECSClusterFunc          func(ctx context.Context, name string, tags map[string]string) (string, error)
	RegisterTaskDefinitionFunc    func(ctx context.Context, spec TaskDefinitionSpec) (string, error)
	EnsureECSServiceFunc          func(ctx context.Context, opts ServiceOpts) (string, error)
	WaitServicesStableFunc        func(ctx context.Context, cluster string, services []string, timeout time.Duration) error
	ScaleServiceFunc              func(ctx context.Context, cluster, service string, count int32) error
	DeleteECSServiceFunc          func(ctx context.Context, cluster, service string) error
	DeregisterTaskDefinitionsFunc func(ctx context.Context, family string) error
	DeleteECSClusterFunc          func(ctx context.Context, name string) error
	EnsureEKSClusterFunc          func(ctx context.Context, opts EKSClusterOpts) (*ekstypes.Cluster, error)
	WaitEKSClusterActiveFunc      func(ctx context.Context, name string, timeout time.Duration) (*ekstypes.Cluster, error)
	EnsureNodegroupFunc           func(ctx context.Context, opts NodegroupOpts) error
	WaitNodegroupActiveFunc       func(ctx context.Context, cluster, nodegroup string, timeout time.Duration) error
	EKSTokenFunc                  func(ctx context.Context, clusterName string) (string, error)
	DeleteNodegroupFunc           func(ctx context.Context, cluster, nodegroup string, timeout time.Duration) error
	DeleteEKSClusterFunc          func(ctx context.Context, name string, timeout time.Duration) error
	EnsureRoleFunc                func(ctx context.Context, name, assumeRolePolicy string, tags map[string]string) (string, error)
	AttachRolePolicyFunc          func(ctx context.Context, roleName, policyARN string) error
	DeleteRoleFunc                func(ctx context.Context, name string) error
	DeleteTaggedLoadBalancersFunc func(ctx context.Context, env string) error
	EnsureLogGroupFunc            func(ctx context.Context, name string, tags map[string]string) error
	DeleteLogGroupFunc            func(ctx context.Context, name string) error
	CallerIdentityFunc            func(ctx context.Context) (string, string, error)
}

// NewMockClient creates a mock with permissive defaults.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Calls returns the recorded call names in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *MockClient) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *MockClient) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *MockClient) EnsureVPC(ctx context.Context, name, cidr string, tags map[string]string) (ec2types.Vpc, error) {
	m.record("EnsureVPC")
	if m.EnsureVPCFunc != nil {
		return m.EnsureVPCFunc(ctx, name, cidr, tags)
	}
	vpcID := "vpc-" + name
	return ec2types.Vpc{VpcId: &vpcID, CidrBlock: &cidr}, nil
}

func (m *MockClient) EnsureSubnet(ctx context.Context, vpcID, name, cidr, az string, public bool, tags map[string]string) (ec2types.Subnet, error) {
	m.record("EnsureSubnet")
	if m.EnsureSubnetFunc != nil {
		return m.EnsureSubnetFunc(ctx, vpcID, name, cidr, az, public, tags)
	}
	subnetID := "subnet-" + name
	return ec2types.Subnet{SubnetId: &subnetID, CidrBlock: &cidr, AvailabilityZone: &az}, nil
}

func (m *MockClient) EnsureInternetGateway(ctx context.Context, vpcID, name string, tags map[string]string) (string, error) {
	m.record("EnsureInternetGateway")
	if m.EnsureInternetGatewayFunc != nil {
		return m.EnsureInternetGatewayFunc(ctx, vpcID, name, tags)
	}
	return "igw-" + name, nil
}

func (m *MockClient) EnsureNatGateway(ctx context.Context, subnetID, name string, tags map[string]string) (NatGateway, error) {
	m.record("EnsureNatGateway")
	if m.EnsureNatGatewayFunc != nil {
		return m.EnsureNatGatewayFunc(ctx, subnetID, name, tags)
	}
	return NatGateway{ID: "nat-" + name, AllocationID: "eipalloc-" + name}, nil
}

func (m *MockClient) WaitNatGatewayAvailable(ctx context.Context, natID string, timeout time.Duration) error {
	m.record("WaitNatGatewayAvailable")
	if m.WaitNatGatewayAvailableFunc != nil {
		return m.WaitNatGatewayAvailableFunc(ctx, natID, timeout)
	}
	return nil
}

func (m *MockClient) EnsureRouteTable(ctx context.Context, vpcID, name string, tags map[string]string) (string, error) {
	m.record("EnsureRouteTable")
	if m.EnsureRouteTableFunc != nil {
		return m.EnsureRouteTableFunc(ctx, vpcID, name, tags)
	}
	return "rtb-" + name, nil
}

func (m *MockClient) AssociateRouteTable(ctx context.Context, routeTableID, subnetID string) error {
	m.record("AssociateRouteTable")
	if m.AssociateRouteTableFunc != nil {
		return m.AssociateRouteTableFunc(ctx, routeTableID, subnetID)
	}
	return nil
}

func (m *MockClient) EnsureRoute(ctx context.Context, routeTableID, destCIDR string, target RouteTarget) error {
	m.record("EnsureRoute")
	if m.EnsureRouteFunc != nil {
		return m.EnsureRouteFunc(ctx, routeTableID, destCIDR, target)
	}
	return nil
}

func (m *MockClient) EnsureSecurityGroup(ctx context.Context, vpcID, name, description string, tags map[string]string) (string, error) {
	m.record("EnsureSecurityGroup")
	if m.EnsureSecurityGroupFunc != nil {
		return m.EnsureSecurityGroupFunc(ctx, vpcID, name, description, tags)
	}
	return "sg-" + name, nil
}

func (m *MockClient) AuthorizeIngress(ctx context.Context, groupID string, rules []IngressRule) error {
	m.record("AuthorizeIngress")
	if m.AuthorizeIngressFunc != nil {
		return m.AuthorizeIngressFunc(ctx, groupID, rules)
	}
	return nil
}

func (m *MockClient) CreatePeering(ctx context.Context, name, vpcID, peerVPCID, peerAccountID string, tags map[string]string) (string, error) {
	m.record("CreatePeering")
	if m.CreatePeeringFunc != nil {
		return m.CreatePeeringFunc(ctx, name, vpcID, peerVPCID, peerAccountID, tags)
	}
	return "pcx-" + name, nil
}

func (m *MockClient) AcceptPeering(ctx context.Context, peeringID string) error {
	m.record("AcceptPeering")
	if m.AcceptPeeringFunc != nil {
		return m.AcceptPeeringFunc(ctx, peeringID)
	}
	return nil
}

func (m *MockClient) WaitPeeringActive(ctx context.Context, peeringID string, timeout time.Duration) error {
	m.record("WaitPeeringActive")
	if m.WaitPeeringActiveFunc != nil {
		return m.WaitPeeringActiveFunc(ctx, peeringID, timeout)
	}
	return nil
}

func (m *MockClient) AvailabilityZones(ctx context.Context, count int) ([]string, error) {
	m.record("AvailabilityZones")
	if m.AvailabilityZonesFunc != nil {
		return m.AvailabilityZonesFunc(ctx, count)
	}
	zones := make([]string, count)
	for i := range zones {
		zones[i] = fmt.Sprintf("us-east-1%c", 'a'+i)
	}
	return zones, nil
}

func (m *MockClient) DeletePeering(ctx context.Context, peeringID string) error {
	m.record("DeletePeering")
	if m.DeletePeeringFunc != nil {
		return m.DeletePeeringFunc(ctx, peeringID)
	}
	return nil
}

func (m *MockClient) DeleteSecurityGroup(ctx context.Context, groupID string) error {
	m.record("DeleteSecurityGroup")
	if m.DeleteSecurityGroupFunc != nil {
		return m.DeleteSecurityGroupFunc(ctx, groupID)
	}
	return nil
}

func (m *MockClient) DeleteRouteTable(ctx context.Context, routeTableID string) error {
	m.record("DeleteRouteTable")
	if m.DeleteRouteTableFunc != nil {
		return m.DeleteRouteTableFunc(ctx, routeTableID)
	}
	return nil
}

func (m *MockClient) DeleteSubnet(ctx context.Context, subnetID string) error {
	m.record("DeleteSubnet")
	if m.DeleteSubnetFunc != nil {
		return m.DeleteSubnetFunc(ctx, subnetID)
	}
	return nil
}

func (m *MockClient) DeleteInternetGateway(ctx context.Context, vpcID, igwID string) error {
	m.record("DeleteInternetGateway")
	if m.DeleteInternetGatewayFunc != nil {
		return m.DeleteInternetGatewayFunc(ctx, vpcID, igwID)
	}
	return nil
}

func (m *MockClient) DeleteNatGateway(ctx context.Context, natID string, timeout time.Duration) error {
	m.record("DeleteNatGateway")
	if m.DeleteNatGatewayFunc != nil {
		return m.DeleteNatGatewayFunc(ctx, natID, timeout)
	}
	return nil
}

func (m *MockClient) ReleaseAddress(ctx context.Context, allocationID string) error {
	m.record("ReleaseAddress")
	if m.ReleaseAddressFunc != nil {
		return m.ReleaseAddressFunc(ctx, allocationID)
	}
	return nil
}

func (m *MockClient) DeleteVPC(ctx context.Context, vpcID string) error {
	m.record("DeleteVPC")
	if m.DeleteVPCFunc != nil {
		return m.DeleteVPCFunc(ctx, vpcID)
	}
	return nil
}

func (m *MockClient) EnsureECSCluster(ctx context.Context, name string, tags map[string]string) (string, error) {
	m.record("EnsureECSCluster")
	if m.EnsureECSClusterFunc != nil {
		return m.EnsureECSClusterFunc(ctx, name, tags)
	}
	return "arn:aws:ecs:us-east-1:000000000000:cluster/" + name, nil
}

func (m *MockClient) RegisterTaskDefinition(ctx context.Context, spec TaskDefinitionSpec) (string, error) {
	m.record("RegisterTaskDefinition")
	if m.RegisterTaskDefinitionFunc != nil {
		return m.RegisterTaskDefinitionFunc(ctx, spec)
	}
	return "arn:aws:ecs:us-east-1:000000000000:task-definition/" + spec.Family + ":1", nil
}

func (m *MockClient) EnsureECSService(ctx context.Context, opts ServiceOpts) (string, error) {
	m.record("EnsureECSService")
	if m.EnsureECSServiceFunc != nil {
		return m.EnsureECSServiceFunc(ctx, opts)
	}
	return "arn:aws:ecs:us-east-1:000000000000:service/" + opts.Cluster + "/" + opts.Name, nil
}

func (m *MockClient) WaitServicesStable(ctx context.Context, cluster string, services []string, timeout time.Duration) error {
	m.record("WaitServicesStable")
	if m.WaitServicesStableFunc != nil {
		return m.WaitServicesStableFunc(ctx, cluster, services, timeout)
	}
	return nil
}

func (m *MockClient) ScaleService(ctx context.Context, cluster, service string, count int32) error {
	m.record("ScaleService")
	if m.ScaleServiceFunc != nil {
		return m.ScaleServiceFunc(ctx, cluster, service, count)
	}
	return nil
}

func (m *MockClient) DeleteECSService(ctx context.Context, cluster, service string) error {
	m.record("DeleteECSService")
	if m.DeleteECSServiceFunc != nil {
		return m.DeleteECSServiceFunc(ctx, cluster, service)
	}
	return nil
}

func (m *MockClient) DeregisterTaskDefinitions(ctx context.Context, family string) error {
	m.record("DeregisterTaskDefinitions")
	if m.DeregisterTaskDefinitionsFunc != nil {
		return m.DeregisterTaskDefinitionsFunc(ctx, family)
	}
	return nil
}

func (m *MockClient) DeleteECSCluster(ctx context.Context, name string) error {
	m.record("DeleteECSCluster")
	if m.DeleteECSClusterFunc != nil {
		return m.DeleteECSClusterFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) EnsureEKSCluster(ctx context.Context, opts EKSClusterOpts) (*ekstypes.Cluster, error) {
	m.record("EnsureEKSCluster")
	if m.EnsureEKSClusterFunc != nil {
		return m.EnsureEKSClusterFunc(ctx, opts)
	}
	return mockEKSCluster(opts.Name, ekstypes.ClusterStatusCreating), nil
}

func (m *MockClient) WaitEKSClusterActive(ctx context.Context, name string, timeout time.Duration) (*ekstypes.Cluster, error) {
	m.record("WaitEKSClusterActive")
	if m.WaitEKSClusterActiveFunc != nil {
		return m.WaitEKSClusterActiveFunc(ctx, name, timeout)
	}
	return mockEKSCluster(name, ekstypes.ClusterStatusActive), nil
}

func (m *MockClient) EnsureNodegroup(ctx context.Context, opts NodegroupOpts) error {
	m.record("EnsureNodegroup")
	if m.EnsureNodegroupFunc != nil {
		return m.EnsureNodegroupFunc(ctx, opts)
	}
	return nil
}

func (m *MockClient) WaitNodegroupActive(ctx context.Context, cluster, nodegroup string, timeout time.Duration) error {
	m.record("WaitNodegroupActive")
	if m.WaitNodegroupActiveFunc != nil {
		return m.WaitNodegroupActiveFunc(ctx, cluster, nodegroup, timeout)
	}
	return nil
}

func (m *MockClient) EKSToken(ctx context.Context, clusterName string) (string, error) {
	m.record("EKSToken")
	if m.EKSTokenFunc != nil {
		return m.EKSTokenFunc(ctx, clusterName)
	}
	return "k8s-aws-v1.mock-token", nil
}

func (m *MockClient) DeleteNodegroup(ctx context.Context, cluster, nodegroup string, timeout time.Duration) error {
	m.record("DeleteNodegroup")
	if m.DeleteNodegroupFunc != nil {
		return m.DeleteNodegroupFunc(ctx, cluster, nodegroup, timeout)
	}
	return nil
}

func (m *MockClient) DeleteEKSCluster(ctx context.Context, name string, timeout time.Duration) error {
	m.record("DeleteEKSCluster")
	if m.DeleteEKSClusterFunc != nil {
		return m.DeleteEKSClusterFunc(ctx, name, timeout)
	}
	return nil
}

func (m *MockClient) EnsureRole(ctx context.Context, name, assumeRolePolicy string, tags map[string]string) (string, error) {
	m.record("EnsureRole")
	if m.EnsureRoleFunc != nil {
		return m.EnsureRoleFunc(ctx, name, assumeRolePolicy, tags)
	}
	return "arn:aws:iam::000000000000:role/" + name, nil
}

func (m *MockClient) AttachRolePolicy(ctx context.Context, roleName, policyARN string) error {
	m.record("AttachRolePolicy")
	if m.AttachRolePolicyFunc != nil {
		return m.AttachRolePolicyFunc(ctx, roleName, policyARN)
	}
	return nil
}

func (m *MockClient) DeleteRole(ctx context.Context, name string) error {
	m.record("DeleteRole")
	if m.DeleteRoleFunc != nil {
		return m.DeleteRoleFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) DeleteTaggedLoadBalancers(ctx context.Context, env string) error {
	m.record("DeleteTaggedLoadBalancers")
	if m.DeleteTaggedLoadBalancersFunc != nil {
		return m.DeleteTaggedLoadBalancersFunc(ctx, env)
	}
	return nil
}

func (m *MockClient) EnsureLogGroup(ctx context.Context, name string, tags map[string]string) error {
	m.record("EnsureLogGroup")
	if m.EnsureLogGroupFunc != nil {
		return m.EnsureLogGroupFunc(ctx, name, tags)
	}
	return nil
}

func (m *MockClient) DeleteLogGroup(ctx context.Context, name string) error {
	m.record("DeleteLogGroup")
	if m.DeleteLogGroupFunc != nil {
		return m.DeleteLogGroupFunc(ctx, name)
	}
	return nil
}

func (m *MockClient) CallerIdentity(ctx context.Context) (string, string, error) {
	m.record("CallerIdentity")
	if m.CallerIdentityFunc != nil {
		return m.CallerIdentityFunc(ctx)
	}
	return "000000000000", "arn:aws:iam::000000000000:user/mock", nil
}

func mockEKSCluster(name string, status ekstypes.ClusterStatus) *ekstypes.Cluster {
	endpoint := "https://" + name + ".eks.amazonaws.com"
	ca := "dGVzdC1jYQ=="
	return &ekstypes.Cluster{
		Name:     &name,
		Status:   status,
		Endpoint: &endpoint,
		CertificateAuthority: &ekstypes.Certificate{
			Data: &ca,
		},
	}
}

// Interface guard.
var _ CloudManager = (*MockClient)(nil)
