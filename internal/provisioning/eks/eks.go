// Package eks provisions the EKS control plane and nodegroup, and connects
// the in-process Kubernetes, Helm, and istioctl clients to the cluster.
package eks

import (
	"fmt"

	"github.com/meshlab-io/meshlab/internal/addons/helm"
	"github.com/meshlab-io/meshlab/internal/platform/awscloud"
	"github.com/meshlab-io/meshlab/internal/platform/istio"
	"github.com/meshlab-io/meshlab/internal/platform/kube"
	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/util/naming"
	"github.com/meshlab-io/meshlab/internal/util/tags"
)

// Factory vars so tests can stub the cluster connection.
var (
	newKubeClient = kube.NewClientForEKS
	newIstioctl   = istio.New
	writeTempKC   = kube.WriteTempKubeconfig
)

// Phase ensures the EKS cluster and managed nodegroup are ACTIVE. The
// control plane takes on the order of fifteen minutes to come up; waits run
// under the EKSCluster and EKSNodegroup timeouts.
type Phase struct{}

// NewPhase creates the EKS phase.
func NewPhase() *Phase {
	return &Phase{}
}

// Name implements the Phase interface.
func (p *Phase) Name() string {
	return "eks"
}

// Provision implements the Phase interface.
func (p *Phase) Provision(ctx *provisioning.Context) error {
	env := ctx.Config.EnvironmentName
	st := ctx.State.Side("local")

	if st.VPCID == "" || len(st.PrivateSubnetIDs) == 0 {
		return fmt.Errorf("local network not provisioned; run the network phase first")
	}
	if ctx.State.EKSClusterRoleARN == "" || ctx.State.NodeRoleARN == "" {
		return fmt.Errorf("EKS roles not provisioned; run the iam phase first")
	}

	name := naming.EKSCluster(env)
	clusterTags := tags.NewBuilder(env).WithSide(tags.SideLocal).Build()

	// The control plane spans public and private subnets so the API stays
	// reachable while nodes run private.
	subnets := append([]string{}, st.PublicSubnetIDs...)
	subnets = append(subnets, st.PrivateSubnetIDs...)

	if _, err := ctx.Cloud.EnsureEKSCluster(ctx, awscloud.EKSClusterOpts{
		Name:      name,
		Version:   ctx.Config.EKS.Version,
		RoleARN:   ctx.State.EKSClusterRoleARN,
		SubnetIDs: subnets,
		Tags:      clusterTags,
	}); err != nil {
		return err
	}

	cluster, err := ctx.Cloud.WaitEKSClusterActive(ctx, name, ctx.Timeouts.EKSCluster)
	if err != nil {
		return err
	}
	ctx.State.EKSClusterName = name
	ctx.State.EKSEndpoint = *cluster.Endpoint
	ctx.State.EKSCertificate = *cluster.CertificateAuthority.Data
	provisioning.LogResourceCreated(ctx.Observer, p.Name(), "eks cluster", name, *cluster.Endpoint)

	nodegroup := naming.Nodegroup(env)
	if err := ctx.Cloud.EnsureNodegroup(ctx, awscloud.NodegroupOpts{
		ClusterName:  name,
		Name:         nodegroup,
		NodeRoleARN:  ctx.State.NodeRoleARN,
		SubnetIDs:    st.PrivateSubnetIDs,
		InstanceType: ctx.Config.EKS.InstanceType,
		DesiredSize:  ctx.Config.EKS.NodeCount,
		Tags:         clusterTags,
	}); err != nil {
		return err
	}
	if err := ctx.Cloud.WaitNodegroupActive(ctx, name, nodegroup, ctx.Timeouts.EKSNodegroup); err != nil {
		return err
	}
	provisioning.LogResourceCreated(ctx.Observer, p.Name(), "nodegroup", nodegroup, name)
	return nil
}

// Connect wires the context's Kube, Helm, and Istio clients to the recorded
// EKS cluster using a fresh pre-signed token. Returns a cleanup func that
// removes the temp kubeconfig written for istioctl.
func Connect(ctx *provisioning.Context) (func(), error) {
	if ctx.State.EKSEndpoint == "" || ctx.State.EKSCertificate == "" {
		return nil, fmt.Errorf("EKS cluster not recorded in state; run apply first")
	}

	token, err := ctx.Cloud.EKSToken(ctx, ctx.State.EKSClusterName)
	if err != nil {
		return nil, err
	}

	kubeClient, err := newKubeClient(ctx.State.EKSEndpoint, ctx.State.EKSCertificate, token)
	if err != nil {
		return nil, err
	}
	ctx.Kube = kubeClient
	ctx.Helm = helm.NewClient(kubeClient.RESTConfig())

	kcPath, cleanup, err := writeTempKC(ctx.State.EKSClusterName, ctx.State.EKSEndpoint, ctx.State.EKSCertificate, token)
	if err != nil {
		return nil, err
	}

	istioctl, err := newIstioctl(kcPath)
	if err != nil {
		cleanup()
		return nil, err
	}
	ctx.Istio = istioctl

	return cleanup, nil
}
