// Package destroy handles environment teardown and resource cleanup.
package destroy

import (
	"context"

	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/provisioning/eks"
	"github.com/meshlab-io/meshlab/internal/provisioning/mesh"
	"github.com/meshlab-io/meshlab/internal/util/naming"
)

// connect is stubbed in tests.
var connect = eks.Connect

// meshCleaner is the kubernetes surface mesh teardown needs.
// Implemented by internal/platform/kube.Client.
type meshCleaner interface {
	Delete(ctx context.Context, manifest string) error
	DeleteSecret(ctx context.Context, namespace, name string) error
	DeleteNamespace(ctx context.Context, name string) error
}

// kubeFor is stubbed in tests; ctx.Kube is a concrete client.
var kubeFor = func(ctx *provisioning.Context) meshCleaner {
	if ctx.Kube == nil {
		return nil
	}
	return ctx.Kube
}

// Provisioner tears an environment down in reverse dependency order. Each
// step only runs when state records the resource; missing resources are
// skipped, so a partially-built or partially-destroyed environment is safe
// to destroy again. Failures accumulate instead of aborting.
type Provisioner struct{}

// NewProvisioner creates a destroy provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the Phase interface.
func (p *Provisioner) Name() string {
	return "destroy"
}

// Provision implements the Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	ctx.Observer.Printf("[Destroy] Starting teardown of environment %s", ctx.Config.EnvironmentName)

	cleanup := &CleanupError{}
	var deleted []string
	done := func(resource string) {
		deleted = append(deleted, resource)
	}

	p.destroyMesh(ctx, cleanup, done)
	p.destroyECS(ctx, cleanup, done)
	p.destroyEKS(ctx, cleanup, done)
	p.destroyIAM(ctx, cleanup, done)
	p.destroyLoadBalancers(ctx, cleanup, done)
	p.destroyPeering(ctx, cleanup, done)
	p.destroyNetwork(ctx, "external", cleanup, done)
	p.destroyNetwork(ctx, "local", cleanup, done)

	if err := ctx.State.Save(ctx.Config.StatePath); err != nil {
		cleanup.Add("state file", err)
	}

	ctx.Observer.Printf("[Destroy] %d resource(s) deleted", len(deleted))
	if cleanup.HasFailures() {
		for _, name := range cleanup.Failures() {
			ctx.Observer.Printf("[Destroy] FAILED: %s", name)
		}
	}
	return cleanup.ErrOrNil()
}

// destroyMesh removes the in-cluster mesh pieces in reverse install order:
// policies, waypoints, ECS workload registrations, helm releases, then the
// ambient namespaces. Skipped entirely when the EKS cluster is already gone;
// everything mesh lives inside it.
func (p *Provisioner) destroyMesh(ctx *provisioning.Context, cleanup *CleanupError, done func(string)) {
	if ctx.State.EKSClusterName == "" {
		return
	}
	if len(ctx.State.RegisteredServices) == 0 && len(ctx.State.HelmReleases) == 0 {
		return
	}

	if ctx.Istio == nil || ctx.Helm == nil {
		kcCleanup, err := connect(ctx)
		if err != nil {
			// Unreachable control plane: the EKS deletion below removes the
			// in-cluster resources anyway.
			ctx.Observer.Printf("[Destroy] skipping mesh teardown, cluster unreachable: %v", err)
			return
		}
		defer kcCleanup()
	}

	kube := kubeFor(ctx)
	if kube != nil {
		for _, spec := range ctx.Config.Mesh.AuthorizationPolicies {
			manifest, err := mesh.RenderAuthorizationPolicy(spec)
			if err == nil {
				err = kube.Delete(ctx, manifest)
			}
			if err != nil {
				cleanup.Add("authorization policy "+spec.Name, err)
				continue
			}
			done("authorization policy " + spec.Name)
		}
	}

	for _, wp := range ctx.Config.Mesh.Waypoints {
		if err := ctx.Istio.DeleteWaypoint(ctx, wp.Namespace, wp.Name); err != nil {
			cleanup.Add("waypoint "+wp.Name, err)
			continue
		}
		done("waypoint " + wp.Name)
	}

	namespaces := ctx.Config.Mesh.AmbientNamespaces
	namespace := "default"
	if len(namespaces) > 0 {
		namespace = namespaces[0]
	}

	var remaining []string
	for _, svc := range ctx.State.RegisteredServices {
		if err := ctx.Istio.DeregisterECSWorkload(ctx, svc, namespace); err != nil {
			cleanup.Add("mesh workload "+svc, err)
			remaining = append(remaining, svc)
			continue
		}
		done("mesh workload " + svc)
	}
	ctx.State.RegisteredServices = remaining

	// Reverse install order: ztunnel before istiod before base.
	if ctx.Helm != nil {
		releases := ctx.State.HelmReleases
		var failedReleases []string
		for i := len(releases) - 1; i >= 0; i-- {
			if err := ctx.Helm.Uninstall(mesh.SystemNamespace, releases[i]); err != nil {
				cleanup.Add("helm release "+releases[i], err)
				failedReleases = append(failedReleases, releases[i])
				continue
			}
			done("helm release " + releases[i])
		}
		ctx.State.HelmReleases = failedReleases
	}

	if kube != nil {
		if ctx.Config.Mesh.CACertDir != "" {
			if err := kube.DeleteSecret(ctx, mesh.SystemNamespace, mesh.CACertsSecret); err != nil {
				cleanup.Add("secret "+mesh.CACertsSecret, err)
			}
		}
		for _, ns := range namespaces {
			if err := kube.DeleteNamespace(ctx, ns); err != nil {
				cleanup.Add("namespace "+ns, err)
				continue
			}
			provisioning.LogResourceDeleted(ctx.Observer, p.Name(), "namespace", ns)
			done("namespace " + ns)
		}
	}
}

func (p *Provisioner) destroyECS(ctx *provisioning.Context, cleanup *CleanupError, done func(string)) {
	cloud := ctx.CloudFor("external")
	env := ctx.Config.EnvironmentName
	cluster := naming.ECSCluster(env)

	for name := range ctx.State.ServiceARNs {
		provisioning.LogResourceDeleting(ctx.Observer, "destroy", "ecs service", name)
		if err := cloud.ScaleService(ctx, cluster, name, 0); err != nil {
			cleanup.Add("ecs service "+name, err)
			continue
		}
		if err := cloud.DeleteECSService(ctx, cluster, name); err != nil {
			cleanup.Add("ecs service "+name, err)
			continue
		}
		delete(ctx.State.ServiceARNs, name)
		provisioning.LogResourceDeleted(ctx.Observer, "destroy", "ecs service", name)
		done("ecs service " + name)
	}

	for name := range ctx.State.TaskDefinitionARNs {
		if err := cloud.DeregisterTaskDefinitions(ctx, naming.TaskFamily(env, name)); err != nil {
			cleanup.Add("task definitions "+name, err)
			continue
		}
		delete(ctx.State.TaskDefinitionARNs, name)
		done("task definitions " + name)
	}

	var remainingGroups []string
	for _, group := range ctx.State.LogGroups {
		if err := cloud.DeleteLogGroup(ctx, group); err != nil {
			cleanup.Add("log group "+group, err)
			remainingGroups = append(remainingGroups, group)
			continue
		}
		done("log group " + group)
	}
	ctx.State.LogGroups = remainingGroups

	if ctx.State.ECSClusterARN != "" {
		if err := cloud.DeleteECSCluster(ctx, cluster); err != nil {
			cleanup.Add("ecs cluster "+cluster, err)
		} else {
			ctx.State.ECSClusterARN = ""
			done("ecs cluster " + cluster)
		}
	}
}

func (p *Provisioner) destroyEKS(ctx *provisioning.Context, cleanup *CleanupError, done func(string)) {
	if ctx.State.EKSClusterName == "" {
		return
	}
	name := ctx.State.EKSClusterName
	nodegroup := naming.Nodegroup(ctx.Config.EnvironmentName)

	provisioning.LogResourceDeleting(ctx.Observer, "destroy", "nodegroup", nodegroup)
	if err := ctx.Cloud.DeleteNodegroup(ctx, name, nodegroup, ctx.Timeouts.Delete); err != nil {
		cleanup.Add("nodegroup "+nodegroup, err)
		return // the cluster delete would fail while nodegroups remain
	}
	provisioning.LogResourceDeleted(ctx.Observer, "destroy", "nodegroup", nodegroup)
	done("nodegroup " + nodegroup)

	provisioning.LogResourceDeleting(ctx.Observer, "destroy", "eks cluster", name)
	if err := ctx.Cloud.DeleteEKSCluster(ctx, name, ctx.Timeouts.Delete); err != nil {
		cleanup.Add("eks cluster "+name, err)
		return
	}
	ctx.State.EKSClusterName = ""
	ctx.State.EKSEndpoint = ""
	ctx.State.EKSCertificate = ""
	provisioning.LogResourceDeleted(ctx.Observer, "destroy", "eks cluster", name)
	done("eks cluster " + name)
}

func (p *Provisioner) destroyIAM(ctx *provisioning.Context, cleanup *CleanupError, done func(string)) {
	env := ctx.Config.EnvironmentName
	ecsCloud := ctx.CloudFor("external")

	type roleTarget struct {
		arn   *string
		name  string
		local bool
	}
	targets := []roleTarget{
		{&ctx.State.TaskExecutionRoleARN, naming.TaskExecutionRole(env), false},
		{&ctx.State.TaskRoleARN, naming.TaskRole(env), false},
		{&ctx.State.EKSClusterRoleARN, naming.EKSClusterRole(env), true},
		{&ctx.State.NodeRoleARN, naming.NodeRole(env), true},
	}

	for _, target := range targets {
		if *target.arn == "" {
			continue
		}
		cloud := ctx.Cloud
		if !target.local {
			cloud = ecsCloud
		}
		if err := cloud.DeleteRole(ctx, target.name); err != nil {
			cleanup.Add("iam role "+target.name, err)
			continue
		}
		*target.arn = ""
		done("iam role " + target.name)
	}
}

// destroyLoadBalancers removes NLBs the east-west gateway Service created
// behind our back; they block VPC deletion.
func (p *Provisioner) destroyLoadBalancers(ctx *provisioning.Context, cleanup *CleanupError, done func(string)) {
	env := ctx.Config.EnvironmentName
	if err := ctx.Cloud.DeleteTaggedLoadBalancers(ctx, env); err != nil {
		cleanup.Add("load balancers (local)", err)
	} else {
		done("load balancers (local)")
	}
	if ctx.ExternalCloud != nil {
		if err := ctx.ExternalCloud.DeleteTaggedLoadBalancers(ctx, env); err != nil {
			cleanup.Add("load balancers (external)", err)
		} else {
			done("load balancers (external)")
		}
	}
}

func (p *Provisioner) destroyPeering(ctx *provisioning.Context, cleanup *CleanupError, done func(string)) {
	if ctx.State.PeeringConnectionID == "" {
		return
	}
	id := ctx.State.PeeringConnectionID
	if err := ctx.Cloud.DeletePeering(ctx, id); err != nil {
		cleanup.Add("peering connection "+id, err)
		return
	}
	ctx.State.PeeringConnectionID = ""
	done("peering connection " + id)
}

func (p *Provisioner) destroyNetwork(ctx *provisioning.Context, side string, cleanup *CleanupError, done func(string)) {
	cloud := ctx.CloudFor(side)
	st := ctx.State.Side(side)
	label := func(kind, id string) string { return kind + " " + id + " (" + side + ")" }

	if st.NatGatewayID != "" {
		provisioning.LogResourceDeleting(ctx.Observer, "destroy", "nat gateway", st.NatGatewayID)
		if err := cloud.DeleteNatGateway(ctx, st.NatGatewayID, ctx.Timeouts.Delete); err != nil {
			cleanup.Add(label("nat gateway", st.NatGatewayID), err)
		} else {
			provisioning.LogResourceDeleted(ctx.Observer, "destroy", "nat gateway", st.NatGatewayID)
			done(label("nat gateway", st.NatGatewayID))
			st.NatGatewayID = ""
		}
	}
	if st.NatEIPAllocID != "" && st.NatGatewayID == "" {
		if err := cloud.ReleaseAddress(ctx, st.NatEIPAllocID); err != nil {
			cleanup.Add(label("elastic IP", st.NatEIPAllocID), err)
		} else {
			done(label("elastic IP", st.NatEIPAllocID))
			st.NatEIPAllocID = ""
		}
	}

	if st.MeshSecurityGroup != "" {
		if err := cloud.DeleteSecurityGroup(ctx, st.MeshSecurityGroup); err != nil {
			cleanup.Add(label("security group", st.MeshSecurityGroup), err)
		} else {
			done(label("security group", st.MeshSecurityGroup))
			st.MeshSecurityGroup = ""
		}
	}

	for _, rt := range []*string{&st.PublicRouteTable, &st.PrivateRouteTable} {
		if *rt == "" {
			continue
		}
		if err := cloud.DeleteRouteTable(ctx, *rt); err != nil {
			cleanup.Add(label("route table", *rt), err)
			continue
		}
		done(label("route table", *rt))
		*rt = ""
	}

	deleteSubnets := func(ids []string) []string {
		var remaining []string
		for _, subnet := range ids {
			if err := cloud.DeleteSubnet(ctx, subnet); err != nil {
				cleanup.Add(label("subnet", subnet), err)
				remaining = append(remaining, subnet)
				continue
			}
			done(label("subnet", subnet))
		}
		return remaining
	}
	st.PublicSubnetIDs = deleteSubnets(st.PublicSubnetIDs)
	st.PrivateSubnetIDs = deleteSubnets(st.PrivateSubnetIDs)

	if st.InternetGatewayID != "" {
		if err := cloud.DeleteInternetGateway(ctx, st.VPCID, st.InternetGatewayID); err != nil {
			cleanup.Add(label("internet gateway", st.InternetGatewayID), err)
		} else {
			done(label("internet gateway", st.InternetGatewayID))
			st.InternetGatewayID = ""
		}
	}

	if st.VPCID != "" {
		provisioning.LogResourceDeleting(ctx.Observer, "destroy", "vpc", st.VPCID)
		if err := cloud.DeleteVPC(ctx, st.VPCID); err != nil {
			cleanup.Add(label("vpc", st.VPCID), err)
		} else {
			provisioning.LogResourceDeleted(ctx.Observer, "destroy", "vpc", st.VPCID)
			done(label("vpc", st.VPCID))
			st.VPCID = ""
		}
	}
}
