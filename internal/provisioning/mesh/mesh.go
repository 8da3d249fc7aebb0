// Package mesh installs the Istio ambient mesh on EKS and enrolls the ECS
// workloads into it.
package mesh

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/meshlab-io/meshlab/internal/addons/helm"
	"github.com/meshlab-io/meshlab/internal/platform/istio"
	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/util/naming"
)

// IstioRepoURL is the upstream Istio chart repository. The vendor
// distribution is chart-compatible; only istioctl itself differs.
const IstioRepoURL = "https://istio-release.storage.googleapis.com/charts"

// SystemNamespace is where the control plane and dataplane components live.
const SystemNamespace = "istio-system"

// CACertsSecret is the secret name istiod reads a plugin CA from.
const CACertsSecret = "cacerts"

// caCertFiles are the files istiod expects inside the cacerts secret.
var caCertFiles = []string{"ca-cert.pem", "ca-key.pem", "root-cert.pem", "cert-chain.pem"}

// loadCACerts reads the plugin CA material from dir, keyed the way the
// istiod chart expects it.
func loadCACerts(dir string) (map[string][]byte, error) {
	data := make(map[string][]byte, len(caCertFiles))
	for _, name := range caCertFiles {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read CA material: %w", err)
		}
		data[name] = b
	}
	return data, nil
}

// NamespacesPhase creates istio-system and the ambient-enrolled application
// namespaces.
type NamespacesPhase struct{}

func NewNamespacesPhase() *NamespacesPhase { return &NamespacesPhase{} }

// Name implements the Phase interface.
func (p *NamespacesPhase) Name() string { return "mesh-namespaces" }

// Provision implements the Phase interface.
func (p *NamespacesPhase) Provision(ctx *provisioning.Context) error {
	if ctx.Kube == nil {
		return fmt.Errorf("kubernetes client not connected")
	}

	if err := ctx.Kube.EnsureNamespace(ctx, SystemNamespace, nil); err != nil {
		return err
	}
	for _, ns := range ctx.Config.Mesh.AmbientNamespaces {
		if err := ctx.Kube.EnsureAmbientNamespace(ctx, ns); err != nil {
			return err
		}
		provisioning.LogResourceCreated(ctx.Observer, p.Name(), "ambient namespace", ns, ns)
	}
	return nil
}

// InstallPhase installs the ambient control plane charts: base, istiod, the
// CNI node agent, and ztunnel.
type InstallPhase struct{}

func NewInstallPhase() *InstallPhase { return &InstallPhase{} }

// Name implements the Phase interface.
func (p *InstallPhase) Name() string { return "mesh-install" }

// Provision implements the Phase interface.
func (p *InstallPhase) Provision(ctx *provisioning.Context) error {
	if ctx.Helm == nil {
		return fmt.Errorf("helm client not connected")
	}

	cfg := ctx.Config.Mesh

	// A plugin CA must be in place before istiod issues any certificates.
	if cfg.CACertDir != "" {
		certs, err := loadCACerts(cfg.CACertDir)
		if err != nil {
			return err
		}
		if err := ctx.Kube.CreateSecret(ctx, SystemNamespace, CACertsSecret, certs); err != nil {
			return err
		}
	}

	for _, spec := range controlPlaneCharts(cfg.Version, istiodValues(ctx)) {
		if err := ctx.Helm.InstallOrUpgrade(ctx, spec); err != nil {
			return err
		}
		ctx.State.AddHelmRelease(spec.ReleaseName)
		provisioning.LogResourceCreated(ctx.Observer, p.Name(), "helm release", spec.ReleaseName, spec.Version)
	}

	// ztunnel runs as a daemonset on every node; the mesh is not usable
	// until it is.
	return ctx.Kube.WaitForDaemonSet(ctx, SystemNamespace, "ztunnel", ctx.Timeouts.HelmInstall)
}

// controlPlaneCharts returns the charts in install order.
func controlPlaneCharts(version string, istiodVals map[string]interface{}) []helm.ChartSpec {
	return []helm.ChartSpec{
		{
			ReleaseName: "istio-base",
			Namespace:   SystemNamespace,
			RepoURL:     IstioRepoURL,
			ChartName:   "base",
			Version:     version,
		},
		{
			ReleaseName: "istiod",
			Namespace:   SystemNamespace,
			RepoURL:     IstioRepoURL,
			ChartName:   "istiod",
			Version:     version,
			Values:      istiodVals,
		},
		{
			ReleaseName: "istio-cni",
			Namespace:   SystemNamespace,
			RepoURL:     IstioRepoURL,
			ChartName:   "cni",
			Version:     version,
			Values: map[string]interface{}{
				"profile": "ambient",
			},
		},
		{
			ReleaseName: "ztunnel",
			Namespace:   SystemNamespace,
			RepoURL:     IstioRepoURL,
			ChartName:   "ztunnel",
			Version:     version,
		},
	}
}

func istiodValues(ctx *provisioning.Context) map[string]interface{} {
	cfg := ctx.Config.Mesh
	return map[string]interface{}{
		"profile": "ambient",
		"global": map[string]interface{}{
			"meshID":  cfg.MeshID,
			"network": cfg.LocalNetwork,
			"multiCluster": map[string]interface{}{
				"clusterName": naming.EKSCluster(ctx.Config.EnvironmentName),
			},
		},
		"meshConfig": map[string]interface{}{
			"trustDomain": cfg.TrustDomain,
		},
	}
}

// clientManifest is the in-mesh curl client the verify checks exec into. It
// runs under its own service account so authorization policies can match the
// principal cluster.local/ns/<namespace>/sa/mesh-client.
const clientManifest = `apiVersion: v1
kind: ServiceAccount
metadata:
  name: mesh-client
  namespace: %s
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: mesh-client
  namespace: %s
  labels:
    app: mesh-client
spec:
  replicas: 1
  selector:
    matchLabels:
      app: mesh-client
  template:
    metadata:
      labels:
        app: mesh-client
    spec:
      serviceAccountName: mesh-client
      containers:
        - name: client
          image: curlimages/curl:8.11.0
          command: ["sleep", "infinity"]
`

// ClientPhase deploys a curl client into the first ambient namespace. The
// verify checks exec their probes inside it, so a passing check exercises
// the ztunnel capture path end to end.
type ClientPhase struct{}

func NewClientPhase() *ClientPhase { return &ClientPhase{} }

// Name implements the Phase interface.
func (p *ClientPhase) Name() string { return "mesh-client" }

// Provision implements the Phase interface.
func (p *ClientPhase) Provision(ctx *provisioning.Context) error {
	if ctx.Kube == nil {
		return fmt.Errorf("kubernetes client not connected")
	}
	namespaces := ctx.Config.Mesh.AmbientNamespaces
	if len(namespaces) == 0 {
		return nil
	}

	if err := ctx.Kube.Apply(ctx, fmt.Sprintf(clientManifest, namespaces[0], namespaces[0])); err != nil {
		return err
	}
	return ctx.Kube.WaitForDeployment(ctx, namespaces[0], "mesh-client", ctx.Timeouts.HelmInstall)
}

// GatewayPhase installs the east-west gateway carrying HBONE traffic between
// the EKS network and the ECS network.
type GatewayPhase struct{}

func NewGatewayPhase() *GatewayPhase { return &GatewayPhase{} }

// Name implements the Phase interface.
func (p *GatewayPhase) Name() string { return "mesh-gateway" }

// Provision implements the Phase interface.
func (p *GatewayPhase) Provision(ctx *provisioning.Context) error {
	if !ctx.Config.EastWestGatewayEnabled() {
		ctx.Observer.Printf("east-west gateway disabled, skipping")
		return nil
	}
	if ctx.Istio == nil {
		return fmt.Errorf("istioctl not connected")
	}

	return ctx.Istio.InstallEastWestGateway(ctx, istio.GatewayOpts{
		Namespace: SystemNamespace,
		Network:   ctx.Config.Mesh.LocalNetwork,
	})
}

// WorkloadsPhase registers every ECS service with the mesh through the
// vendor istioctl, making them reachable over HBONE.
type WorkloadsPhase struct{}

func NewWorkloadsPhase() *WorkloadsPhase { return &WorkloadsPhase{} }

// Name implements the Phase interface.
func (p *WorkloadsPhase) Name() string { return "mesh-workloads" }

// Provision implements the Phase interface.
func (p *WorkloadsPhase) Provision(ctx *provisioning.Context) error {
	if ctx.Istio == nil {
		return fmt.Errorf("istioctl not connected")
	}
	if ctx.State.ECSClusterARN == "" {
		return fmt.Errorf("ecs cluster not provisioned; run apply first")
	}
	namespaces := ctx.Config.Mesh.AmbientNamespaces
	if len(namespaces) == 0 {
		return fmt.Errorf("no ambient namespace configured for workload registration")
	}

	for _, svc := range ctx.Config.ECS.Services {
		err := ctx.Istio.RegisterECSWorkload(ctx, istio.RegisterOpts{
			Name:        svc.Name,
			Namespace:   namespaces[0],
			ClusterARN:  ctx.State.ECSClusterARN,
			ServiceName: svc.Name,
			Network:     ctx.Config.Mesh.ExternalNetwork,
		})
		if err != nil {
			return err
		}
		ctx.State.AddRegisteredService(svc.Name)
		provisioning.LogResourceCreated(ctx.Observer, p.Name(), "mesh workload", svc.Name, ctx.State.ECSClusterARN)
	}
	return nil
}

// WaypointsPhase deploys the configured per-namespace waypoint proxies.
type WaypointsPhase struct{}

func NewWaypointsPhase() *WaypointsPhase { return &WaypointsPhase{} }

// Name implements the Phase interface.
func (p *WaypointsPhase) Name() string { return "mesh-waypoints" }

// Provision implements the Phase interface.
func (p *WaypointsPhase) Provision(ctx *provisioning.Context) error {
	if len(ctx.Config.Mesh.Waypoints) == 0 {
		return nil
	}
	if ctx.Istio == nil {
		return fmt.Errorf("istioctl not connected")
	}

	for _, wp := range ctx.Config.Mesh.Waypoints {
		if err := ctx.Istio.ApplyWaypoint(ctx, wp.Namespace, wp.Name); err != nil {
			return err
		}
		provisioning.LogResourceCreated(ctx.Observer, p.Name(), "waypoint", wp.Name, wp.Namespace)
	}
	return nil
}

// PoliciesPhase applies the configured AuthorizationPolicies.
type PoliciesPhase struct{}

func NewPoliciesPhase() *PoliciesPhase { return &PoliciesPhase{} }

// Name implements the Phase interface.
func (p *PoliciesPhase) Name() string { return "mesh-policies" }

// Provision implements the Phase interface.
func (p *PoliciesPhase) Provision(ctx *provisioning.Context) error {
	if len(ctx.Config.Mesh.AuthorizationPolicies) == 0 {
		return nil
	}
	if ctx.Kube == nil {
		return fmt.Errorf("kubernetes client not connected")
	}

	for _, spec := range ctx.Config.Mesh.AuthorizationPolicies {
		manifest, err := RenderAuthorizationPolicy(spec)
		if err != nil {
			return err
		}
		if err := ctx.Kube.Apply(ctx, manifest); err != nil {
			return err
		}
		provisioning.LogResourceCreated(ctx.Observer, p.Name(), "authorization policy", spec.Name, spec.Namespace)
	}
	return nil
}

// Phases returns the deploy-time mesh phases in order.
func Phases() []provisioning.Phase {
	return []provisioning.Phase{
		NewNamespacesPhase(),
		NewInstallPhase(),
		NewClientPhase(),
		NewGatewayPhase(),
		NewWorkloadsPhase(),
		NewWaypointsPhase(),
		NewPoliciesPhase(),
	}
}
