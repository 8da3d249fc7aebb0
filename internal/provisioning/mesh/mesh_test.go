package mesh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshlab-io/meshlab/internal/config"
	"github.com/meshlab-io/meshlab/internal/platform/awscloud"
	"github.com/meshlab-io/meshlab/internal/platform/istio"
	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/state"
)

// fakeIstio is a function-field fake for the IstioRunner interface.
type fakeIstio struct {
	InstallEastWestGatewayFunc func(ctx context.Context, opts istio.GatewayOpts) error
	RegisterECSWorkloadFunc    func(ctx context.Context, opts istio.RegisterOpts) error
	DeregisterECSWorkloadFunc  func(ctx context.Context, name, namespace string) error
	ApplyWaypointFunc          func(ctx context.Context, namespace, name string) error
	DeleteWaypointFunc         func(ctx context.Context, namespace, name string) error
	ZtunnelWorkloadCountFunc   func(ctx context.Context) (int, error)
}

func (f *fakeIstio) Version(context.Context) (string, error) { return "1.24.2-solo", nil }

func (f *fakeIstio) InstallEastWestGateway(ctx context.Context, opts istio.GatewayOpts) error {
	if f.InstallEastWestGatewayFunc != nil {
		return f.InstallEastWestGatewayFunc(ctx, opts)
	}
	return nil
}

func (f *fakeIstio) RegisterECSWorkload(ctx context.Context, opts istio.RegisterOpts) error {
	if f.RegisterECSWorkloadFunc != nil {
		return f.RegisterECSWorkloadFunc(ctx, opts)
	}
	return nil
}

func (f *fakeIstio) DeregisterECSWorkload(ctx context.Context, name, namespace string) error {
	if f.DeregisterECSWorkloadFunc != nil {
		return f.DeregisterECSWorkloadFunc(ctx, name, namespace)
	}
	return nil
}

func (f *fakeIstio) ApplyWaypoint(ctx context.Context, namespace, name string) error {
	if f.ApplyWaypointFunc != nil {
		return f.ApplyWaypointFunc(ctx, namespace, name)
	}
	return nil
}

func (f *fakeIstio) DeleteWaypoint(ctx context.Context, namespace, name string) error {
	if f.DeleteWaypointFunc != nil {
		return f.DeleteWaypointFunc(ctx, namespace, name)
	}
	return nil
}

func (f *fakeIstio) ZtunnelWorkloadCount(ctx context.Context) (int, error) {
	if f.ZtunnelWorkloadCountFunc != nil {
		return f.ZtunnelWorkloadCountFunc(ctx)
	}
	return 0, nil
}

func testContext(t *testing.T) *provisioning.Context {
	t.Helper()
	cfg := &config.Config{
		EnvironmentName: "demo",
		Scenario:        config.ScenarioSingleAccount,
		Region:          "us-east-1",
		StatePath:       filepath.Join(t.TempDir(), "state.yaml"),
		ECS: config.ECSConfig{
			Services: []config.ServiceSpec{
				{Name: "web", Image: "nginx", Port: 8080},
				{Name: "api", Image: "httpbin", Port: 80},
			},
		},
		Mesh: config.MeshConfig{
			Version:           "1.24.2",
			MeshID:            "demo",
			TrustDomain:       "cluster.local",
			LocalNetwork:      "eks-network",
			ExternalNetwork:   "ecs-network",
			AmbientNamespaces: []string{"demo"},
		},
	}
	return provisioning.NewContext(context.Background(), cfg, state.New("demo", "us-east-1"), awscloud.NewMockClient(), nil)
}

func TestControlPlaneChartsOrder(t *testing.T) {
	t.Parallel()

	charts := controlPlaneCharts("1.24.2", nil)
	require.Len(t, charts, 4)

	var names []string
	for _, c := range charts {
		names = append(names, c.ChartName)
		assert.Equal(t, "1.24.2", c.Version)
		assert.Equal(t, SystemNamespace, c.Namespace)
	}
	// base must come first, ztunnel last.
	assert.Equal(t, []string{"base", "istiod", "cni", "ztunnel"}, names)
}

func TestIstiodValues(t *testing.T) {
	ctx := testContext(t)

	vals := istiodValues(ctx)
	assert.Equal(t, "ambient", vals["profile"])

	global := vals["global"].(map[string]interface{})
	assert.Equal(t, "demo", global["meshID"])
	assert.Equal(t, "eks-network", global["network"])

	meshConfig := vals["meshConfig"].(map[string]interface{})
	assert.Equal(t, "cluster.local", meshConfig["trustDomain"])
}

func TestGatewayPhaseSkipsWhenDisabled(t *testing.T) {
	ctx := testContext(t)

	fake := &fakeIstio{
		InstallEastWestGatewayFunc: func(context.Context, istio.GatewayOpts) error {
			t.Fatal("gateway should not be installed")
			return nil
		},
	}
	ctx.Istio = fake

	// Single-account defaults the gateway off.
	require.NoError(t, NewGatewayPhase().Provision(ctx))
}

func TestGatewayPhaseInstallsForMultiAccount(t *testing.T) {
	ctx := testContext(t)
	ctx.Config.Scenario = config.ScenarioMultiAccount

	var gotOpts istio.GatewayOpts
	ctx.Istio = &fakeIstio{
		InstallEastWestGatewayFunc: func(_ context.Context, opts istio.GatewayOpts) error {
			gotOpts = opts
			return nil
		},
	}

	require.NoError(t, NewGatewayPhase().Provision(ctx))
	assert.Equal(t, SystemNamespace, gotOpts.Namespace)
	assert.Equal(t, "eks-network", gotOpts.Network)
}

func TestWorkloadsPhaseRegistersAllServices(t *testing.T) {
	ctx := testContext(t)
	ctx.State.ECSClusterARN = "arn:aws:ecs:us-east-1:000000000000:cluster/demo-ecs"

	var registered []istio.RegisterOpts
	ctx.Istio = &fakeIstio{
		RegisterECSWorkloadFunc: func(_ context.Context, opts istio.RegisterOpts) error {
			registered = append(registered, opts)
			return nil
		},
	}

	require.NoError(t, NewWorkloadsPhase().Provision(ctx))

	require.Len(t, registered, 2)
	assert.Equal(t, "web", registered[0].Name)
	assert.Equal(t, "demo", registered[0].Namespace)
	assert.Equal(t, "ecs-network", registered[0].Network)
	assert.Contains(t, registered[0].ClusterARN, "demo-ecs")
	assert.ElementsMatch(t, []string{"web", "api"}, ctx.State.RegisteredServices)
}

func TestWorkloadsPhaseRequiresCluster(t *testing.T) {
	ctx := testContext(t)
	ctx.Istio = &fakeIstio{}

	err := NewWorkloadsPhase().Provision(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run apply first")
}

func TestWorkloadsPhaseStopsOnError(t *testing.T) {
	ctx := testContext(t)
	ctx.State.ECSClusterARN = "arn:aws:ecs:us-east-1:000000000000:cluster/demo-ecs"

	calls := 0
	ctx.Istio = &fakeIstio{
		RegisterECSWorkloadFunc: func(context.Context, istio.RegisterOpts) error {
			calls++
			return errors.New("control plane unreachable")
		},
	}

	err := NewWorkloadsPhase().Provision(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, ctx.State.RegisteredServices)
}

func TestWaypointsPhase(t *testing.T) {
	ctx := testContext(t)
	ctx.Config.Mesh.Waypoints = []config.WaypointSpec{
		{Namespace: "demo", Name: "demo-waypoint"},
	}

	var applied []string
	ctx.Istio = &fakeIstio{
		ApplyWaypointFunc: func(_ context.Context, namespace, name string) error {
			applied = append(applied, namespace+"/"+name)
			return nil
		},
	}

	require.NoError(t, NewWaypointsPhase().Provision(ctx))
	assert.Equal(t, []string{"demo/demo-waypoint"}, applied)
}

func TestWaypointsPhaseNoopWithoutConfig(t *testing.T) {
	ctx := testContext(t)
	// No istio client connected; must not be needed when nothing to deploy.
	require.NoError(t, NewWaypointsPhase().Provision(ctx))
}

func TestLoadCACerts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range caCertFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("pem:"+name), 0o600))
	}

	certs, err := loadCACerts(dir)
	require.NoError(t, err)
	require.Len(t, certs, 4)
	assert.Equal(t, []byte("pem:ca-key.pem"), certs["ca-key.pem"])
}

func TestLoadCACertsMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ca-cert.pem"), []byte("pem"), 0o600))

	_, err := loadCACerts(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CA material")
}

func TestPhasesOrder(t *testing.T) {
	t.Parallel()

	var names []string
	for _, p := range Phases() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{
		"mesh-namespaces",
		"mesh-install",
		"mesh-client",
		"mesh-gateway",
		"mesh-workloads",
		"mesh-waypoints",
		"mesh-policies",
	}, names)
}
