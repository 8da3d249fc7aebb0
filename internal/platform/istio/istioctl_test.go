package istio

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubRun(t *testing.T, fn func(ctx context.Context, bin string, args []string) (string, string, error)) {
	t.Helper()
	orig := runCmd
	runCmd = fn
	t.Cleanup(func() { runCmd = orig })
}

func stubResolve(t *testing.T, path string, pathErr error, env string) {
	t.Helper()
	origLook, origGetenv := lookPath, getenv
	lookPath = func(string) (string, error) { return path, pathErr }
	getenv = func(string) string { return env }
	t.Cleanup(func() {
		lookPath = origLook
		getenv = origGetenv
	})
}

func TestResolveFromPath(t *testing.T) {
	stubResolve(t, "/usr/local/bin/istioctl", nil, "")

	path, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/istioctl", path)
}

func TestResolveMissingNamesEnvVar(t *testing.T) {
	stubResolve(t, "", errors.New("not found"), "")

	_, err := Resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvIstioctl)
}

func TestResolveEnvOverrideMustExist(t *testing.T) {
	stubResolve(t, "", nil, "/nonexistent/istioctl")

	_, err := Resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/istioctl")
}

func TestRunIncludesKubeconfigAndStderr(t *testing.T) {
	var gotArgs []string
	stubRun(t, func(ctx context.Context, bin string, args []string) (string, string, error) {
		gotArgs = args
		return "", "connection refused", errors.New("exit status 1")
	})

	i := &Istioctl{path: "istioctl", kubeconfigPath: "/tmp/kc.yaml"}
	err := i.RegisterECSWorkload(context.Background(), RegisterOpts{
		Name:      "web",
		Namespace: "demo",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "--kubeconfig", gotArgs[0])
	assert.Equal(t, "/tmp/kc.yaml", gotArgs[1])
	assert.Contains(t, strings.Join(gotArgs, " "), "ecs register")
}

func TestVersionTrimsOutput(t *testing.T) {
	stubRun(t, func(ctx context.Context, bin string, args []string) (string, string, error) {
		return "1.24.2-solo\n", "", nil
	})

	i := &Istioctl{path: "istioctl"}
	version, err := i.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.24.2-solo", version)
}

// Client-only commands run before any cluster exists, so an unbound wrapper
// must not pass an empty kubeconfig path.
func TestRunSkipsKubeconfigWhenUnbound(t *testing.T) {
	var gotArgs []string
	stubRun(t, func(ctx context.Context, bin string, args []string) (string, string, error) {
		gotArgs = args
		return "1.24.2-solo\n", "", nil
	})

	i := &Istioctl{path: "istioctl"}
	_, err := i.Version(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, gotArgs, "--kubeconfig")
}

func TestParseWorkloadCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{
			name: "two workloads",
			raw:  `[{"name":"web-1","protocol":"HBONE"},{"name":"api-1","protocol":"HBONE"}]`,
			want: 2,
		},
		{
			name: "empty list",
			raw:  `[]`,
			want: 0,
		},
		{
			name: "empty output",
			raw:  "",
			want: 0,
		},
		{
			name:    "garbage",
			raw:     "not json",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseWorkloadCount(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeleteWaypointMissingIsSuccess(t *testing.T) {
	stubRun(t, func(ctx context.Context, bin string, args []string) (string, string, error) {
		return "", "waypoint demo/gw not found", errors.New("exit status 1")
	})

	i := &Istioctl{path: "istioctl"}
	err := i.DeleteWaypoint(context.Background(), "demo", "gw")
	assert.NoError(t, err)
}
