// Package istio drives the vendor istioctl binary. The ECS workload
// registration commands only exist in that distribution, so this stays an
// exec wrapper rather than a library integration.
package istio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// EnvIstioctl overrides istioctl discovery on PATH.
const EnvIstioctl = "MESHLAB_ISTIOCTL"

// Stubbed in tests.
var (
	lookPath = exec.LookPath
	getenv   = os.Getenv
	runCmd   = defaultRunCmd
)

func defaultRunCmd(ctx context.Context, bin string, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Istioctl wraps invocations of the vendor istioctl against one cluster.
type Istioctl struct {
	path           string
	kubeconfigPath string
}

// Resolve locates the istioctl binary, preferring the env override.
func Resolve() (string, error) {
	if override := getenv(EnvIstioctl); override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("istioctl not found at %s (from %s): %w", override, EnvIstioctl, err)
		}
		return override, nil
	}

	path, err := lookPath("istioctl")
	if err != nil {
		return "", fmt.Errorf("istioctl not found on PATH; install the vendor distribution or set %s", EnvIstioctl)
	}
	return path, nil
}

// New resolves the binary and binds it to the given kubeconfig.
func New(kubeconfigPath string) (*Istioctl, error) {
	path, err := Resolve()
	if err != nil {
		return nil, err
	}
	return &Istioctl{path: path, kubeconfigPath: kubeconfigPath}, nil
}

// run executes istioctl with the kubeconfig flag prepended. Client-only
// commands work without a kubeconfig; the flag is skipped when unset.
func (i *Istioctl) run(ctx context.Context, args ...string) (string, error) {
	full := args
	if i.kubeconfigPath != "" {
		full = append([]string{"--kubeconfig", i.kubeconfigPath}, args...)
	}
	stdout, stderr, err := runCmd(ctx, i.path, full)
	if err != nil {
		return stdout, fmt.Errorf("istioctl %s failed: %w (stderr: %s)",
			strings.Join(args, " "), err, strings.TrimSpace(stderr))
	}
	return stdout, nil
}

// Version returns the client version string.
func (i *Istioctl) Version(ctx context.Context) (string, error) {
	out, err := i.run(ctx, "version", "--short", "--remote=false")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GatewayOpts configures the east-west gateway install.
type GatewayOpts struct {
	Namespace string
	Network   string
	Revision  string
}

// InstallEastWestGateway installs the east-west gateway that carries
// cross-network HBONE traffic. Idempotent on the istioctl side.
func (i *Istioctl) InstallEastWestGateway(ctx context.Context, opts GatewayOpts) error {
	args := []string{
		"x", "install-eastwest-gateway",
		"--namespace", opts.Namespace,
		"--network", opts.Network,
	}
	if opts.Revision != "" {
		args = append(args, "--revision", opts.Revision)
	}
	_, err := i.run(ctx, args...)
	return err
}

// RegisterOpts describes one ECS service to enroll in the mesh.
type RegisterOpts struct {
	Name        string
	Namespace   string
	ClusterARN  string
	ServiceName string
	Network     string
}

// RegisterECSWorkload enrolls an ECS service in the ambient mesh. This is
// the vendor extension command; open-source istioctl does not have it.
func (i *Istioctl) RegisterECSWorkload(ctx context.Context, opts RegisterOpts) error {
	_, err := i.run(ctx,
		"x", "ecs", "register",
		"--name", opts.Name,
		"--namespace", opts.Namespace,
		"--cluster", opts.ClusterARN,
		"--service", opts.ServiceName,
		"--network", opts.Network,
	)
	return err
}

// DeregisterECSWorkload removes an ECS service from the mesh.
func (i *Istioctl) DeregisterECSWorkload(ctx context.Context, name, namespace string) error {
	_, err := i.run(ctx,
		"x", "ecs", "deregister",
		"--name", name,
		"--namespace", namespace,
	)
	return err
}

// ApplyWaypoint deploys a waypoint proxy for L7 policy in a namespace.
func (i *Istioctl) ApplyWaypoint(ctx context.Context, namespace, name string) error {
	_, err := i.run(ctx,
		"waypoint", "apply",
		"--namespace", namespace,
		"--name", name,
		"--enroll-namespace",
		"--wait",
	)
	return err
}

// DeleteWaypoint removes a waypoint proxy.
func (i *Istioctl) DeleteWaypoint(ctx context.Context, namespace, name string) error {
	out, err := i.run(ctx, "waypoint", "delete", name, "--namespace", namespace)
	if err != nil && strings.Contains(out+err.Error(), "not found") {
		return nil
	}
	return err
}

// ztunnelWorkload is the subset of the ztunnel-config workload dump we read.
type ztunnelWorkload struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
}

// ZtunnelWorkloadCount returns how many workloads ztunnel currently knows,
// counted from the config dump of one ztunnel pod.
func (i *Istioctl) ZtunnelWorkloadCount(ctx context.Context) (int, error) {
	out, err := i.run(ctx, "ztunnel-config", "workloads", "-o", "json")
	if err != nil {
		return 0, err
	}
	return parseWorkloadCount(out)
}

func parseWorkloadCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	var workloads []ztunnelWorkload
	if err := json.Unmarshal([]byte(raw), &workloads); err != nil {
		return 0, fmt.Errorf("failed to parse ztunnel workload dump: %w", err)
	}
	return len(workloads), nil
}
