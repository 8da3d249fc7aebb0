package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/meshlab-io/meshlab/internal/platform/istio"
)

// istioctlVersion reports the local vendor istioctl version; replaceable in
// tests.
var istioctlVersion = func(ctx context.Context) (string, error) {
	i, err := istio.New("")
	if err != nil {
		return "", err
	}
	return i.Version(ctx)
}

// Status prints the recorded state of the environment plus the identity of
// the active AWS credentials. It works entirely from the state file, so it
// is usable even when the environment is half built.
func Status(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	st, err := loadState(cfg.StatePath, cfg.EnvironmentName, cfg.Region)
	if err != nil {
		return err
	}

	fmt.Printf("Environment: %s (%s, %s)\n", cfg.EnvironmentName, cfg.Scenario, cfg.Region)

	// Best effort: state alone is still useful without credentials.
	if client, err := newCloudClient(ctx, cfg.LocalProfile, cfg.Region); err == nil {
		if account, arn, idErr := client.CallerIdentity(ctx); idErr == nil {
			fmt.Printf("Credentials: account %s (%s)\n", account, arn)
		}
	}

	row := func(name, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Printf("  %-22s %s\n", name, value)
	}

	fmt.Println("Network:")
	for _, side := range []string{"local", "external"} {
		s := st.Side(side)
		row(side+" vpc", s.VPCID)
		if s.VPCID != "" {
			row(side+" subnets", fmt.Sprintf("%d public, %d private", len(s.PublicSubnetIDs), len(s.PrivateSubnetIDs)))
			row(side+" nat gateway", s.NatGatewayID)
		}
	}
	row("peering", st.PeeringConnectionID)

	fmt.Println("Compute:")
	row("ecs cluster", st.ECSClusterARN)
	row("ecs services", joinSorted(mapKeys(st.ServiceARNs)))
	row("eks cluster", st.EKSClusterName)
	row("eks endpoint", st.EKSEndpoint)

	fmt.Println("Mesh:")
	// Best effort too: istioctl may not be installed yet.
	version, _ := istioctlVersion(ctx)
	row("istioctl", version)
	row("helm releases", strings.Join(st.HelmReleases, ", "))
	row("registered services", strings.Join(st.RegisteredServices, ", "))

	return nil
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func joinSorted(values []string) string {
	sort.Strings(values)
	return strings.Join(values, ", ")
}
