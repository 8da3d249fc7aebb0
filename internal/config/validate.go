package config

import (
	"fmt"
	"net"
)

// Validate checks the configuration for consistency before any cloud call is
// made. Cheap local checks only; AWS-side validation is left to the APIs.
func (c *Config) Validate() error {
	if c.EnvironmentName == "" {
		return fmt.Errorf("environment_name is required")
	}
	// An empty region is allowed; the SDK falls back to the profile or
	// AWS_REGION when no region is passed explicitly.

	switch c.Scenario {
	case ScenarioSingleAccount, ScenarioMultiAccount:
	default:
		return fmt.Errorf("scenario must be %q or %q, got %q",
			ScenarioSingleAccount, ScenarioMultiAccount, c.Scenario)
	}

	if c.IsMultiAccount() && c.ExternalProfile == "" {
		return fmt.Errorf("external_profile is required for the %s scenario", ScenarioMultiAccount)
	}

	localNet, err := parseCIDR(c.Network.LocalCIDR, "network.local_cidr")
	if err != nil {
		return err
	}
	externalNet, err := parseCIDR(c.Network.ExternalCIDR, "network.external_cidr")
	if err != nil {
		return err
	}
	if cidrsOverlap(localNet, externalNet) {
		return fmt.Errorf("network.local_cidr %s overlaps network.external_cidr %s; peered VPCs need disjoint ranges",
			c.Network.LocalCIDR, c.Network.ExternalCIDR)
	}

	if c.Network.AZCount < 2 {
		return fmt.Errorf("network.az_count must be at least 2 (EKS requires subnets in two AZs)")
	}

	seen := make(map[string]bool)
	for _, svc := range c.ECS.Services {
		if svc.Name == "" {
			return fmt.Errorf("ecs.services entries require a name")
		}
		if seen[svc.Name] {
			return fmt.Errorf("duplicate ecs service name %q", svc.Name)
		}
		seen[svc.Name] = true
		if svc.Image == "" {
			return fmt.Errorf("ecs service %q requires an image", svc.Name)
		}
		if svc.Port <= 0 || svc.Port > 65535 {
			return fmt.Errorf("ecs service %q has invalid port %d", svc.Name, svc.Port)
		}
	}

	for _, p := range c.Mesh.AuthorizationPolicies {
		if p.Name == "" || p.Namespace == "" {
			return fmt.Errorf("authorization policies require name and namespace")
		}
		if p.Action != "ALLOW" && p.Action != "DENY" {
			return fmt.Errorf("authorization policy %q: action must be ALLOW or DENY, got %q", p.Name, p.Action)
		}
	}

	for _, chk := range c.Verify.Checks {
		if chk.Name == "" {
			return fmt.Errorf("verify checks require a name")
		}
		if chk.URL == "" {
			return fmt.Errorf("verify check %q requires a url", chk.Name)
		}
		if chk.FromNamespace == "" || chk.FromSelector == "" {
			return fmt.Errorf("verify check %q requires from_namespace and from_selector", chk.Name)
		}
	}

	return nil
}

func parseCIDR(cidr, field string) (*net.IPNet, error) {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid CIDR %q: %w", field, cidr, err)
	}
	return ipNet, nil
}

func cidrsOverlap(a, b *net.IPNet) bool {
	return a.Contains(b.IP) || b.Contains(a.IP)
}
