// Package config defines the configuration structure and methods for the application.
package config

// Scenario names. The single-account scenario provisions both sides in one
// account; the multi-account scenario peers a VPC in a second account and
// runs the ECS workloads there.
const (
	ScenarioSingleAccount = "single-account"
	ScenarioMultiAccount  = "multi-account"
)

// Config holds the application configuration.
type Config struct {
	// EnvironmentName prefixes every AWS resource created by meshlab.
	EnvironmentName string `mapstructure:"environment_name" yaml:"environment_name"`

	// Scenario selects the environment topology.
	// Default: "single-account"
	Scenario string `mapstructure:"scenario" yaml:"scenario"`

	// Region is the AWS region for all resources.
	Region string `mapstructure:"region" yaml:"region"`

	// LocalProfile is the AWS CLI profile for the account hosting EKS.
	LocalProfile string `mapstructure:"local_profile" yaml:"local_profile"`

	// ExternalProfile is the AWS CLI profile for the account hosting the ECS
	// workloads in the multi-account scenario. Ignored otherwise.
	ExternalProfile string `mapstructure:"external_profile" yaml:"external_profile"`

	// StatePath overrides where recorded resource identifiers are persisted.
	// Default: meshlab-state.yaml next to the config file.
	StatePath string `mapstructure:"state_path" yaml:"state_path"`

	// PrerequisitesCheckEnabled enables the preflight check for required
	// client tools. Default: true
	PrerequisitesCheckEnabled *bool `mapstructure:"prerequisites_check_enabled" yaml:"prerequisites_check_enabled"`

	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	ECS     ECSConfig     `mapstructure:"ecs" yaml:"ecs"`
	EKS     EKSConfig     `mapstructure:"eks" yaml:"eks"`
	Mesh    MeshConfig    `mapstructure:"mesh" yaml:"mesh"`
	Verify  VerifyConfig  `mapstructure:"verify" yaml:"verify"`
}

// NetworkConfig describes the VPC topology on both sides.
type NetworkConfig struct {
	// LocalCIDR is the CIDR of the VPC hosting EKS. Default: 10.10.0.0/16
	LocalCIDR string `mapstructure:"local_cidr" yaml:"local_cidr"`

	// ExternalCIDR is the CIDR of the VPC hosting the ECS workloads.
	// Must not overlap LocalCIDR when peering is in play. Default: 10.20.0.0/16
	ExternalCIDR string `mapstructure:"external_cidr" yaml:"external_cidr"`

	// AZCount is how many availability zones to spread subnets across.
	// Default: 2 (EKS requires at least two).
	AZCount int `mapstructure:"az_count" yaml:"az_count"`
}

// ECSConfig describes the ECS side of the environment.
type ECSConfig struct {
	// Services are the demo workloads to run on Fargate.
	Services []ServiceSpec `mapstructure:"services" yaml:"services"`
}

// ServiceSpec describes a single ECS service.
type ServiceSpec struct {
	Name         string            `mapstructure:"name" yaml:"name"`
	Image        string            `mapstructure:"image" yaml:"image"`
	Port         int32             `mapstructure:"port" yaml:"port"`
	DesiredCount int32             `mapstructure:"desired_count" yaml:"desired_count"`
	CPU          string            `mapstructure:"cpu" yaml:"cpu"`
	Memory       string            `mapstructure:"memory" yaml:"memory"`
	Env          map[string]string `mapstructure:"env" yaml:"env"`
}

// EKSConfig describes the EKS cluster.
type EKSConfig struct {
	// Version is the Kubernetes version, e.g. "1.31". Default: latest default
	// chosen by EKS when empty.
	Version string `mapstructure:"version" yaml:"version"`

	// InstanceType for the managed nodegroup. Default: t3.large
	InstanceType string `mapstructure:"instance_type" yaml:"instance_type"`

	// NodeCount is the desired nodegroup size. Default: 2
	NodeCount int32 `mapstructure:"node_count" yaml:"node_count"`
}

// MeshConfig describes the Istio ambient mesh layered on top.
type MeshConfig struct {
	// Version is the Istio chart version to install. Default: 1.24.2
	Version string `mapstructure:"version" yaml:"version"`

	// MeshID identifies the mesh. Default: the environment name.
	MeshID string `mapstructure:"mesh_id" yaml:"mesh_id"`

	// TrustDomain for SPIFFE identities. Default: cluster.local
	TrustDomain string `mapstructure:"trust_domain" yaml:"trust_domain"`

	// LocalNetwork / ExternalNetwork are the Istio network names used for
	// cross-network HBONE routing. Defaults: eks-network / ecs-network.
	LocalNetwork    string `mapstructure:"local_network" yaml:"local_network"`
	ExternalNetwork string `mapstructure:"external_network" yaml:"external_network"`

	// EastWestGateway deploys the cross-network gateway. Enabled by default
	// for the multi-account scenario.
	EastWestGateway *bool `mapstructure:"east_west_gateway" yaml:"east_west_gateway"`

	// CACertDir holds a plugin CA (ca-cert.pem, ca-key.pem, root-cert.pem,
	// cert-chain.pem) installed as the cacerts secret before istiod. Empty
	// means istiod generates a self-signed root.
	CACertDir string `mapstructure:"ca_cert_dir" yaml:"ca_cert_dir"`

	// AmbientNamespaces are namespaces created on EKS with the ambient
	// dataplane label. Default: ["demo"].
	AmbientNamespaces []string `mapstructure:"ambient_namespaces" yaml:"ambient_namespaces"`

	// Waypoints deploys per-namespace L7 waypoint proxies.
	Waypoints []WaypointSpec `mapstructure:"waypoints" yaml:"waypoints"`

	// AuthorizationPolicies applied after workloads are registered.
	AuthorizationPolicies []AuthzPolicySpec `mapstructure:"authorization_policies" yaml:"authorization_policies"`
}

// WaypointSpec describes a waypoint proxy deployment.
type WaypointSpec struct {
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Name      string `mapstructure:"name" yaml:"name"`
}

// AuthzPolicySpec describes an Istio AuthorizationPolicy to enforce.
type AuthzPolicySpec struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`

	// Action is ALLOW or DENY. Default: ALLOW.
	Action string `mapstructure:"action" yaml:"action"`

	// TargetService scopes the policy to a service account or service name.
	TargetService string `mapstructure:"target_service" yaml:"target_service"`

	// SourcePrincipals are SPIFFE principals permitted (or denied).
	SourcePrincipals []string `mapstructure:"source_principals" yaml:"source_principals"`

	// Ports restricts the policy to specific ports.
	Ports []int32 `mapstructure:"ports" yaml:"ports"`
}

// VerifyConfig lists the scripted connectivity checks.
type VerifyConfig struct {
	Checks []CheckSpec `mapstructure:"checks" yaml:"checks"`
}

// CheckSpec describes one connectivity or authorization check.
type CheckSpec struct {
	Name string `mapstructure:"name" yaml:"name"`

	// FromNamespace/FromSelector locate the EKS pod the probe runs in.
	FromNamespace string `mapstructure:"from_namespace" yaml:"from_namespace"`
	FromSelector  string `mapstructure:"from_selector" yaml:"from_selector"`

	// URL is fetched from inside the source pod.
	URL string `mapstructure:"url" yaml:"url"`

	// ExpectSubstring must appear in the response body.
	ExpectSubstring string `mapstructure:"expect_substring" yaml:"expect_substring"`

	// ExpectStatus is the expected HTTP status code. Default: 200.
	ExpectStatus int `mapstructure:"expect_status" yaml:"expect_status"`

	// ExpectFailure inverts the check: the probe must NOT succeed. Used for
	// authorization-policy deny checks.
	ExpectFailure bool `mapstructure:"expect_failure" yaml:"expect_failure"`
}

// IsMultiAccount reports whether the environment spans two accounts.
func (c *Config) IsMultiAccount() bool {
	return c.Scenario == ScenarioMultiAccount
}

// EastWestGatewayEnabled reports whether the cross-network gateway should be
// deployed. Defaults to true for multi-account environments.
func (c *Config) EastWestGatewayEnabled() bool {
	if c.Mesh.EastWestGateway != nil {
		return *c.Mesh.EastWestGateway
	}
	return c.IsMultiAccount()
}
