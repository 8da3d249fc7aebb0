// Package state persists the AWS identifiers an environment accumulates so
// that subsequent invocations can reuse them.
//
// Everything in here is an opaque identifier returned by AWS. The file is a
// cache, not the source of truth: ensure operations re-resolve resources by
// tag filter when a recorded identifier turns out to be stale.
package state

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SideState holds the network identifiers for one account side.
type SideState struct {
	VPCID             string   `yaml:"vpc_id,omitempty"`
	PublicSubnetIDs   []string `yaml:"public_subnet_ids,omitempty"`
	PrivateSubnetIDs  []string `yaml:"private_subnet_ids,omitempty"`
	InternetGatewayID string   `yaml:"internet_gateway_id,omitempty"`
	NatGatewayID      string   `yaml:"nat_gateway_id,omitempty"`
	NatEIPAllocID     string   `yaml:"nat_eip_alloc_id,omitempty"`
	PublicRouteTable  string   `yaml:"public_route_table,omitempty"`
	PrivateRouteTable string   `yaml:"private_route_table,omitempty"`
	MeshSecurityGroup string   `yaml:"mesh_security_group,omitempty"`
}

// State is the full set of recorded identifiers for an environment.
type State struct {
	EnvironmentName string `yaml:"environment_name"`
	Region          string `yaml:"region,omitempty"`

	LocalAccountID    string `yaml:"local_account_id,omitempty"`
	ExternalAccountID string `yaml:"external_account_id,omitempty"`

	Local    SideState `yaml:"local,omitempty"`
	External SideState `yaml:"external,omitempty"`

	PeeringConnectionID string `yaml:"peering_connection_id,omitempty"`

	TaskExecutionRoleARN string `yaml:"task_execution_role_arn,omitempty"`
	TaskRoleARN          string `yaml:"task_role_arn,omitempty"`
	EKSClusterRoleARN    string `yaml:"eks_cluster_role_arn,omitempty"`
	NodeRoleARN          string `yaml:"node_role_arn,omitempty"`

	ECSClusterARN      string            `yaml:"ecs_cluster_arn,omitempty"`
	TaskDefinitionARNs map[string]string `yaml:"task_definition_arns,omitempty"` // service name -> ARN
	ServiceARNs        map[string]string `yaml:"service_arns,omitempty"`         // service name -> ARN
	LogGroups          []string          `yaml:"log_groups,omitempty"`

	EKSClusterName string `yaml:"eks_cluster_name,omitempty"`
	EKSEndpoint    string `yaml:"eks_endpoint,omitempty"`
	EKSCertificate string `yaml:"eks_certificate,omitempty"` // base64 CA data

	HelmReleases       []string `yaml:"helm_releases,omitempty"`
	RegisteredServices []string `yaml:"registered_services,omitempty"` // ECS services registered with the mesh
}

// New creates an empty state for the given environment.
func New(env, region string) *State {
	return &State{
		EnvironmentName:    env,
		Region:             region,
		TaskDefinitionARNs: make(map[string]string),
		ServiceARNs:        make(map[string]string),
	}
}

// Load reads the state file. A missing file yields a fresh empty state for
// the given environment; a file recorded for a different environment is an
// error so two environments cannot trample each other's identifiers.
func Load(path, env, region string) (*State, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(env, region), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}

	if st.EnvironmentName != "" && st.EnvironmentName != env {
		return nil, fmt.Errorf("state file %s belongs to environment %q, not %q; use --state to point elsewhere",
			path, st.EnvironmentName, env)
	}

	st.EnvironmentName = env
	if st.Region == "" {
		st.Region = region
	}
	if st.TaskDefinitionARNs == nil {
		st.TaskDefinitionARNs = make(map[string]string)
	}
	if st.ServiceARNs == nil {
		st.ServiceARNs = make(map[string]string)
	}

	return &st, nil
}

// Save writes the state file with owner-only permissions.
func (s *State) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// Side returns the side state for the given side name ("local"/"external").
func (s *State) Side(side string) *SideState {
	if side == "external" {
		return &s.External
	}
	return &s.Local
}

// AddHelmRelease records a helm release name once.
func (s *State) AddHelmRelease(name string) {
	for _, r := range s.HelmReleases {
		if r == name {
			return
		}
	}
	s.HelmReleases = append(s.HelmReleases, name)
}

// AddRegisteredService records an ECS service registered with the mesh.
func (s *State) AddRegisteredService(name string) {
	for _, r := range s.RegisteredServices {
		if r == name {
			return
		}
	}
	s.RegisteredServices = append(s.RegisteredServices, name)
}

// AddLogGroup records a log group name once.
func (s *State) AddLogGroup(name string) {
	for _, g := range s.LogGroups {
		if g == name {
			return
		}
	}
	s.LogGroups = append(s.LogGroups, name)
}
