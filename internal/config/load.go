package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the current directory when no --config
// flag is given.
const DefaultConfigFile = "meshlab.yaml"

// DefaultStateFile is where resource identifiers are persisted between runs.
const DefaultStateFile = "meshlab-state.yaml"

// Load reads and parses the configuration from a YAML file, applies defaults,
// and validates the result.
func Load(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// FindConfigFile returns the default config file path if it exists in the
// current directory.
func FindConfigFile() (string, error) {
	if _, err := os.Stat(DefaultConfigFile); err != nil {
		return "", fmt.Errorf("%s not found in current directory", DefaultConfigFile)
	}
	return DefaultConfigFile, nil
}

func (c *Config) applyDefaults() {
	if c.Scenario == "" {
		c.Scenario = ScenarioSingleAccount
	}
	if c.Network.LocalCIDR == "" {
		c.Network.LocalCIDR = "10.10.0.0/16"
	}
	if c.Network.ExternalCIDR == "" {
		c.Network.ExternalCIDR = "10.20.0.0/16"
	}
	if c.Network.AZCount == 0 {
		c.Network.AZCount = 2
	}
	if c.EKS.InstanceType == "" {
		c.EKS.InstanceType = "t3.large"
	}
	if c.EKS.NodeCount == 0 {
		c.EKS.NodeCount = 2
	}
	if c.Mesh.Version == "" {
		c.Mesh.Version = "1.24.2"
	}
	if c.Mesh.MeshID == "" {
		c.Mesh.MeshID = c.EnvironmentName
	}
	if c.Mesh.TrustDomain == "" {
		c.Mesh.TrustDomain = "cluster.local"
	}
	if c.Mesh.LocalNetwork == "" {
		c.Mesh.LocalNetwork = "eks-network"
	}
	if c.Mesh.ExternalNetwork == "" {
		c.Mesh.ExternalNetwork = "ecs-network"
	}
	if len(c.Mesh.AmbientNamespaces) == 0 {
		c.Mesh.AmbientNamespaces = []string{"demo"}
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}

	for i := range c.ECS.Services {
		svc := &c.ECS.Services[i]
		if svc.DesiredCount == 0 {
			svc.DesiredCount = 1
		}
		if svc.CPU == "" {
			svc.CPU = "256"
		}
		if svc.Memory == "" {
			svc.Memory = "512"
		}
	}

	for i := range c.Mesh.AuthorizationPolicies {
		if c.Mesh.AuthorizationPolicies[i].Action == "" {
			c.Mesh.AuthorizationPolicies[i].Action = "ALLOW"
		}
	}

	for i := range c.Verify.Checks {
		if c.Verify.Checks[i].ExpectStatus == 0 {
			c.Verify.Checks[i].ExpectStatus = 200
		}
	}
}
