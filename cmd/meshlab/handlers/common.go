// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"

	"github.com/meshlab-io/meshlab/internal/config"
	"github.com/meshlab-io/meshlab/internal/platform/awscloud"
	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/provisioning/eks"
	"github.com/meshlab-io/meshlab/internal/state"
	"github.com/meshlab-io/meshlab/internal/util/prerequisites"
)

// Options are the flags shared by every command operating on an environment.
type Options struct {
	ConfigPath string
	Scenario   string
	StatePath  string
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newCloudClient creates an AWS client for one account.
	newCloudClient = func(ctx context.Context, profile, region string) (awscloud.CloudManager, error) {
		return awscloud.NewRealClient(ctx, profile, region)
	}

	// connectCluster wires the kubernetes, helm, and istioctl clients into
	// the context once EKS is reachable.
	connectCluster = eks.Connect

	// runPhases executes the provisioning pipeline.
	runPhases = provisioning.RunPhases

	// checkDefaultPrereqs and checkMeshPrereqs run preflight tool checks.
	checkDefaultPrereqs = prerequisites.CheckDefault
	checkMeshPrereqs    = prerequisites.CheckMesh

	// loadConfigFile loads config from file (for testing injection).
	loadConfigFile = config.Load

	// findConfigFile locates the default config file (for testing injection).
	findConfigFile = config.FindConfigFile

	// loadState loads the recorded state file (for testing injection).
	loadState = state.Load
)

// loadConfig resolves and loads the configuration, applying flag overrides.
func loadConfig(opts Options) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		found, err := findConfigFile()
		if err != nil {
			return nil, fmt.Errorf("%w (run 'meshlab init' to create one, or pass --config)", err)
		}
		path = found
	}

	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}

	if opts.Scenario != "" {
		if opts.Scenario != config.ScenarioSingleAccount && opts.Scenario != config.ScenarioMultiAccount {
			return nil, fmt.Errorf("unknown scenario %q (expected %s or %s)",
				opts.Scenario, config.ScenarioSingleAccount, config.ScenarioMultiAccount)
		}
		cfg.Scenario = opts.Scenario
	}
	if opts.StatePath != "" {
		cfg.StatePath = opts.StatePath
	}
	return cfg, nil
}

// checkPrerequisites runs the preflight tool check unless disabled in config.
func checkPrerequisites(cfg *config.Config, mesh bool) error {
	if cfg.PrerequisitesCheckEnabled != nil && !*cfg.PrerequisitesCheckEnabled {
		return nil
	}
	results := checkDefaultPrereqs()
	if mesh {
		results = checkMeshPrereqs()
	}
	return results.Error()
}

// buildContext constructs a provisioning context with cloud clients and
// loaded state, and records the account IDs the clients resolve to.
func buildContext(ctx context.Context, cfg *config.Config) (*provisioning.Context, error) {
	local, err := newCloudClient(ctx, cfg.LocalProfile, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS client for local account: %w", err)
	}

	var external awscloud.CloudManager
	if cfg.IsMultiAccount() {
		external, err = newCloudClient(ctx, cfg.ExternalProfile, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS client for external account: %w", err)
		}
	}

	st, err := loadState(cfg.StatePath, cfg.EnvironmentName, cfg.Region)
	if err != nil {
		return nil, err
	}

	pctx := provisioning.NewContext(ctx, cfg, st, local, external)

	if st.LocalAccountID == "" {
		account, _, err := local.CallerIdentity(pctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve local account identity: %w", err)
		}
		st.LocalAccountID = account
	}
	if external != nil && st.ExternalAccountID == "" {
		account, _, err := external.CallerIdentity(pctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve external account identity: %w", err)
		}
		st.ExternalAccountID = account
	}

	return pctx, nil
}
