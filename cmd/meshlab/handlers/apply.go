package handlers

import (
	"context"
	"log"

	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/provisioning/ecs"
	"github.com/meshlab-io/meshlab/internal/provisioning/eks"
	"github.com/meshlab-io/meshlab/internal/provisioning/iam"
	"github.com/meshlab-io/meshlab/internal/provisioning/network"
)

// ApplyOptions are the flags for the apply command.
type ApplyOptions struct {
	ConfigPath string
	Scenario   string
	StatePath  string

	// SkipEKS leaves out the EKS cluster for ECS-only environments.
	SkipEKS bool
}

// Apply provisions the environment infrastructure.
//
// This function orchestrates the infrastructure workflow:
//  1. Loads and validates the configuration
//  2. Creates AWS clients for the local (and optionally external) account
//  3. Provisions both VPCs, peering, security groups, and IAM roles
//  4. Creates the ECS cluster and the EKS cluster with its nodegroup
//
// Every phase records its resource identifiers in the state file as it
// completes, so apply is idempotent and resumable after a failure.
func Apply(ctx context.Context, opts ApplyOptions) error {
	cfg, err := loadConfig(Options{ConfigPath: opts.ConfigPath, Scenario: opts.Scenario, StatePath: opts.StatePath})
	if err != nil {
		return err
	}
	if err := checkPrerequisites(cfg, false); err != nil {
		return err
	}

	log.Printf("Applying environment %s (%s)", cfg.EnvironmentName, cfg.Scenario)

	pctx, err := buildContext(ctx, cfg)
	if err != nil {
		return err
	}

	phases := []provisioning.Phase{
		network.NewPhase("local"),
		network.NewPhase("external"),
		network.NewPeeringPhase(),
		iam.NewPhase(),
		ecs.NewClusterPhase(),
	}
	if !opts.SkipEKS {
		phases = append(phases, eks.NewPhase())
	}

	if err := runPhases(pctx, phases); err != nil {
		return err
	}

	log.Printf("Infrastructure for %s is ready. Next: meshlab deploy", cfg.EnvironmentName)
	return nil
}
