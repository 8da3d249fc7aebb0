package handlers

import (
	"context"
	"log"

	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/provisioning/ecs"
	"github.com/meshlab-io/meshlab/internal/provisioning/mesh"
)

// Deploy deploys the ECS services and the Istio ambient mesh onto the
// infrastructure a prior apply provisioned.
//
// The vendor istioctl is a hard prerequisite here: the east-west gateway and
// ECS workload registration subcommands only exist in that distribution.
func Deploy(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := checkPrerequisites(cfg, true); err != nil {
		return err
	}

	log.Printf("Deploying workloads and mesh for environment %s", cfg.EnvironmentName)

	pctx, err := buildContext(ctx, cfg)
	if err != nil {
		return err
	}

	cleanup, err := connectCluster(pctx)
	if err != nil {
		return err
	}
	defer cleanup()

	phases := append([]provisioning.Phase{ecs.NewServicesPhase()}, mesh.Phases()...)
	if err := runPhases(pctx, phases); err != nil {
		return err
	}

	log.Printf("Mesh deployed for %s. Next: meshlab verify", cfg.EnvironmentName)
	return nil
}
