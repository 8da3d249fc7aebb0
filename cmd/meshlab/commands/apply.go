package commands

import (
	"github.com/spf13/cobra"

	"github.com/meshlab-io/meshlab/cmd/meshlab/handlers"
)

// Apply returns the command for provisioning the environment infrastructure.
//
// This covers everything below the workloads: VPCs, subnets, gateways,
// routing, peering, security groups, IAM roles, the ECS cluster, and the
// EKS cluster with its nodegroup. Workloads and the mesh are deployed
// separately with 'meshlab deploy'.
func Apply() *cobra.Command {
	var (
		flags   envFlags
		skipEKS bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Provision the environment infrastructure",
		Long: `Provision VPCs, peering, IAM roles, the ECS cluster, and the EKS
cluster. Every resource identifier is recorded in the state file, so apply is
idempotent and a failed run resumes where it stopped.

Examples:
  # Provision using meshlab.yaml in the current directory
  meshlab apply

  # Provision a multi-account environment from a specific config
  meshlab apply -c multi.yaml --scenario multi-account

  # ECS-only environment (no EKS cluster)
  meshlab apply --skip-eks`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), handlers.ApplyOptions{
				ConfigPath: flags.configPath,
				Scenario:   flags.scenario,
				StatePath:  flags.statePath,
				SkipEKS:    skipEKS,
			})
		},
	}

	flags.addTo(cmd)
	cmd.Flags().BoolVar(&skipEKS, "skip-eks", false, "Skip EKS cluster provisioning")

	return cmd
}
