package commands

import (
	"github.com/spf13/cobra"

	"github.com/meshlab-io/meshlab/cmd/meshlab/handlers"
)

// Destroy returns the destroy command.
//
// Resources are deleted in reverse dependency order; failures accumulate
// into a final summary instead of aborting, so a partially stuck teardown
// still removes everything it can.
func Destroy() *cobra.Command {
	var (
		flags envFlags
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the environment and all associated resources",
		Long: `Destroy removes every AWS resource recorded for the environment:
mesh registrations and Helm releases, ECS services and cluster, the EKS
nodegroup and cluster, IAM roles, load balancers, peering, and both VPCs.

The command asks for confirmation unless --yes is given.

Example:
  meshlab destroy -c meshlab.yaml --yes

WARNING: This operation is irreversible.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), handlers.Options{
				ConfigPath: flags.configPath,
				Scenario:   flags.scenario,
				StatePath:  flags.statePath,
			}, yes)
		},
	}

	flags.addTo(cmd)
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")

	return cmd
}
