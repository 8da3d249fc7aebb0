package commands

import (
	"github.com/spf13/cobra"

	"github.com/meshlab-io/meshlab/cmd/meshlab/handlers"
)

// Deploy returns the command for deploying workloads and the ambient mesh.
//
// Requires a prior 'meshlab apply' and the vendor istioctl binary: the
// open-source build lacks the ECS workload registration subcommands.
func Deploy() *cobra.Command {
	var flags envFlags

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy ECS services and the Istio ambient mesh",
		Long: `Deploy the demo workloads and mesh on the provisioned
infrastructure: ECS task definitions and services, ambient-labeled
namespaces, the Istio control plane via Helm, the east-west gateway, ECS
workload registration, waypoint proxies, and authorization policies.

Example:
  meshlab deploy -c meshlab.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), handlers.Options{
				ConfigPath: flags.configPath,
				Scenario:   flags.scenario,
				StatePath:  flags.statePath,
			})
		},
	}

	flags.addTo(cmd)

	return cmd
}
