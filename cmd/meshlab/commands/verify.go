package commands

import (
	"github.com/spf13/cobra"

	"github.com/meshlab-io/meshlab/cmd/meshlab/handlers"
)

// Verify returns the command for running the scripted connectivity checks.
func Verify() *cobra.Command {
	var (
		flags envFlags
		check string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run connectivity and authorization-policy checks",
		Long: `Run the configured checks against the live environment. Each
check execs curl inside a mesh pod and asserts on the response; deny checks
prove authorization policies block traffic. Exits non-zero when any check
fails.

Examples:
  # Run all checks
  meshlab verify

  # Run a single check by name
  meshlab verify --check eks-to-ecs`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Verify(cmd.Context(), handlers.Options{
				ConfigPath: flags.configPath,
				Scenario:   flags.scenario,
				StatePath:  flags.statePath,
			}, check)
		},
	}

	flags.addTo(cmd)
	cmd.Flags().StringVar(&check, "check", "", "Run only the named check")

	return cmd
}
