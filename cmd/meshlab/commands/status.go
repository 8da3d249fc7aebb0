package commands

import (
	"github.com/spf13/cobra"

	"github.com/meshlab-io/meshlab/cmd/meshlab/handlers"
)

// Status returns the command for printing recorded environment state.
func Status() *cobra.Command {
	var flags envFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recorded state of the environment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), handlers.Options{
				ConfigPath: flags.configPath,
				Scenario:   flags.scenario,
				StatePath:  flags.statePath,
			})
		},
	}

	flags.addTo(cmd)

	return cmd
}
