// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the meshlab CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meshlab",
		Short: "Provision an ECS + EKS demo environment joined by an Istio ambient mesh",
	}

	// Lifecycle commands
	cmd.AddCommand(Init())
	cmd.AddCommand(Apply())
	cmd.AddCommand(Deploy())
	cmd.AddCommand(Verify())
	cmd.AddCommand(Status())
	cmd.AddCommand(Destroy())

	// Utility commands
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
